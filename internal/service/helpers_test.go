package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/vibecommerce/storefront/internal/domain"
	"github.com/vibecommerce/storefront/internal/event"
	"github.com/vibecommerce/storefront/internal/repository/memory"
	pkgkafka "github.com/vibecommerce/storefront/pkg/kafka"
)

// --- Test Doubles ---

// countingCartRepo counts writes and can be told to fail them.
type countingCartRepo struct {
	*memory.CartRepository

	mu      sync.Mutex
	saves   int
	saveErr error
}

func newCountingCartRepo() *countingCartRepo {
	return &countingCartRepo{CartRepository: memory.NewCartRepository()}
}

func (r *countingCartRepo) Save(ctx context.Context, cart *domain.Cart) error {
	r.mu.Lock()
	r.saves++
	err := r.saveErr
	r.mu.Unlock()
	if err != nil {
		return err
	}
	return r.CartRepository.Save(ctx, cart)
}

func (r *countingCartRepo) saveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saves
}

func (r *countingCartRepo) failSaves(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saveErr = err
}

type mockOrderRepository struct {
	mock.Mock
}

func (m *mockOrderRepository) Append(ctx context.Context, order *domain.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *mockOrderRepository) ListAll(ctx context.Context) ([]domain.Order, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Order), args.Error(1)
}

func (m *mockOrderRepository) Get(ctx context.Context, orderID string) (*domain.Order, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, _ *pkgkafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.topics...)
}

// --- Test Helpers ---

const testSession = "default"

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestProducer(pub pkgkafka.Publisher) *event.Producer {
	return event.NewProducer(pub, newTestLogger())
}

func newTestCartService(t *testing.T, repo *countingCartRepo) *CartService {
	t.Helper()
	return NewCartService(repo, newTestProducer(pkgkafka.NopPublisher{}), newTestLogger(), testSession)
}

func qty(n int) *int { return &n }

func price(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

package fallback

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/vibecommerce/storefront/internal/domain"
	"github.com/vibecommerce/storefront/internal/repository"
	apperrors "github.com/vibecommerce/storefront/pkg/errors"
)

// --- Mock Repository ---

type mockCartRepository struct {
	mock.Mock
}

func (m *mockCartRepository) Get(ctx context.Context, sessionID string) (*domain.Cart, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Cart), args.Error(1)
}

func (m *mockCartRepository) Save(ctx context.Context, cart *domain.Cart) error {
	args := m.Called(ctx, cart)
	return args.Error(0)
}

func (m *mockCartRepository) Source() string { return repository.SourceMongo }

// --- Test Helpers ---

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func cartWithWidget(session string) *domain.Cart {
	c := domain.NewCart(session, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	c.AddLine(domain.CartLine{ProductID: 1, Name: "Widget", Price: decimal.NewFromInt(10), Quantity: 2})
	return c
}

// --- Tests ---

func TestCartRepository_ServesFromPrimary(t *testing.T) {
	primary := new(mockCartRepository)
	repo := NewCartRepository(primary, time.Second, newTestLogger())
	ctx := context.Background()

	stored := cartWithWidget("default")
	primary.On("Get", mock.Anything, "default").Return(stored, nil)
	primary.On("Save", mock.Anything, stored).Return(nil)

	got, err := repo.Get(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, stored, got)
	require.NoError(t, repo.Save(ctx, stored))

	assert.False(t, repo.Degraded())
	assert.Equal(t, repository.SourceMongo, repo.Source())
	primary.AssertExpectations(t)
}

func TestCartRepository_NotFoundDoesNotDegrade(t *testing.T) {
	primary := new(mockCartRepository)
	repo := NewCartRepository(primary, time.Second, newTestLogger())

	primary.On("Get", mock.Anything, "default").Return(nil, apperrors.NotFound("cart", "default"))

	_, err := repo.Get(context.Background(), "default")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.False(t, repo.Degraded())
}

func TestCartRepository_GetFaultSwitchesToMemoryWithLastSeenCart(t *testing.T) {
	primary := new(mockCartRepository)
	repo := NewCartRepository(primary, time.Second, newTestLogger())
	ctx := context.Background()

	stored := cartWithWidget("default")
	primary.On("Get", mock.Anything, "default").Return(stored, nil).Once()
	primary.On("Get", mock.Anything, "default").Return(nil, errors.New("connection refused")).Once()

	_, err := repo.Get(ctx, "default")
	require.NoError(t, err)

	before := testutil.ToFloat64(storageFallbackTotal.WithLabelValues(repository.SourceMongo, "get"))

	got, err := repo.Get(ctx, "default")
	require.NoError(t, err, "memory should serve the cart it was seeded with")
	assert.Equal(t, stored, got)
	assert.True(t, repo.Degraded())
	assert.Equal(t, repository.SourceMemory, repo.Source())
	assert.Equal(t, before+1, testutil.ToFloat64(storageFallbackTotal.WithLabelValues(repository.SourceMongo, "get")))

	// Later calls never touch the primary again.
	_, err = repo.Get(ctx, "default")
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, stored))
	primary.AssertNumberOfCalls(t, "Get", 2)
	primary.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestCartRepository_SaveFaultKeepsTheWrite(t *testing.T) {
	primary := new(mockCartRepository)
	repo := NewCartRepository(primary, time.Second, newTestLogger())
	ctx := context.Background()

	c := cartWithWidget("default")
	primary.On("Save", mock.Anything, c).Return(errors.New("server selection timeout"))

	require.NoError(t, repo.Save(ctx, c))
	assert.True(t, repo.Degraded())

	got, err := repo.Get(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, c, got)
}

func TestCartRepository_FaultIsLoggedAsStorageUnavailable(t *testing.T) {
	var buf bytes.Buffer
	primary := new(mockCartRepository)
	repo := NewCartRepository(primary, time.Second, slog.New(slog.NewJSONHandler(&buf, nil)))

	primary.On("Get", mock.Anything, "default").Return(nil, errors.New("connection refused"))

	_, err := repo.Get(context.Background(), "default")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Contains(t, buf.String(), domain.ErrStorageUnavailable.Error()+": connection refused")
	assert.Contains(t, buf.String(), `"store":"mongodb"`)
}

func TestCartRepository_DegradedMissingCartIsNotFound(t *testing.T) {
	primary := new(mockCartRepository)
	repo := NewCartRepository(primary, time.Second, newTestLogger())

	primary.On("Get", mock.Anything, "fresh").Return(nil, errors.New("boom"))

	_, err := repo.Get(context.Background(), "fresh")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.True(t, repo.Degraded())
}

func TestCartRepository_PrimaryCallIsBounded(t *testing.T) {
	primary := new(mockCartRepository)
	repo := NewCartRepository(primary, 20*time.Millisecond, newTestLogger())

	primary.On("Get", mock.Anything, "default").
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(nil, context.DeadlineExceeded)

	start := time.Now()
	_, err := repo.Get(context.Background(), "default")
	assert.Less(t, time.Since(start), time.Second)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.True(t, repo.Degraded())
}

func TestNewCartRepository_DefaultTimeout(t *testing.T) {
	repo := NewCartRepository(new(mockCartRepository), 0, newTestLogger())
	assert.Equal(t, defaultTimeout, repo.timeout)
}

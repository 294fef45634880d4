package fallback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vibecommerce/storefront/internal/domain"
	"github.com/vibecommerce/storefront/internal/repository"
	"github.com/vibecommerce/storefront/internal/repository/memory"
	apperrors "github.com/vibecommerce/storefront/pkg/errors"
)

// OrderRepository decorates a persistent order log. Writes always go to the
// primary so a failed write is reported to checkout. Every order the primary
// accepts is mirrored in memory, and a read the primary cannot answer is
// served from that mirror instead. Reads try the primary again every time.
type OrderRepository struct {
	primary repository.OrderRepository
	recent  *memory.OrderRepository
	timeout time.Duration
	logger  *slog.Logger
}

// NewOrderRepository wraps primary. A timeout <= 0 uses 5s.
func NewOrderRepository(primary repository.OrderRepository, timeout time.Duration, logger *slog.Logger) *OrderRepository {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &OrderRepository{
		primary: primary,
		recent:  memory.NewOrderRepository(),
		timeout: timeout,
		logger:  logger,
	}
}

func (r *OrderRepository) Append(ctx context.Context, order *domain.Order) error {
	pctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.primary.Append(pctx, order); err != nil {
		return err
	}
	// The primary rejects duplicates, so the mirror cannot hold one either.
	_ = r.recent.Append(ctx, order)
	return nil
}

func (r *OrderRepository) ListAll(ctx context.Context) ([]domain.Order, error) {
	orders, _, err := r.ListAllWithSource(ctx)
	return orders, err
}

// ListAllWithSource returns every order newest first together with the name
// of the backend that served them.
func (r *OrderRepository) ListAllWithSource(ctx context.Context) ([]domain.Order, string, error) {
	pctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	orders, err := r.primary.ListAll(pctx)
	if err == nil {
		return orders, r.Source(), nil
	}

	r.readFault(ctx, "list", err)
	orders, err = r.recent.ListAll(ctx)
	return orders, repository.SourceMemory, err
}

// Get returns the order from the primary. On a primary fault it is looked up
// among the orders mirrored by this process; an order missing there is
// reported as a storage failure, not as not-found.
func (r *OrderRepository) Get(ctx context.Context, orderID string) (*domain.Order, error) {
	pctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	order, err := r.primary.Get(pctx, orderID)
	if err == nil || errors.Is(err, apperrors.ErrNotFound) {
		return order, err
	}

	r.readFault(ctx, "get", err)
	if mirrored, merr := r.recent.Get(ctx, orderID); merr == nil {
		return mirrored, nil
	}
	return nil, fmt.Errorf("%w: %w", domain.ErrStorageUnavailable, err)
}

// Source names the primary backend.
func (r *OrderRepository) Source() string {
	return repository.SourceOf(r.primary)
}

func (r *OrderRepository) readFault(ctx context.Context, op string, cause error) {
	store := r.Source()
	storageFallbackTotal.WithLabelValues(store, op).Inc()
	r.logger.WarnContext(ctx, "order store unavailable, serving orders recorded by this process",
		slog.String("store", store),
		slog.String("operation", op),
		slog.String("error", fmt.Errorf("%w: %w", domain.ErrStorageUnavailable, cause).Error()),
	)
}

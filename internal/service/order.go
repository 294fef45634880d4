package service

import (
	"context"
	"errors"
	"time"

	"github.com/vibecommerce/storefront/internal/domain"
	"github.com/vibecommerce/storefront/internal/repository"
	apperrors "github.com/vibecommerce/storefront/pkg/errors"
)

// sourcedLister is implemented by repositories that can answer a list from
// more than one backend.
type sourcedLister interface {
	ListAllWithSource(ctx context.Context) ([]domain.Order, string, error)
}

// OrderList is the order history and the backend that served it.
type OrderList struct {
	Orders  []domain.Order
	Storage string
}

// OrderService reads the order history.
type OrderService struct {
	repo    repository.OrderRepository
	timeout time.Duration
}

// NewOrderService creates an order service. Reads are bounded by
// storeTimeout; a value <= 0 uses 5s.
func NewOrderService(repo repository.OrderRepository, storeTimeout time.Duration) *OrderService {
	if storeTimeout <= 0 {
		storeTimeout = defaultStoreTimeout
	}
	return &OrderService{
		repo:    repo,
		timeout: storeTimeout,
	}
}

// Source names the backend serving orders.
func (s *OrderService) Source() string { return repository.SourceOf(s.repo) }

// List returns every order, newest first.
func (s *OrderService) List(ctx context.Context) (OrderList, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var (
		orders []domain.Order
		source string
		err    error
	)
	if sl, ok := s.repo.(sourcedLister); ok {
		orders, source, err = sl.ListAllWithSource(ctx)
	} else {
		orders, err = s.repo.ListAll(ctx)
		source = s.Source()
	}
	if err != nil {
		return OrderList{}, apperrors.ServiceUnavailable("order history is unavailable, please retry",
			apperrors.Wrap(err, "list orders"))
	}
	return OrderList{Orders: orders, Storage: source}, nil
}

// Get returns one order by id.
func (s *OrderService) Get(ctx context.Context, orderID string) (*domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	order, err := s.repo.Get(ctx, orderID)
	switch {
	case err == nil:
		return order, nil
	case errors.Is(err, apperrors.ErrNotFound):
		return nil, apperrors.Wrap(err, "get order")
	default:
		return nil, apperrors.ServiceUnavailable("order lookup is unavailable, please retry",
			apperrors.Wrap(err, "get order"))
	}
}

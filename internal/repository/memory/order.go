package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/vibecommerce/storefront/internal/domain"
	"github.com/vibecommerce/storefront/internal/repository"
	apperrors "github.com/vibecommerce/storefront/pkg/errors"
)

// OrderRepository is an append-only in-memory order log.
type OrderRepository struct {
	mu     sync.RWMutex
	orders []domain.Order
	byID   map[string]int
}

// NewOrderRepository creates an empty in-memory order repository.
func NewOrderRepository() *OrderRepository {
	return &OrderRepository{byID: make(map[string]int)}
}

func (r *OrderRepository) Append(_ context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[order.OrderID]; exists {
		return fmt.Errorf("append order %s: %w", order.OrderID, domain.ErrDuplicateOrderID)
	}
	r.byID[order.OrderID] = len(r.orders)
	r.orders = append(r.orders, copyOrder(*order))
	return nil
}

// ListAll returns orders newest first. Orders sharing a timestamp keep
// reverse insertion order.
func (r *OrderRepository) ListAll(_ context.Context) ([]domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Order, 0, len(r.orders))
	for i := len(r.orders) - 1; i >= 0; i-- {
		out = append(out, copyOrder(r.orders[i]))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *OrderRepository) Get(_ context.Context, orderID string) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.byID[orderID]
	if !ok {
		return nil, apperrors.NotFound("order", orderID)
	}
	o := copyOrder(r.orders[i])
	return &o, nil
}

func (r *OrderRepository) Source() string { return repository.SourceMemory }

func copyOrder(o domain.Order) domain.Order {
	lines := make([]domain.CartLine, len(o.Lines))
	copy(lines, o.Lines)
	o.Lines = lines
	return o
}

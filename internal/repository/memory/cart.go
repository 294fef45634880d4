// Package memory holds process-lifetime repositories. They serve as the
// fallback when a persistent store is unavailable.
package memory

import (
	"context"
	"sync"

	"github.com/vibecommerce/storefront/internal/domain"
	"github.com/vibecommerce/storefront/internal/repository"
	apperrors "github.com/vibecommerce/storefront/pkg/errors"
)

// CartRepository keeps carts in a map. Stored carts are deep-copied in and
// out so callers never share memory with the store.
type CartRepository struct {
	mu    sync.RWMutex
	carts map[string]*domain.Cart
}

// NewCartRepository creates an empty in-memory cart repository.
func NewCartRepository() *CartRepository {
	return &CartRepository{carts: make(map[string]*domain.Cart)}
}

func (r *CartRepository) Get(_ context.Context, sessionID string) (*domain.Cart, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.carts[sessionID]
	if !ok {
		return nil, apperrors.NotFound("cart", sessionID)
	}
	return c.Clone(), nil
}

func (r *CartRepository) Save(_ context.Context, cart *domain.Cart) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.carts[cart.SessionID] = cart.Clone()
	return nil
}

func (r *CartRepository) Source() string { return repository.SourceMemory }

package repository

import (
	"context"

	"github.com/vibecommerce/storefront/internal/domain"
)

// CartRepository defines the interface for cart persistence operations.
type CartRepository interface {
	// Get retrieves the cart for a session. A missing cart yields an error
	// matching apperrors.ErrNotFound.
	Get(ctx context.Context, sessionID string) (*domain.Cart, error)

	// Save persists a cart, overwriting any existing cart for the session.
	Save(ctx context.Context, cart *domain.Cart) error
}

// OrderRepository defines the interface for the append-only order log.
type OrderRepository interface {
	// Append stores a new order. An existing order id yields
	// domain.ErrDuplicateOrderID; nothing is overwritten.
	Append(ctx context.Context, order *domain.Order) error

	// ListAll returns every order, newest first.
	ListAll(ctx context.Context) ([]domain.Order, error)

	// Get retrieves one order by id.
	Get(ctx context.Context, orderID string) (*domain.Order, error)
}

// Source names a storage backend for the health and debug endpoints.
type Source interface {
	Source() string
}

// Backend names reported by Source.
const (
	SourceMongo    = "mongodb"
	SourceRedis    = "redis"
	SourcePostgres = "postgres"
	SourceMemory   = "memory"
)

// SourceOf returns repo's backend name, or "unknown".
func SourceOf(repo any) string {
	if s, ok := repo.(Source); ok {
		return s.Source()
	}
	return "unknown"
}

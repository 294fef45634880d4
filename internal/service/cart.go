package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vibecommerce/storefront/internal/domain"
	"github.com/vibecommerce/storefront/internal/event"
	"github.com/vibecommerce/storefront/internal/repository"
	apperrors "github.com/vibecommerce/storefront/pkg/errors"
)

// AddItemInput holds the parameters for adding an item to the cart.
// A nil Quantity means 1.
type AddItemInput struct {
	ProductID int64
	Quantity  *int
	Name      string
	Price     decimal.Decimal
}

// CartService implements the business logic for the session cart. Every
// read-modify-write runs under mu, and so does checkout's persist-then-clear.
type CartService struct {
	mu sync.Mutex

	repo      repository.CartRepository
	producer  *event.Producer
	logger    *slog.Logger
	sessionID string
	now       func() time.Time
}

// NewCartService creates a cart service for the cart stored under sessionID.
func NewCartService(repo repository.CartRepository, producer *event.Producer, logger *slog.Logger, sessionID string) *CartService {
	return &CartService{
		repo:      repo,
		producer:  producer,
		logger:    logger,
		sessionID: sessionID,
		now:       storeNow,
	}
}

// storeNow is truncated to milliseconds, the resolution of BSON dates, so a
// cart reads back exactly as it was written.
func storeNow() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// SessionID returns the key of the cart this service manages.
func (s *CartService) SessionID() string { return s.sessionID }

// Source names the backend currently serving carts.
func (s *CartService) Source() string { return repository.SourceOf(s.repo) }

// GetCart returns the cart, creating and persisting an empty one first when
// none exists.
func (s *CartService) GetCart(ctx context.Context) (*domain.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

// AddItem merges a line into the cart. An existing line for the product has
// its quantity increased and keeps its original name and price.
func (s *CartService) AddItem(ctx context.Context, input AddItemInput) (*domain.Cart, error) {
	quantity := 1
	if input.Quantity != nil {
		quantity = *input.Quantity
	}
	if input.ProductID < 1 {
		return nil, apperrors.InvalidInput("product id must be a positive integer")
	}
	if quantity < 1 {
		return nil, apperrors.InvalidInput("quantity must be at least 1")
	}
	if quantity > domain.MaxLineQuantity {
		return nil, apperrors.InvalidInput(fmt.Sprintf("quantity must be at most %d", domain.MaxLineQuantity))
	}
	if input.Price.IsNegative() {
		return nil, apperrors.InvalidInput("price must not be negative")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cart, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	if !cart.CanAdd(input.ProductID, quantity) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("quantity for product %d would exceed %d", input.ProductID, domain.MaxLineQuantity))
	}

	merged := cart.AddLine(domain.CartLine{
		ProductID: input.ProductID,
		Name:      input.Name,
		Price:     input.Price,
		Quantity:  quantity,
	})

	if err := s.save(ctx, cart); err != nil {
		return nil, err
	}
	s.publishUpdated(ctx, cart)

	s.logger.InfoContext(ctx, "item added to cart",
		slog.Int64("product_id", input.ProductID),
		slog.Int("quantity", quantity),
		slog.Bool("merged", merged),
	)

	return cart, nil
}

// SetQuantity sets a line's quantity exactly. A quantity below 1 removes the
// line. An absent product leaves the cart untouched.
func (s *CartService) SetQuantity(ctx context.Context, productID int64, quantity int) (*domain.Cart, error) {
	if quantity > domain.MaxLineQuantity {
		return nil, apperrors.InvalidInput(fmt.Sprintf("quantity must be at most %d", domain.MaxLineQuantity))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if quantity < 1 {
		return s.removeLocked(ctx, productID)
	}

	cart, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	if !cart.SetQuantity(productID, quantity) {
		return cart, nil
	}

	if err := s.save(ctx, cart); err != nil {
		return nil, err
	}
	s.publishUpdated(ctx, cart)

	s.logger.InfoContext(ctx, "cart item quantity updated",
		slog.Int64("product_id", productID),
		slog.Int("quantity", quantity),
	)

	return cart, nil
}

// RemoveItem deletes the line for productID. Removing an absent product is a
// no-op.
func (s *CartService) RemoveItem(ctx context.Context, productID int64) (*domain.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(ctx, productID)
}

func (s *CartService) removeLocked(ctx context.Context, productID int64) (*domain.Cart, error) {
	cart, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	if !cart.RemoveLine(productID) {
		return cart, nil
	}

	if err := s.save(ctx, cart); err != nil {
		return nil, err
	}
	s.publishUpdated(ctx, cart)

	s.logger.InfoContext(ctx, "item removed from cart", slog.Int64("product_id", productID))

	return cart, nil
}

// ClearCart empties the cart.
func (s *CartService) ClearCart(ctx context.Context) (*domain.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clearLocked(ctx)
}

func (s *CartService) clearLocked(ctx context.Context) (*domain.Cart, error) {
	cart, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	cart.Clear()
	if err := s.save(ctx, cart); err != nil {
		return nil, err
	}

	if err := s.producer.PublishCartCleared(ctx, s.sessionID); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish cart.cleared event",
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "cart cleared")

	return cart, nil
}

// CommitAndClear runs commit while holding the cart lock and clears the cart
// only if commit succeeds, so no mutation can interleave between the two.
// committed reports whether commit succeeded; err is commit's error when it
// did not, or the clear error when it did.
func (s *CartService) CommitAndClear(ctx context.Context, commit func(context.Context) error) (committed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := commit(ctx); err != nil {
		return false, err
	}
	if _, err := s.clearLocked(ctx); err != nil {
		return true, fmt.Errorf("clear cart after commit: %w", err)
	}
	return true, nil
}

// load must be called with mu held.
func (s *CartService) load(ctx context.Context) (*domain.Cart, error) {
	cart, err := s.repo.Get(ctx, s.sessionID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, apperrors.Wrap(err, "get cart")
	}

	cart = domain.NewCart(s.sessionID, s.now())
	if err := s.repo.Save(ctx, cart); err != nil {
		return nil, apperrors.Wrap(err, "create cart")
	}
	s.logger.DebugContext(ctx, "created empty cart")
	return cart, nil
}

func (s *CartService) save(ctx context.Context, cart *domain.Cart) error {
	cart.UpdatedAt = s.now()
	if err := s.repo.Save(ctx, cart); err != nil {
		return apperrors.Wrap(err, "save cart")
	}
	return nil
}

func (s *CartService) publishUpdated(ctx context.Context, cart *domain.Cart) {
	if err := s.producer.PublishCartUpdated(ctx, cart); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish cart.updated event",
			slog.String("error", err.Error()),
		)
	}
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/vibecommerce/storefront/internal/domain"
	"github.com/vibecommerce/storefront/internal/event"
	"github.com/vibecommerce/storefront/internal/repository"
	apperrors "github.com/vibecommerce/storefront/pkg/errors"
	"github.com/vibecommerce/storefront/pkg/tracing"
)

const defaultStoreTimeout = 5 * time.Second

// CheckoutInput is what the shopper submits at checkout: the lines to charge
// and where to ship them.
type CheckoutInput struct {
	Lines    []domain.CartLine
	Customer domain.Customer
}

// CheckoutService turns the submitted lines into a confirmed order and
// empties the cart.
type CheckoutService struct {
	carts    *CartService
	orders   repository.OrderRepository
	producer *event.Producer
	logger   *slog.Logger
	timeout  time.Duration

	newOrderID domain.OrderIDFunc
	now        func() time.Time
}

// CheckoutOption customises a CheckoutService.
type CheckoutOption func(*CheckoutService)

// WithOrderIDFunc replaces the order id generator.
func WithOrderIDFunc(fn domain.OrderIDFunc) CheckoutOption {
	return func(s *CheckoutService) { s.newOrderID = fn }
}

// WithClock replaces the clock used to stamp orders.
func WithClock(now func() time.Time) CheckoutOption {
	return func(s *CheckoutService) { s.now = now }
}

// NewCheckoutService creates a checkout service. Order writes are bounded by
// storeTimeout; a value <= 0 uses 5s.
func NewCheckoutService(
	carts *CartService,
	orders repository.OrderRepository,
	producer *event.Producer,
	logger *slog.Logger,
	storeTimeout time.Duration,
	opts ...CheckoutOption,
) *CheckoutService {
	if storeTimeout <= 0 {
		storeTimeout = defaultStoreTimeout
	}
	s := &CheckoutService{
		carts:      carts,
		orders:     orders,
		producer:   producer,
		logger:     logger,
		timeout:    storeTimeout,
		newOrderID: domain.NewOrderID,
		now:        storeNow,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Checkout validates the input, stores the order and clears the cart. The
// order write and the cart clear happen under the cart lock. When the write
// fails the cart is left as it was.
func (s *CheckoutService) Checkout(ctx context.Context, input CheckoutInput) (*domain.Order, error) {
	if err := validateCheckout(input); err != nil {
		return nil, err
	}

	lines := make([]domain.CartLine, len(input.Lines))
	copy(lines, input.Lines)

	now := s.now()
	order := &domain.Order{
		OrderID: s.newOrderID(now),
		Customer: domain.Customer{
			Name:    strings.TrimSpace(input.Customer.Name),
			Email:   strings.TrimSpace(input.Customer.Email),
			Address: strings.TrimSpace(input.Customer.Address),
		},
		Lines:     lines,
		Total:     domain.LinesTotal(lines),
		Status:    domain.OrderStatusConfirmed,
		CreatedAt: now,
	}

	committed, err := s.persistOrder(ctx, order)
	if !committed {
		s.logger.ErrorContext(ctx, "failed to persist order",
			slog.String("order_id", order.OrderID),
			slog.String("error", err.Error()),
		)
		if errors.Is(err, domain.ErrDuplicateOrderID) {
			return nil, apperrors.Internal(err)
		}
		return nil, apperrors.New(http.StatusServiceUnavailable, "ORDER_PERSIST_FAILED",
			"your order could not be saved, please retry",
			fmt.Errorf("%w: %w: %w", domain.ErrOrderPersistFailure, domain.ErrStorageUnavailable, err))
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "order stored but cart was not cleared",
			slog.String("order_id", order.OrderID),
			slog.String("error", err.Error()),
		)
	}

	if err := s.producer.PublishOrderConfirmed(ctx, order); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish order.confirmed event",
			slog.String("order_id", order.OrderID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "order confirmed",
		slog.String("order_id", order.OrderID),
		slog.Int("lines", len(order.Lines)),
		slog.String("total", order.Total.StringFixed(2)),
	)

	return order, nil
}

// persistOrder appends the order and clears the cart in one span.
func (s *CheckoutService) persistOrder(ctx context.Context, order *domain.Order) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "checkout.persist_order",
		attribute.String("order.id", order.OrderID),
		attribute.Int("order.lines", len(order.Lines)),
	)
	defer span.End()

	committed, err := s.carts.CommitAndClear(ctx, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		return s.orders.Append(ctx, order)
	})
	tracing.RecordError(span, err)
	return committed, err
}

func validateCheckout(input CheckoutInput) error {
	if len(input.Lines) == 0 {
		return invalidCheckout("cart is empty")
	}
	for i, l := range input.Lines {
		if l.Quantity < 1 {
			return invalidCheckout(fmt.Sprintf("item %d: quantity must be at least 1", i))
		}
		if l.Quantity > domain.MaxLineQuantity {
			return invalidCheckout(fmt.Sprintf("item %d: quantity must be at most %d", i, domain.MaxLineQuantity))
		}
		if l.Price.IsNegative() {
			return invalidCheckout(fmt.Sprintf("item %d: price must not be negative", i))
		}
	}

	var missing []string
	if strings.TrimSpace(input.Customer.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(input.Customer.Email) == "" {
		missing = append(missing, "email")
	}
	if strings.TrimSpace(input.Customer.Address) == "" {
		missing = append(missing, "address")
	}
	if len(missing) > 0 {
		return invalidCheckout("customer " + strings.Join(missing, ", ") + " required")
	}
	return nil
}

func invalidCheckout(message string) *apperrors.AppError {
	return apperrors.New(http.StatusBadRequest, "INVALID_CHECKOUT_REQUEST", message, domain.ErrInvalidCheckoutRequest)
}

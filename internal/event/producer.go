package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/vibecommerce/storefront/internal/domain"
	pkgkafka "github.com/vibecommerce/storefront/pkg/kafka"
	"github.com/vibecommerce/storefront/pkg/logger"
)

// Aggregate type constants.
const (
	AggregateTypeCart  = "cart"
	AggregateTypeOrder = "order"
)

// Kafka topics for storefront domain events.
var (
	TopicCartUpdated    = pkgkafka.Topic(AggregateTypeCart, "updated")
	TopicCartCleared    = pkgkafka.Topic(AggregateTypeCart, "cleared")
	TopicOrderConfirmed = pkgkafka.Topic(AggregateTypeOrder, "confirmed")
)

// SourceStorefront identifies events originating from this service.
const SourceStorefront = "storefront"

// LineData is one cart or order line inside an event payload.
type LineData struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

// CartUpdatedData is the payload for a cart.updated event.
type CartUpdatedData struct {
	SessionID string          `json:"session_id"`
	Items     []LineData      `json:"items"`
	ItemCount int             `json:"item_count"`
	Total     decimal.Decimal `json:"total"`
}

// CartClearedData is the payload for a cart.cleared event.
type CartClearedData struct {
	SessionID string `json:"session_id"`
}

// OrderConfirmedData is the payload for an order.confirmed event.
type OrderConfirmedData struct {
	OrderID       string          `json:"order_id"`
	CustomerEmail string          `json:"customer_email"`
	Items         []LineData      `json:"items"`
	Total         decimal.Decimal `json:"total"`
}

// Producer publishes storefront domain events.
type Producer struct {
	publisher pkgkafka.Publisher
	logger    *slog.Logger
}

// NewProducer creates a new event producer. Pass pkgkafka.NopPublisher{}
// when messaging is disabled.
func NewProducer(publisher pkgkafka.Publisher, logger *slog.Logger) *Producer {
	return &Producer{
		publisher: publisher,
		logger:    logger,
	}
}

// PublishCartUpdated publishes a cart.updated event.
func (p *Producer) PublishCartUpdated(ctx context.Context, cart *domain.Cart) error {
	data := CartUpdatedData{
		SessionID: cart.SessionID,
		Items:     lineData(cart.Lines),
		ItemCount: cart.ItemCount(),
		Total:     cart.Total(),
	}

	if err := p.publish(ctx, TopicCartUpdated, cart.SessionID, AggregateTypeCart, data); err != nil {
		return err
	}

	p.logger.DebugContext(ctx, "published cart.updated event",
		slog.String("session_id", cart.SessionID),
		slog.Int("item_count", data.ItemCount),
	)
	return nil
}

// PublishCartCleared publishes a cart.cleared event.
func (p *Producer) PublishCartCleared(ctx context.Context, sessionID string) error {
	data := CartClearedData{SessionID: sessionID}
	if err := p.publish(ctx, TopicCartCleared, sessionID, AggregateTypeCart, data); err != nil {
		return err
	}

	p.logger.DebugContext(ctx, "published cart.cleared event", slog.String("session_id", sessionID))
	return nil
}

// PublishOrderConfirmed publishes an order.confirmed event.
func (p *Producer) PublishOrderConfirmed(ctx context.Context, order *domain.Order) error {
	data := OrderConfirmedData{
		OrderID:       order.OrderID,
		CustomerEmail: order.Customer.Email,
		Items:         lineData(order.Lines),
		Total:         order.Total,
	}
	if err := p.publish(ctx, TopicOrderConfirmed, order.OrderID, AggregateTypeOrder, data); err != nil {
		return err
	}

	p.logger.DebugContext(ctx, "published order.confirmed event", slog.String("order_id", order.OrderID))
	return nil
}

func (p *Producer) publish(ctx context.Context, topic, aggregateID, aggregateType string, data any) error {
	event, err := pkgkafka.NewEvent(topic, aggregateID, aggregateType, SourceStorefront, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		event.WithCorrelationID(id)
	}

	if err := p.publisher.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}
	return nil
}

func lineData(lines []domain.CartLine) []LineData {
	items := make([]LineData, len(lines))
	for i, l := range lines {
		items[i] = LineData{
			ProductID: l.ProductID,
			Name:      l.Name,
			Price:     l.Price,
			Quantity:  l.Quantity,
		}
	}
	return items
}

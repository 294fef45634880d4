package mongo

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/vibecommerce/storefront/internal/domain"
)

// Money is stored as Decimal128 so totals survive a round trip exactly.

type lineDocument struct {
	ProductID int64                `bson:"product_id"`
	Name      string               `bson:"name"`
	Price     primitive.Decimal128 `bson:"price"`
	Quantity  int                  `bson:"quantity"`
}

type cartDocument struct {
	SessionID string         `bson:"session_id"`
	Items     []lineDocument `bson:"items"`
	CreatedAt time.Time      `bson:"created_at"`
	UpdatedAt time.Time      `bson:"updated_at"`
}

type customerDocument struct {
	Name    string `bson:"name"`
	Email   string `bson:"email"`
	Address string `bson:"address"`
}

type orderDocument struct {
	OrderID   string               `bson:"order_id"`
	Customer  customerDocument     `bson:"customer"`
	Items     []lineDocument       `bson:"items"`
	Total     primitive.Decimal128 `bson:"total"`
	Status    string               `bson:"status"`
	CreatedAt time.Time            `bson:"created_at"`
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("encode amount %s: %w", d, err)
	}
	return v, nil
}

func fromDecimal128(v primitive.Decimal128) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("decode amount %s: %w", v, err)
	}
	return d, nil
}

func toLineDocuments(lines []domain.CartLine) ([]lineDocument, error) {
	docs := make([]lineDocument, 0, len(lines))
	for _, l := range lines {
		price, err := toDecimal128(l.Price)
		if err != nil {
			return nil, err
		}
		docs = append(docs, lineDocument{
			ProductID: l.ProductID,
			Name:      l.Name,
			Price:     price,
			Quantity:  l.Quantity,
		})
	}
	return docs, nil
}

func fromLineDocuments(docs []lineDocument) ([]domain.CartLine, error) {
	lines := make([]domain.CartLine, 0, len(docs))
	for _, d := range docs {
		price, err := fromDecimal128(d.Price)
		if err != nil {
			return nil, err
		}
		lines = append(lines, domain.CartLine{
			ProductID: d.ProductID,
			Name:      d.Name,
			Price:     price,
			Quantity:  d.Quantity,
		})
	}
	return lines, nil
}

func toCartDocument(c *domain.Cart) (*cartDocument, error) {
	items, err := toLineDocuments(c.Lines)
	if err != nil {
		return nil, err
	}
	return &cartDocument{
		SessionID: c.SessionID,
		Items:     items,
		CreatedAt: c.CreatedAt.UTC(),
		UpdatedAt: c.UpdatedAt.UTC(),
	}, nil
}

func (d *cartDocument) toDomain() (*domain.Cart, error) {
	lines, err := fromLineDocuments(d.Items)
	if err != nil {
		return nil, err
	}
	return &domain.Cart{
		SessionID: d.SessionID,
		Lines:     lines,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}, nil
}

func toOrderDocument(o *domain.Order) (*orderDocument, error) {
	items, err := toLineDocuments(o.Lines)
	if err != nil {
		return nil, err
	}
	total, err := toDecimal128(o.Total)
	if err != nil {
		return nil, err
	}
	return &orderDocument{
		OrderID:   o.OrderID,
		Customer:  customerDocument(o.Customer),
		Items:     items,
		Total:     total,
		Status:    o.Status,
		CreatedAt: o.CreatedAt.UTC(),
	}, nil
}

func (d *orderDocument) toDomain() (*domain.Order, error) {
	lines, err := fromLineDocuments(d.Items)
	if err != nil {
		return nil, err
	}
	total, err := fromDecimal128(d.Total)
	if err != nil {
		return nil, err
	}
	return &domain.Order{
		OrderID:   d.OrderID,
		Customer:  domain.Customer(d.Customer),
		Lines:     lines,
		Total:     total,
		Status:    d.Status,
		CreatedAt: d.CreatedAt,
	}, nil
}

package http

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vibecommerce/storefront/internal/domain"
)

// money renders an amount as a bare JSON number with two decimals.
func money(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}

type lineView struct {
	ProductID int64       `json:"product_id"`
	Name      string      `json:"name"`
	Price     json.Number `json:"price"`
	Quantity  int         `json:"quantity"`
	Subtotal  json.Number `json:"subtotal"`
}

type cartView struct {
	SessionID string      `json:"session_id"`
	Items     []lineView  `json:"items"`
	Total     json.Number `json:"total"`
	ItemCount int         `json:"item_count"`
	UpdatedAt time.Time   `json:"updated_at"`
}

type orderView struct {
	OrderID   string          `json:"order_id"`
	Customer  domain.Customer `json:"customer"`
	Items     []lineView      `json:"items"`
	Total     json.Number     `json:"total"`
	Status    string          `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
}

type catalogItemView struct {
	ID          int64          `json:"id"`
	Name        string         `json:"name"`
	Price       json.Number    `json:"price"`
	Description string         `json:"description"`
	Image       string         `json:"image,omitempty"`
	Category    string         `json:"category,omitempty"`
	Rating      *domain.Rating `json:"rating,omitempty"`
}

func newLineViews(lines []domain.CartLine) []lineView {
	views := make([]lineView, len(lines))
	for i, l := range lines {
		views[i] = lineView{
			ProductID: l.ProductID,
			Name:      l.Name,
			Price:     money(l.Price),
			Quantity:  l.Quantity,
			Subtotal:  money(l.Subtotal()),
		}
	}
	return views
}

func newCartView(c *domain.Cart) cartView {
	return cartView{
		SessionID: c.SessionID,
		Items:     newLineViews(c.Lines),
		Total:     money(c.Total()),
		ItemCount: c.ItemCount(),
		UpdatedAt: c.UpdatedAt,
	}
}

func newOrderView(o *domain.Order) orderView {
	return orderView{
		OrderID:   o.OrderID,
		Customer:  o.Customer,
		Items:     newLineViews(o.Lines),
		Total:     money(o.Total),
		Status:    o.Status,
		CreatedAt: o.CreatedAt,
	}
}

func newCatalogItemView(item domain.CatalogItem) catalogItemView {
	return catalogItemView{
		ID:          item.ID,
		Name:        item.Name,
		Price:       money(item.Price),
		Description: item.Description,
		Image:       item.Image,
		Category:    item.Category,
		Rating:      item.Rating,
	}
}

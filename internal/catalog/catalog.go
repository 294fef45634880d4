// Package catalog supplies the purchasable product list. Providers never
// fail outward: when the upstream is unavailable they serve a built-in list.
package catalog

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/vibecommerce/storefront/internal/domain"
)

// Provider lists catalog items.
type Provider interface {
	// List returns the current catalog in upstream order.
	List(ctx context.Context) []domain.CatalogItem

	// Get returns the item with the given id from the current catalog.
	Get(ctx context.Context, id int64) (domain.CatalogItem, bool)
}

var fallbackItems = []domain.CatalogItem{
	{ID: 1, Name: "Wireless Headphones", Price: decimal.RequireFromString("99.99"), Description: "High-quality wireless headphones with noise cancellation", Image: "🎧"},
	{ID: 2, Name: "Smart Watch", Price: decimal.RequireFromString("199.99"), Description: "Feature-rich smartwatch with health monitoring", Image: "⌚"},
	{ID: 3, Name: "Laptop Backpack", Price: decimal.RequireFromString("49.99"), Description: "Durable laptop backpack with USB charging port", Image: "🎒"},
	{ID: 4, Name: "Bluetooth Speaker", Price: decimal.RequireFromString("79.99"), Description: "Portable Bluetooth speaker with 360° sound", Image: "🔊"},
	{ID: 5, Name: "Phone Case", Price: decimal.RequireFromString("24.99"), Description: "Protective phone case with sleek design", Image: "📱"},
	{ID: 6, Name: "Gaming Mouse", Price: decimal.RequireFromString("59.99"), Description: "Precision gaming mouse with RGB lighting", Image: "🖱️"},
	{ID: 7, Name: "Mechanical Keyboard", Price: decimal.RequireFromString("89.99"), Description: "Tactile mechanical keyboard for typing enthusiasts", Image: "⌨️"},
	{ID: 8, Name: "USB-C Hub", Price: decimal.RequireFromString("39.99"), Description: "Multi-port USB-C hub for all your devices", Image: "🔌"},
}

// Fallback returns a copy of the built-in catalog.
func Fallback() []domain.CatalogItem {
	out := make([]domain.CatalogItem, len(fallbackItems))
	copy(out, fallbackItems)
	return out
}

// Static serves only the built-in catalog.
type Static struct{}

// NewStatic creates a provider over the built-in catalog.
func NewStatic() Static { return Static{} }

func (Static) List(context.Context) []domain.CatalogItem {
	return Fallback()
}

func (Static) Get(_ context.Context, id int64) (domain.CatalogItem, bool) {
	return find(fallbackItems, id)
}

func find(items []domain.CatalogItem, id int64) (domain.CatalogItem, bool) {
	for _, it := range items {
		if it.ID == id {
			return it, true
		}
	}
	return domain.CatalogItem{}, false
}

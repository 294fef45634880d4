package domain

import "github.com/shopspring/decimal"

// CatalogItem is a purchasable product as served by the catalog provider.
type CatalogItem struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description"`
	Image       string          `json:"image,omitempty"`
	Category    string          `json:"category,omitempty"`
	Rating      *Rating         `json:"rating,omitempty"`
}

// Rating is the upstream review summary for a catalog item.
type Rating struct {
	Rate  float64 `json:"rate"`
	Count int     `json:"count"`
}

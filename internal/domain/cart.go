package domain

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// MaxLineQuantity is the largest quantity a single line may hold. It matches
// the 32-bit quantity columns of the persistent order stores.
const MaxLineQuantity = math.MaxInt32

// CartLine is one product in the cart. Name and Price are captured when the
// line is first added and are not refreshed afterwards.
type CartLine struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

// Subtotal returns price × quantity.
func (l CartLine) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart is the single pending purchase of a session. Lines keep insertion
// order and hold at most one entry per product.
type Cart struct {
	SessionID string     `json:"session_id"`
	Lines     []CartLine `json:"items"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// NewCart returns an empty cart for sessionID stamped with now.
func NewCart(sessionID string, now time.Time) *Cart {
	return &Cart{
		SessionID: sessionID,
		Lines:     []CartLine{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Total is always derived from the lines; it is never stored.
func (c *Cart) Total() decimal.Decimal {
	return LinesTotal(c.Lines)
}

// ItemCount returns the sum of line quantities.
func (c *Cart) ItemCount() int {
	var count int
	for _, l := range c.Lines {
		count += l.Quantity
	}
	return count
}

// FindLine returns the index of the line for productID, or -1.
func (c *Cart) FindLine(productID int64) int {
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// AddLine merges line into the cart. An existing line for the same product
// has its quantity increased and keeps its original name and price;
// otherwise line is appended. Reports whether a merge happened.
func (c *Cart) AddLine(line CartLine) bool {
	if i := c.FindLine(line.ProductID); i >= 0 {
		c.Lines[i].Quantity += line.Quantity
		return true
	}
	c.Lines = append(c.Lines, line)
	return false
}

// CanAdd reports whether adding quantity of productID keeps the line within
// MaxLineQuantity.
func (c *Cart) CanAdd(productID int64, quantity int) bool {
	if quantity > MaxLineQuantity {
		return false
	}
	if i := c.FindLine(productID); i >= 0 {
		return c.Lines[i].Quantity <= MaxLineQuantity-quantity
	}
	return true
}

// SetQuantity sets the quantity of an existing line. It reports false and
// leaves the cart untouched when the product is absent. quantity must be >= 1.
func (c *Cart) SetQuantity(productID int64, quantity int) bool {
	i := c.FindLine(productID)
	if i < 0 {
		return false
	}
	c.Lines[i].Quantity = quantity
	return true
}

// RemoveLine deletes the line for productID, reporting whether one existed.
func (c *Cart) RemoveLine(productID int64) bool {
	i := c.FindLine(productID)
	if i < 0 {
		return false
	}
	c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
	return true
}

// Clear empties the cart. The cart itself is kept.
func (c *Cart) Clear() {
	c.Lines = []CartLine{}
}

// Clone returns a deep copy so callers can't alias service-owned state.
func (c *Cart) Clone() *Cart {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Lines = make([]CartLine, len(c.Lines))
	copy(cp.Lines, c.Lines)
	return &cp
}

// LinesTotal returns Σ price × quantity.
func LinesTotal(lines []CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

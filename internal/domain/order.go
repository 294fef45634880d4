package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatusConfirmed is the only status an order can have.
const OrderStatusConfirmed = "confirmed"

// Customer is the contact and shipping information given at checkout.
type Customer struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Address string `json:"address"`
}

// Order is an immutable receipt of a completed checkout.
type Order struct {
	OrderID   string          `json:"order_id"`
	Customer  Customer        `json:"customer"`
	Lines     []CartLine      `json:"items"`
	Total     decimal.Decimal `json:"total"`
	Status    string          `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
}

// OrderIDFunc mints an order id for a checkout happening at now.
type OrderIDFunc func(now time.Time) string

// NewOrderID returns "ORD-<unix millis>-<8 upper-case hex chars>". The hex
// part comes from a random UUID so ids minted in the same millisecond differ.
func NewOrderID(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("ORD-%d-%s", now.UnixMilli(), suffix)
}

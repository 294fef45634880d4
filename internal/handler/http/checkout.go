package http

import (
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/vibecommerce/storefront/internal/domain"
	"github.com/vibecommerce/storefront/internal/service"
	"github.com/vibecommerce/storefront/pkg/httputil"
)

// CheckoutHandler handles POST /api/cart/checkout.
type CheckoutHandler struct {
	service *service.CheckoutService
	logger  *slog.Logger
}

// NewCheckoutHandler creates a new checkout HTTP handler.
func NewCheckoutHandler(svc *service.CheckoutService, logger *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{service: svc, logger: logger}
}

// CheckoutItemRequest is one line the shopper is paying for.
type CheckoutItemRequest struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

// CustomerInfoRequest is the shopper's contact and shipping details.
type CustomerInfoRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Address string `json:"address"`
}

// CheckoutRequest is the JSON request body for checkout. Field checks are
// done by the checkout service so every rejection carries the
// INVALID_CHECKOUT_REQUEST code.
type CheckoutRequest struct {
	CartItems    []CheckoutItemRequest `json:"cart_items"`
	CustomerInfo CustomerInfoRequest   `json:"customer_info"`
}

// Checkout handles POST /api/cart/checkout and answers with the receipt.
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	lines := make([]domain.CartLine, len(req.CartItems))
	for i, item := range req.CartItems {
		lines[i] = domain.CartLine{
			ProductID: item.ProductID,
			Name:      item.Name,
			Price:     item.Price,
			Quantity:  item.Quantity,
		}
	}

	order, err := h.service.Checkout(r.Context(), service.CheckoutInput{
		Lines:    lines,
		Customer: domain.Customer(req.CustomerInfo),
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusCreated, newOrderView(order))
}

package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vibecommerce/storefront/internal/service"
	"github.com/vibecommerce/storefront/pkg/httputil"
)

// OrderHandler serves the order history.
type OrderHandler struct {
	service *service.OrderService
	logger  *slog.Logger
}

// NewOrderHandler creates a new order HTTP handler.
func NewOrderHandler(svc *service.OrderService, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{service: svc, logger: logger}
}

type orderListView struct {
	Storage string      `json:"storage"`
	Orders  []orderView `json:"orders"`
}

// ListOrders handles GET /api/orders, newest first.
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	views := make([]orderView, len(list.Orders))
	for i := range list.Orders {
		views[i] = newOrderView(&list.Orders[i])
	}
	httputil.WriteData(w, http.StatusOK, orderListView{
		Storage: list.Storage,
		Orders:  views,
	})
}

// GetOrder handles GET /api/orders/{orderId}.
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.service.Get(r.Context(), chi.URLParam(r, "orderId"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, newOrderView(order))
}

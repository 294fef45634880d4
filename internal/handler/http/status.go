package http

import (
	"net/http"
	"time"

	"github.com/vibecommerce/storefront/pkg/httputil"
)

// StatusHandler serves GET /api/health: a storefront-level status that
// reports which stores are serving requests. Dependency readiness lives at
// /health/ready.
type StatusHandler struct {
	cartSource  func() string
	orderSource func() string
	now         func() time.Time
}

// NewStatusHandler creates a status handler reading the current backends
// from cartSource and orderSource.
func NewStatusHandler(cartSource, orderSource func() string) *StatusHandler {
	return &StatusHandler{
		cartSource:  cartSource,
		orderSource: orderSource,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

type statusView struct {
	Status     string    `json:"status"`
	Database   string    `json:"database"`
	Orders     string    `json:"orders"`
	ServerTime time.Time `json:"server_time"`
}

func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteData(w, http.StatusOK, statusView{
		Status:     "OK",
		Database:   h.cartSource(),
		Orders:     h.orderSource(),
		ServerTime: h.now(),
	})
}

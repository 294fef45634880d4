package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/vibecommerce/storefront/internal/catalog"
	apperrors "github.com/vibecommerce/storefront/pkg/errors"
	"github.com/vibecommerce/storefront/pkg/httputil"
)

// CatalogHandler serves the product catalog.
type CatalogHandler struct {
	provider catalog.Provider
	logger   *slog.Logger
}

// NewCatalogHandler creates a new catalog HTTP handler.
func NewCatalogHandler(provider catalog.Provider, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{provider: provider, logger: logger}
}

// ListProducts handles GET /api/products. It always answers 200: upstream
// failures are served from the built-in list.
func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	items := h.provider.List(r.Context())

	views := make([]catalogItemView, len(items))
	for i, item := range items {
		views[i] = newCatalogItemView(item)
	}
	httputil.WriteData(w, http.StatusOK, views)
}

// GetProduct handles GET /api/products/{productId}.
func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseID(w, "productId", chi.URLParam(r, "productId"))
	if !ok {
		return
	}

	item, found := h.provider.Get(r.Context(), id)
	if !found {
		httputil.WriteError(w, r, apperrors.NotFound("product", strconv.FormatInt(id, 10)), h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, newCatalogItemView(item))
}

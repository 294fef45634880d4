package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/vibecommerce/storefront/internal/domain"
	"github.com/vibecommerce/storefront/pkg/httpclient"
)

const maxCatalogBody = 4 << 20

var catalogFallbackTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "storefront_catalog_fallback_total",
		Help: "Number of catalog requests served from the built-in list.",
	},
	[]string{"reason"},
)

// HTTPConfig configures the upstream catalog fetch.
type HTTPConfig struct {
	URL        string
	Timeout    time.Duration
	MaxRetries int
}

// upstreamItem is the Fake Store API product shape.
type upstreamItem struct {
	ID          int64           `json:"id"`
	Title       string          `json:"title"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Image       string          `json:"image"`
	Rating      *domain.Rating  `json:"rating"`
}

// HTTPProvider fetches the catalog from an HTTP upstream through a circuit
// breaker. Concurrent List calls share one in-flight fetch.
type HTTPProvider struct {
	url     string
	timeout time.Duration
	client  *httpclient.CircuitBreakerClient
	group   singleflight.Group
	logger  *slog.Logger
}

// NewHTTPProvider creates a provider for cfg.URL.
func NewHTTPProvider(cfg HTTPConfig, logger *slog.Logger) *HTTPProvider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	clientCfg := httpclient.DefaultConfig()
	clientCfg.Timeout = cfg.Timeout
	clientCfg.MaxRetries = cfg.MaxRetries

	cb := httpclient.NewCircuitBreakerClient(
		httpclient.New(clientCfg),
		httpclient.DefaultCircuitBreakerConfig("catalog"),
		logger,
	)

	return &HTTPProvider{
		url:     cfg.URL,
		timeout: cfg.Timeout,
		client:  cb,
		logger:  logger,
	}
}

// List returns the upstream catalog, or the built-in list when the fetch
// fails for any reason.
func (p *HTTPProvider) List(ctx context.Context) []domain.CatalogItem {
	ch := p.group.DoChan("catalog", func() (any, error) {
		// The shared fetch must outlive any single caller's cancellation.
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
		defer cancel()
		return p.fetch(fetchCtx)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return p.fallback(ctx, res.Err)
		}
		items := res.Val.([]domain.CatalogItem)
		out := make([]domain.CatalogItem, len(items))
		copy(out, items)
		return out
	case <-ctx.Done():
		return p.fallback(ctx, ctx.Err())
	}
}

// Get looks id up in the current catalog.
func (p *HTTPProvider) Get(ctx context.Context, id int64) (domain.CatalogItem, bool) {
	return find(p.List(ctx), id)
}

func (p *HTTPProvider) fetch(ctx context.Context) ([]domain.CatalogItem, error) {
	resp, err := p.client.Get(ctx, p.url)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if !httpclient.IsSuccess(resp.StatusCode) {
		return nil, fmt.Errorf("%w: %w", domain.ErrUpstreamUnavailable, httpclient.ParseResponseError(resp, "catalog"))
	}

	var raw []upstreamItem
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxCatalogBody)).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: decode catalog: %w", domain.ErrUpstreamUnavailable, err)
	}

	items := make([]domain.CatalogItem, 0, len(raw))
	for _, u := range raw {
		items = append(items, domain.CatalogItem{
			ID:          u.ID,
			Name:        u.Title,
			Price:       u.Price,
			Description: u.Description,
			Image:       u.Image,
			Category:    u.Category,
			Rating:      u.Rating,
		})
	}
	return items, nil
}

func (p *HTTPProvider) fallback(ctx context.Context, err error) []domain.CatalogItem {
	reason := fallbackReason(err)
	catalogFallbackTotal.WithLabelValues(reason).Inc()

	p.logger.WarnContext(ctx, "catalog upstream unavailable, serving fallback products",
		slog.String("url", p.url),
		slog.String("reason", reason),
		slog.String("error", err.Error()),
	)
	return Fallback()
}

func fallbackReason(err error) string {
	var (
		statusErr *httpclient.StatusError
		netErr    net.Error
	)
	switch {
	case errors.Is(err, httpclient.ErrCircuitOpen):
		return "circuit_open"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "timeout"
	case errors.As(err, &netErr) && netErr.Timeout():
		return "timeout"
	case errors.As(err, &statusErr):
		return "bad_status"
	default:
		return "upstream_error"
	}
}

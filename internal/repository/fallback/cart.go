// Package fallback keeps the storefront serving from process memory when a
// persistent store faults.
package fallback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vibecommerce/storefront/internal/domain"
	"github.com/vibecommerce/storefront/internal/repository"
	"github.com/vibecommerce/storefront/internal/repository/memory"
	apperrors "github.com/vibecommerce/storefront/pkg/errors"
)

const defaultTimeout = 5 * time.Second

var storageFallbackTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "storefront_storage_fallback_total",
		Help: "Store operations answered from in-memory storage after a persistent store fault.",
	},
	[]string{"store", "operation"},
)

// CartRepository decorates a persistent cart repository. Every primary call
// is bounded by a timeout. Any primary error other than not-found degrades
// the repository: memory is seeded with the carts last seen from the primary
// and serves this call and every later one. There is no automatic recovery.
type CartRepository struct {
	primary repository.CartRepository
	memory  *memory.CartRepository
	timeout time.Duration
	logger  *slog.Logger

	degraded atomic.Bool

	mu       sync.Mutex
	lastSeen map[string]*domain.Cart
}

// NewCartRepository wraps primary. A timeout <= 0 uses 5s.
func NewCartRepository(primary repository.CartRepository, timeout time.Duration, logger *slog.Logger) *CartRepository {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &CartRepository{
		primary:  primary,
		memory:   memory.NewCartRepository(),
		timeout:  timeout,
		logger:   logger,
		lastSeen: make(map[string]*domain.Cart),
	}
}

func (r *CartRepository) Get(ctx context.Context, sessionID string) (*domain.Cart, error) {
	if r.degraded.Load() {
		return r.memory.Get(ctx, sessionID)
	}

	pctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cart, err := r.primary.Get(pctx, sessionID)
	switch {
	case err == nil:
		r.remember(cart)
		return cart, nil
	case errors.Is(err, apperrors.ErrNotFound):
		return nil, err
	}

	r.degrade(ctx, "get", err)
	return r.memory.Get(ctx, sessionID)
}

func (r *CartRepository) Save(ctx context.Context, cart *domain.Cart) error {
	if r.degraded.Load() {
		return r.memory.Save(ctx, cart)
	}

	pctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	err := r.primary.Save(pctx, cart)
	if err == nil {
		r.remember(cart)
		return nil
	}

	r.degrade(ctx, "save", err)
	return r.memory.Save(ctx, cart)
}

// Degraded reports whether the repository has switched to memory.
func (r *CartRepository) Degraded() bool {
	return r.degraded.Load()
}

// Source names the backend currently serving requests.
func (r *CartRepository) Source() string {
	if r.degraded.Load() {
		return repository.SourceMemory
	}
	return repository.SourceOf(r.primary)
}

func (r *CartRepository) remember(cart *domain.Cart) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lastSeen != nil {
		r.lastSeen[cart.SessionID] = cart.Clone()
	}
}

func (r *CartRepository) degrade(ctx context.Context, op string, cause error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.degraded.Load() {
		return
	}

	for _, c := range r.lastSeen {
		_ = r.memory.Save(ctx, c)
	}
	r.lastSeen = nil
	r.degraded.Store(true)

	cause = fmt.Errorf("%w: %w", domain.ErrStorageUnavailable, cause)
	store := repository.SourceOf(r.primary)
	storageFallbackTotal.WithLabelValues(store, op).Inc()
	r.logger.WarnContext(ctx, "cart store unavailable, switching to in-memory storage",
		slog.String("store", store),
		slog.String("operation", op),
		slog.String("error", cause.Error()),
	)
}

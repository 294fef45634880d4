package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vibecommerce/storefront/pkg/httpclient"
)

const upstreamBody = `[
  {"id": 5, "title": "Gold Ring", "price": 695, "description": "ring", "category": "jewelery",
   "image": "https://img/5.jpg", "rating": {"rate": 4.6, "count": 400}},
  {"id": 2, "title": "Slim Tee", "price": 22.3, "description": "tee", "category": "men's clothing",
   "image": "https://img/2.jpg", "rating": {"rate": 4.1, "count": 259}}
]`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newProvider(t *testing.T, url string) *HTTPProvider {
	t.Helper()
	return NewHTTPProvider(HTTPConfig{URL: url, Timeout: time.Second, MaxRetries: 0}, discardLogger())
}

func TestStatic_ListsFallback(t *testing.T) {
	items := NewStatic().List(context.Background())

	require.Len(t, items, 8)
	assert.Equal(t, int64(1), items[0].ID)
	assert.Equal(t, "Wireless Headphones", items[0].Name)
	assert.Equal(t, "99.99", items[0].Price.StringFixed(2))
	assert.Equal(t, "USB-C Hub", items[7].Name)
}

func TestStatic_Get(t *testing.T) {
	item, ok := NewStatic().Get(context.Background(), 7)
	require.True(t, ok)
	assert.Equal(t, "Mechanical Keyboard", item.Name)

	_, ok = NewStatic().Get(context.Background(), 99)
	assert.False(t, ok)
}

func TestFallback_ReturnsCopy(t *testing.T) {
	items := Fallback()
	items[0].Name = "changed"
	assert.Equal(t, "Wireless Headphones", Fallback()[0].Name)
}

func TestHTTPProvider_MapsUpstreamInOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, upstreamBody)
	}))
	defer srv.Close()

	items := newProvider(t, srv.URL).List(context.Background())

	require.Len(t, items, 2)
	assert.Equal(t, int64(5), items[0].ID)
	assert.Equal(t, "Gold Ring", items[0].Name)
	assert.Equal(t, "695.00", items[0].Price.StringFixed(2))
	assert.Equal(t, "jewelery", items[0].Category)
	require.NotNil(t, items[0].Rating)
	assert.Equal(t, 400, items[0].Rating.Count)
	assert.Equal(t, int64(2), items[1].ID)
	assert.Equal(t, "22.30", items[1].Price.StringFixed(2))
}

func TestHTTPProvider_Get(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, upstreamBody)
	}))
	defer srv.Close()

	p := newProvider(t, srv.URL)
	item, ok := p.Get(context.Background(), 2)
	require.True(t, ok)
	assert.Equal(t, "Slim Tee", item.Name)

	_, ok = p.Get(context.Background(), 1)
	assert.False(t, ok)
}

func TestHTTPProvider_FallsBack(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		reason  string
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}, "bad_status"},
		{"not found", func(w http.ResponseWriter, r *http.Request) {
			http.NotFound(w, r)
		}, "bad_status"},
		{"malformed json", func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"not":"a list"`)
		}, "upstream_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			before := testutil.ToFloat64(catalogFallbackTotal.WithLabelValues(tt.reason))
			items := newProvider(t, srv.URL).List(context.Background())

			assert.Equal(t, Fallback(), items)
			assert.Equal(t, before+1, testutil.ToFloat64(catalogFallbackTotal.WithLabelValues(tt.reason)))
		})
	}
}

func TestHTTPProvider_UnreachableFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	items := newProvider(t, url).List(context.Background())
	assert.Len(t, items, 8)
}

func TestHTTPProvider_SlowUpstreamTimesOut(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	p := NewHTTPProvider(HTTPConfig{URL: srv.URL, Timeout: 50 * time.Millisecond}, discardLogger())

	start := time.Now()
	items := p.List(context.Background())

	assert.Len(t, items, 8)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestHTTPProvider_CallerCancelFallsBack(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	items := newProvider(t, srv.URL).List(ctx)
	assert.Len(t, items, 8)
}

func TestHTTPProvider_CollapsesConcurrentFetches(t *testing.T) {
	var hits atomic.Int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-release
		_, _ = io.WriteString(w, upstreamBody)
	}))
	defer srv.Close()

	p := newProvider(t, srv.URL)

	const callers = 10
	var wg sync.WaitGroup
	results := make([]int, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = len(p.List(context.Background()))
		}(i)
	}

	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), hits.Load())
	for _, n := range results {
		assert.Equal(t, 2, n)
	}
}

func TestHTTPProvider_ResultsAreIndependentCopies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, upstreamBody)
	}))
	defer srv.Close()

	p := newProvider(t, srv.URL)
	first := p.List(context.Background())
	first[0].Name = "mutated"

	assert.Equal(t, "Gold Ring", p.List(context.Background())[0].Name)
}

func TestFallbackReason(t *testing.T) {
	assert.Equal(t, "circuit_open", fallbackReason(fmt.Errorf("x: %w", httpclient.ErrCircuitOpen)))
	assert.Equal(t, "timeout", fallbackReason(context.DeadlineExceeded))
	assert.Equal(t, "bad_status", fallbackReason(&httpclient.StatusError{StatusCode: 503}))
	assert.Equal(t, "upstream_error", fallbackReason(errors.New("boom")))
}

package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/sells-group/watchtracker/internal/model"
)

func newTestFetcher() *HTTPFetcher {
	return NewHTTPFetcher(HTTPOptions{
		UserAgent: "test-agent",
		Timeout:   5 * time.Second,
	})
}

func TestHTTPFetch_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		assert.Contains(t, r.Header.Get("Accept"), "text/html")
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		w.Write([]byte("<h1>Omega Constellation</h1>"))
	}))
	defer srv.Close()

	page, err := newTestFetcher().Fetch(context.Background(), srv.URL+"/shop?page=2")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, page.StatusCode)
	assert.Equal(t, "<h1>Omega Constellation</h1>", page.Body)
}

func TestHTTPFetch_DefaultUserAgent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("User-Agent"), "Chrome/121")
	}))
	defer srv.Close()

	_, err := NewHTTPFetcher(HTTPOptions{}).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
}

func TestHTTPFetch_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestFetcher().Fetch(context.Background(), srv.URL)
	require.Error(t, err)

	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, http.StatusNotFound, te.StatusCode)
	assert.False(t, te.Transient())
	assert.Contains(t, te.Error(), "status 404")
}

func TestHTTPFetch_ServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestFetcher().Fetch(context.Background(), srv.URL)
	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.True(t, te.Transient())
}

func TestHTTPFetch_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	addr := srv.URL
	srv.Close()

	_, err := newTestFetcher().Fetch(context.Background(), addr)
	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Zero(t, te.StatusCode)
	assert.NotNil(t, te.Unwrap())
}

func TestHTTPFetch_InvalidURL(t *testing.T) {
	for _, raw := range []string{"", "not a url", "ftp://example.com/x", "/relative/path"} {
		_, err := newTestFetcher().Fetch(context.Background(), raw)
		var ie *model.InputError
		assert.True(t, errors.As(err, &ie), "url %q", raw)
	}
}

func TestHTTPFetch_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := newTestFetcher().Fetch(ctx, srv.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	var te *TransportError
	assert.False(t, errors.As(err, &te))
}

func TestHTTPFetch_BodyCapped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(strings.Repeat("x", 100)))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(HTTPOptions{MaxBodyBytes: 10})
	page, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Len(t, page.Body, 10)
}

func TestHTTPFetch_PerHostLimiter(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	f := NewHTTPFetcher(HTTPOptions{HostRate: rate.Limit(20)})
	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := f.Fetch(context.Background(), srv.URL)
		require.NoError(t, err)
	}
	// Burst of 1 at 20/s: the second and third requests each wait ~50ms.
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
	assert.Equal(t, int32(3), hits.Load())
}

func TestHTTPFetch_LimiterWaitCanceled(t *testing.T) {
	f := NewHTTPFetcher(HTTPOptions{
		RateLimiters: map[string]*rate.Limiter{"example.test": rate.NewLimiter(rate.Every(time.Hour), 0)},
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Fetch(ctx, "http://example.test/")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHTTPFetch_LimiterWaitPastDeadline(t *testing.T) {
	lim := rate.NewLimiter(rate.Every(time.Hour), 1)
	require.True(t, lim.Allow())
	f := NewHTTPFetcher(HTTPOptions{
		RateLimiters: map[string]*rate.Limiter{"example.test": lim},
	})
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	_, err := f.Fetch(ctx, "http://example.test/?page=2")
	require.NoError(t, ctx.Err())
	var te *TransportError
	require.True(t, errors.As(err, &te), "got %v", err)
	assert.Zero(t, te.StatusCode)
	assert.False(t, te.Transient())
}

func TestWithPage(t *testing.T) {
	got, err := WithPage("https://shop.example.com/search?q=omega", "page", 1)
	require.NoError(t, err)
	assert.Equal(t, "https://shop.example.com/search?page=1&q=omega", got)

	got, err = WithPage("https://shop.example.com/search?page=7", "page", 3)
	require.NoError(t, err)
	assert.Equal(t, "https://shop.example.com/search?page=3", got)

	_, err = WithPage("shop.example.com", "page", 1)
	var ie *model.InputError
	assert.True(t, errors.As(err, &ie))
}

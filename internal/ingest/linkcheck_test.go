package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/david/scholarship-finder/internal/cache"
)

func newTestVerifier(c cache.Cache) *LinkVerifier {
	return NewLinkVerifier(LinkVerifierOptions{
		Timeout:      2 * time.Second,
		AllowPrivate: true,
		Cache:        c,
		CacheTTL:     time.Hour,
	})
}

func TestLinkVerifier(t *testing.T) {
	var heads, gets atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			heads.Add(1)
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/no-head", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		gets.Add(1)
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/hop/", func(w http.ResponseWriter, r *http.Request) {
		n, _ := strconv.Atoi(r.URL.Path[len("/hop/"):])
		if n == 0 {
			w.WriteHeader(http.StatusOK)
			return
		}
		http.Redirect(w, r, "/hop/"+strconv.Itoa(n-1), http.StatusFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	v := newTestVerifier(cache.NewMemory())
	ctx := context.Background()

	t.Run("reachable", func(t *testing.T) {
		got := v.Verify(ctx, srv.URL+"/ok")
		assert.True(t, got.Reachable)
		require.NotNil(t, got.StatusCode)
		assert.Equal(t, 200, *got.StatusCode)
	})

	t.Run("not found", func(t *testing.T) {
		got := v.Verify(ctx, srv.URL+"/missing")
		assert.False(t, got.Reachable)
		require.NotNil(t, got.StatusCode)
		assert.Equal(t, 404, *got.StatusCode)
	})

	t.Run("head refused falls back to get", func(t *testing.T) {
		got := v.Verify(ctx, srv.URL+"/no-head")
		assert.True(t, got.Reachable)
		assert.Equal(t, int32(1), gets.Load())
	})

	t.Run("five redirects allowed", func(t *testing.T) {
		got := v.Verify(ctx, srv.URL+"/hop/5")
		assert.True(t, got.Reachable)
	})

	t.Run("six redirects refused", func(t *testing.T) {
		got := v.Verify(ctx, srv.URL+"/hop/6")
		assert.False(t, got.Reachable)
		assert.Nil(t, got.StatusCode)
	})

	t.Run("empty url", func(t *testing.T) {
		got := v.Verify(ctx, "  ")
		assert.False(t, got.Reachable)
		assert.Nil(t, got.StatusCode)
	})

	t.Run("connection refused", func(t *testing.T) {
		got := v.Verify(ctx, "http://127.0.0.1:1/nothing")
		assert.False(t, got.Reachable)
	})

	t.Run("cached result reused", func(t *testing.T) {
		before := heads.Load()
		v.Verify(ctx, srv.URL+"/ok")
		assert.Equal(t, before, heads.Load())
	})
}

func TestLinkVerifierTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	v := NewLinkVerifier(LinkVerifierOptions{Timeout: 50 * time.Millisecond, AllowPrivate: true})
	got := v.Verify(context.Background(), srv.URL)
	assert.False(t, got.Reachable)
	assert.Nil(t, got.StatusCode)
}

func TestLinkVerifierBlocksPrivateByDefault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	got := NewLinkVerifier(LinkVerifierOptions{}).Verify(context.Background(), srv.URL)
	assert.False(t, got.Reachable)
}

func TestLinkVerifierRechecksFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	v := newTestVerifier(cache.NewMemory())
	ctx := context.Background()

	assert.False(t, v.Verify(ctx, srv.URL+"/apply").Reachable)
	assert.True(t, v.Verify(ctx, srv.URL+"/apply").Reachable, "transient failure is not cached")
	assert.True(t, v.Verify(ctx, srv.URL+"/apply").Reachable)
	assert.Equal(t, int32(2), calls.Load(), "reachable result is cached")
}

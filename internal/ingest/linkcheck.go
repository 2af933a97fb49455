package ingest

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/david/scholarship-finder/internal/cache"
	"github.com/david/scholarship-finder/internal/logger"
	"github.com/david/scholarship-finder/internal/metrics"
)

const (
	DefaultLinkTimeout   = 8 * time.Second
	DefaultLinkRedirects = 5
)

// LinkStatus is advisory liveness metadata for an application URL.
type LinkStatus struct {
	Reachable  bool `json:"reachable"`
	StatusCode *int `json:"statusCode"`
}

type LinkVerifierOptions struct {
	Timeout      time.Duration
	MaxRedirects int
	// AllowPrivate disables the private-address guard (tests, local mirrors).
	AllowPrivate bool
	Cache        cache.Cache
	CacheTTL     time.Duration
	Logger       *zap.Logger
}

// LinkVerifier issues HEAD requests with bounded time and redirects. It never
// returns an error: every failure resolves to Reachable=false.
type LinkVerifier struct {
	client   *http.Client
	cache    cache.Cache
	cacheTTL time.Duration
	logger   *zap.Logger
}

func NewLinkVerifier(opts LinkVerifierOptions) *LinkVerifier {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultLinkTimeout
	}
	if opts.MaxRedirects <= 0 {
		opts.MaxRedirects = DefaultLinkRedirects
	}
	if opts.Cache == nil {
		opts.Cache = cache.Nop{}
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         safeDialContext,
		MaxIdleConns:        50,
		IdleConnTimeout:     60 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	checkRedirect := safeCheckRedirect(opts.MaxRedirects)
	if opts.AllowPrivate {
		transport.DialContext = (&net.Dialer{Timeout: opts.Timeout}).DialContext
		checkRedirect = limitRedirects(opts.MaxRedirects)
	}

	return &LinkVerifier{
		client: &http.Client{
			Timeout:       opts.Timeout,
			Transport:     transport,
			CheckRedirect: checkRedirect,
		},
		cache:    opts.Cache,
		cacheTTL: opts.CacheTTL,
		logger:   logger.OrNop(opts.Logger),
	}
}

func (v *LinkVerifier) Verify(ctx context.Context, rawURL string) LinkStatus {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		metrics.LinkChecksTotal.WithLabelValues("empty").Inc()
		return LinkStatus{}
	}

	key := linkCacheKey(rawURL)
	var cached LinkStatus
	if hit, err := v.cache.GetJSON(ctx, key, &cached); err == nil && hit {
		return cached
	}

	status := v.check(ctx, rawURL)
	if status.Reachable {
		metrics.LinkChecksTotal.WithLabelValues("reachable").Inc()
	} else {
		metrics.LinkChecksTotal.WithLabelValues("unreachable").Inc()
	}

	// Failures are rechecked next time rather than replayed from cache.
	if status.Reachable && v.cacheTTL > 0 {
		if err := v.cache.SetJSON(ctx, key, status, v.cacheTTL); err != nil {
			v.logger.Debug("link cache write failed", zap.Error(err))
		}
	}
	return status
}

func (v *LinkVerifier) check(ctx context.Context, rawURL string) LinkStatus {
	code, err := v.do(ctx, http.MethodHead, rawURL)
	// Some servers refuse HEAD outright; ask once more with GET.
	if err == nil && (code == http.StatusMethodNotAllowed || code == http.StatusNotImplemented) {
		code, err = v.do(ctx, http.MethodGet, rawURL)
	}
	if err != nil {
		v.logger.Debug("link check failed", zap.String("url", rawURL), zap.Error(err))
		return LinkStatus{}
	}
	return LinkStatus{
		Reachable:  code >= 200 && code < 400,
		StatusCode: &code,
	}
}

func (v *LinkVerifier) do(ctx context.Context, method, rawURL string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := v.client.Do(req)
	if err != nil {
		return 0, err
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
	return resp.StatusCode, nil
}

func linkCacheKey(rawURL string) string {
	sum := sha1.Sum([]byte(rawURL))
	return "link:" + hex.EncodeToString(sum[:])
}

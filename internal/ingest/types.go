package ingest

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/david/scholarship-finder/internal/models"
)

// RawItem is one untrusted provider record (CSV row, feed item, JSON object).
type RawItem map[string]any

// FetchedDocument is a successful HTTP response body awaiting parsing.
type FetchedDocument struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        io.ReadCloser
	FetchedAt   time.Time
	Headers     http.Header
}

// FetchOption customises a single outbound request.
type FetchOption func(*http.Request)

// WithHeader sets a request header.
func WithHeader(key, value string) FetchOption {
	return func(r *http.Request) { r.Header.Set(key, value) }
}

// WithQuery adds a query parameter.
func WithQuery(key, value string) FetchOption {
	return func(r *http.Request) {
		q := r.URL.Query()
		q.Set(key, value)
		r.URL.RawQuery = q.Encode()
	}
}

// Fetcher retrieves raw payloads.
type Fetcher interface {
	Fetch(ctx context.Context, url string, opts ...FetchOption) (*FetchedDocument, error)
}

// SourceReader turns one configured source into raw items.
type SourceReader interface {
	Read(ctx context.Context, cfg SourceConfig) ([]RawItem, error)
}

// RecordLookup is the key-filtered query side of the record store. Every
// method returns (nil, nil) when nothing matches.
type RecordLookup interface {
	FindBySourceKey(ctx context.Context, source, sourceID string) (*models.Scholarship, error)
	FindByLinkPrefix(ctx context.Context, prefix string) (*models.Scholarship, error)
	FindByNameFragment(ctx context.Context, fragment string) (*models.Scholarship, error)
}

// RecordStore adds the write side used by the orchestrator.
type RecordStore interface {
	RecordLookup
	Insert(ctx context.Context, rec *models.Scholarship) (uuid.UUID, error)
	Update(ctx context.Context, id uuid.UUID, rec *models.Scholarship) error
}

// LinkChecker reports whether an application URL is reachable.
type LinkChecker interface {
	Verify(ctx context.Context, url string) LinkStatus
}

// Embedder produces a vector for semantic lookups.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// ReportSink persists one append-only report per source run.
type ReportSink interface {
	WriteReport(ctx context.Context, report models.IngestionReport) error
}

// Notifier delivers the end-of-run summary.
type Notifier interface {
	SendSummary(ctx context.Context, summary RunSummary) error
}

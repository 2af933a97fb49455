package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/david/scholarship-finder/internal/apperr"
)

// MockFetcher serves canned payloads by URL and records request headers.
type MockFetcher struct {
	Data     map[string][]byte
	Requests []*http.Request
}

func (m *MockFetcher) Fetch(ctx context.Context, url string, opts ...FetchOption) (*FetchedDocument, error) {
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	for _, opt := range opts {
		opt(req)
	}
	m.Requests = append(m.Requests, req)

	content, ok := m.Data[url]
	if !ok {
		return nil, fmt.Errorf("mock 404: %s", url)
	}
	return &FetchedDocument{
		URL:        url,
		StatusCode: 200,
		Body:       io.NopCloser(bytes.NewReader(content)),
		Headers:    make(http.Header),
		FetchedAt:  time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
	}, nil
}

func TestParseCSV(t *testing.T) {
	data := "\xef\xbb\xbfScholarship Title,Award Value,Closing Date,Apply Here\n" +
		"Community Award,\"$1,500\",03/15/2026,https://cf.example.org/community\n" +
		",,,\n" +
		"Short Row,500\n"

	items, err := ParseCSV([]byte(data))
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "Community Award", items[0]["Scholarship Title"])
	assert.Equal(t, "Community Award", items[0]["scholarship_title"])
	assert.Equal(t, "$1,500", items[0]["award_value"])
	assert.Equal(t, "Short Row", items[1]["Scholarship Title"])
	_, hasDeadline := items[1]["Closing Date"]
	assert.False(t, hasDeadline)

	rec := Normalize(items[0], "csv", FieldMap{"name": {"Scholarship Title"}, "amount": {"Award Value"}, "deadline": {"Closing Date"}, "link": {"Apply Here"}})
	require.NotNil(t, rec.Deadline)
	assert.Equal(t, "2026-03-15", *rec.Deadline)
	assert.Equal(t, float64(1500), rec.Amount.Value)
}

func TestParseFeed(t *testing.T) {
	feed := `<?xml version="1.0"?>
<rss version="2.0" xmlns:award="https://example.org/award">
<channel>
  <title>Campus Aid</title>
  <item>
    <title>Engineering Excellence Scholarship</title>
    <link>https://aid.example.edu/awards/engineering</link>
    <description>Open to engineering majors with a 3.0 GPA.</description>
    <guid>eng-2026</guid>
    <category>STEM</category>
    <award:deadline>April 30, 2026</award:deadline>
  </item>
</channel>
</rss>`
	items, err := ParseFeed([]byte(feed))
	require.NoError(t, err)
	require.Len(t, items, 1)

	rec := Normalize(items[0], "rss", nil)
	assert.Equal(t, "Engineering Excellence Scholarship", rec.DisplayName())
	assert.Equal(t, "https://aid.example.edu/awards/engineering", rec.LinkURL())
	assert.Equal(t, "eng-2026", rec.SourceID)
	assert.Equal(t, "STEM", rec.Category)
	require.NotNil(t, rec.Deadline)
	assert.Equal(t, "2026-04-30", *rec.Deadline)
}

func TestParseFeedRejectsGarbage(t *testing.T) {
	_, err := ParseFeed([]byte("definitely not a feed"))
	assert.Error(t, err)
}

func TestExtractItems(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		path    string
		want    int
		wantErr bool
	}{
		{"top level array", `[{"name":"a"},{"name":"b"},"skip"]`, "", 2, false},
		{"well known key", `{"results":[{"name":"a"}]}`, "", 1, false},
		{"items path", `{"data":{"scholarships":[{"name":"a"},{"name":"b"}]}}`, "data.scholarships", 2, false},
		{"single object", `{"name":"only"}`, "", 1, false},
		{"missing path", `{"data":{}}`, "data.scholarships", 0, true},
		{"scalar payload", `42`, "", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := decodeJSON([]byte(tt.payload))
			require.NoError(t, err)
			items, err := ExtractItems(payload, tt.path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, items, tt.want)
		})
	}
}

func TestAPIReaderCredentialsAndTransform(t *testing.T) {
	wp := `[
	  {"id": 11, "status": "publish", "link": "https://foundation.example.org/awards/leaders",
	   "title": {"rendered": "Future Leaders &#8211; 2026"}, "content": {"rendered": "<p>Full text</p>"},
	   "excerpt": {"rendered": "<p>For first generation students.</p>"}, "acf": {"amount": "$3,000", "deadline": "2026-09-01"}},
	  {"id": 12, "status": "draft", "title": {"rendered": "Hidden"}}
	]`
	fetcher := &MockFetcher{Data: map[string][]byte{"https://foundation.example.org/wp-json/wp/v2/posts": []byte(wp)}}
	reader := &APIReader{Fetcher: fetcher, Transforms: DefaultTransforms()}

	cfg := SourceConfig{
		ID:        "foundation-wordpress",
		Type:      SourceAPI,
		URL:       "https://foundation.example.org/wp-json/wp/v2/posts",
		APIKey:    "secret",
		APIKeyIn:  "query:key",
		Transform: "wordpress_posts",
	}
	items, err := reader.Read(context.Background(), cfg)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "secret", fetcher.Requests[0].URL.Query().Get("key"))

	rec := Normalize(items[0], cfg.ID, nil)
	assert.Equal(t, "Future Leaders – 2026", rec.DisplayName())
	assert.Equal(t, "11", rec.SourceID)
	assert.Equal(t, float64(3000), rec.Amount.Value)
	assert.Equal(t, "For first generation students.", rec.Eligibility)
	require.NotNil(t, rec.Deadline)
	assert.Equal(t, "2026-09-01", *rec.Deadline)

	cfg.Transform = "nope"
	_, err = reader.Read(context.Background(), cfg)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindParse))
}

func TestCredentialOptions(t *testing.T) {
	apply := func(cfg SourceConfig) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "https://api.example.org/v1", nil)
		for _, opt := range credentialOptions(cfg) {
			opt(req)
		}
		return req
	}

	req := apply(SourceConfig{APIKey: "k1"})
	assert.Equal(t, "Bearer k1", req.Header.Get("Authorization"))

	req = apply(SourceConfig{APIKey: "k2", APIKeyIn: "X-API-Key"})
	assert.Equal(t, "k2", req.Header.Get("X-API-Key"))

	req = apply(SourceConfig{APIKey: "k3", APIKeyIn: "query:api_key"})
	assert.Equal(t, "k3", req.URL.Query().Get("api_key"))

	assert.Empty(t, credentialOptions(SourceConfig{APIKeyIn: "X-API-Key"}))
}

func TestFetchFailureIsClassified(t *testing.T) {
	reader := &CSVReader{Fetcher: &MockFetcher{}}
	_, err := reader.Read(context.Background(), SourceConfig{ID: "gone", URL: "https://missing.example.org/x.csv"})
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindFetch))
}

func TestHTMLReaderScrapesListingWithPagination(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/list", func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		switch page {
		case "":
			fmt.Fprint(w, `<html><body>
				<article class="scholarship"><h2><a href="/awards/one">Award One</a></h2>
				  <span class="amount">$1,000</span><span class="deadline">June 1, 2026</span></article>
				<a class="next" href="/list?page=2">Next</a>
			</body></html>`)
		case "2":
			fmt.Fprint(w, `<html><body>
				<article class="scholarship"><h2><a href="/awards/two">Award Two</a></h2>
				  <span class="sponsor">State Agency</span></article>
				<a class="next" href="/list?page=3">Next</a>
			</body></html>`)
		default:
			fmt.Fprint(w, `<html><body>
				<article class="scholarship"><h2><a href="/awards/three">Award Three</a></h2></article>
			</body></html>`)
		}
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := SourceConfig{
		ID:       "state-aid-listing",
		Type:     SourceHTML,
		URL:      srv.URL + "/list",
		NextPage: "a.next",
		MaxPages: 2,
		Selectors: SelectorConfig{
			Container: "article.scholarship",
			Name:      "h2",
			Link:      "h2 a",
			Provider:  ".sponsor",
			Amount:    ".amount",
			Deadline:  ".deadline",
		},
	}
	items, err := NewHTMLReader(nil).Read(context.Background(), cfg)
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "Award One", items[0]["name"])
	assert.Equal(t, srv.URL+"/awards/one", items[0]["link"])
	assert.Equal(t, "$1,000", items[0]["amount"])
	assert.Equal(t, "State Agency", items[1]["provider"])

	rec := Normalize(items[0], cfg.ID, nil)
	require.NotNil(t, rec.Deadline)
	assert.Equal(t, "2026-06-01", *rec.Deadline)
}

func TestHTMLReaderRequiresContainer(t *testing.T) {
	_, err := NewHTMLReader(nil).Read(context.Background(), SourceConfig{ID: "x", URL: "http://127.0.0.1:1/"})
	assert.Error(t, err)
}

package ingest

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"

	"github.com/david/scholarship-finder/internal/apperr"
)

const maxPayloadBytes = 20 << 20

// Readers maps a source type to its parser. Sources whose type has no entry
// are skipped by the orchestrator.
type Readers map[SourceType]SourceReader

// DefaultReaders wires the csv, rss, api and html readers.
func DefaultReaders(fetcher Fetcher, transforms *Transforms, log *zap.Logger) Readers {
	if transforms == nil {
		transforms = DefaultTransforms()
	}
	return Readers{
		SourceCSV:  &CSVReader{Fetcher: fetcher},
		SourceRSS:  &RSSReader{Fetcher: fetcher},
		SourceAPI:  &APIReader{Fetcher: fetcher, Transforms: transforms},
		SourceHTML: NewHTMLReader(log),
	}
}

// fetchBody downloads the configured URL with the source's credentials.
func fetchBody(ctx context.Context, fetcher Fetcher, cfg SourceConfig) ([]byte, error) {
	doc, err := fetcher.Fetch(ctx, cfg.URL, credentialOptions(cfg)...)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindFetch, "fetch "+cfg.ID, err)
	}
	defer doc.Body.Close()

	body, err := io.ReadAll(io.LimitReader(doc.Body, maxPayloadBytes))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindFetch, "read body", err)
	}
	return body, nil
}

// credentialOptions places api_key according to api_key_in: a header name,
// "query:<param>", or a bearer token when unset.
func credentialOptions(cfg SourceConfig) []FetchOption {
	if cfg.APIKey == "" {
		return nil
	}
	in := strings.TrimSpace(cfg.APIKeyIn)
	switch {
	case in == "":
		return []FetchOption{WithHeader("Authorization", "Bearer "+cfg.APIKey)}
	case strings.HasPrefix(in, "query:"):
		return []FetchOption{WithQuery(strings.TrimPrefix(in, "query:"), cfg.APIKey)}
	default:
		return []FetchOption{WithHeader(in, cfg.APIKey)}
	}
}

// CSVReader treats the first row as the header.
type CSVReader struct {
	Fetcher Fetcher
}

func (r *CSVReader) Read(ctx context.Context, cfg SourceConfig) ([]RawItem, error) {
	body, err := fetchBody(ctx, r.Fetcher, cfg)
	if err != nil {
		return nil, err
	}
	items, err := ParseCSV(body)
	return items, apperr.Wrap(apperr.KindParse, cfg.ID, err)
}

// ParseCSV decodes rows into items keyed by header. Headers are also exposed
// in lower snake case so "Award Amount" answers to award_amount.
func ParseCSV(data []byte) ([]RawItem, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	header := rows[0]
	items := make([]RawItem, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if isBlankRow(row) {
			continue
		}
		item := make(RawItem, len(header)*2)
		for i, col := range header {
			if i >= len(row) {
				break
			}
			key := strings.TrimSpace(col)
			if key == "" {
				continue
			}
			value := strings.TrimSpace(row[i])
			item[key] = value
			if snake := snakeKey(key); snake != key {
				if _, taken := item[snake]; !taken {
					item[snake] = value
				}
			}
		}
		items = append(items, item)
	}
	return items, nil
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func snakeKey(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), "_"))
}

// RSSReader handles RSS, Atom and JSON Feed documents.
type RSSReader struct {
	Fetcher Fetcher
}

func (r *RSSReader) Read(ctx context.Context, cfg SourceConfig) ([]RawItem, error) {
	body, err := fetchBody(ctx, r.Fetcher, cfg)
	if err != nil {
		return nil, err
	}
	items, err := ParseFeed(body)
	return items, apperr.Wrap(apperr.KindParse, cfg.ID, err)
}

func ParseFeed(data []byte) ([]RawItem, error) {
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	items := make([]RawItem, 0, len(feed.Items))
	for _, it := range feed.Items {
		item := RawItem{
			"title":       it.Title,
			"link":        it.Link,
			"description": it.Description,
			"content":     it.Content,
			"guid":        it.GUID,
			"published":   it.Published,
		}
		if it.Author != nil && it.Author.Name != "" {
			item["author"] = it.Author.Name
		}
		if len(it.Categories) > 0 {
			item["categories"] = strings.Join(it.Categories, ", ")
		}
		for k, v := range it.Custom {
			if _, taken := item[k]; !taken {
				item[k] = v
			}
		}
		// Namespaced elements such as <award:deadline> are reachable both as
		// "award:deadline" and as plain "deadline".
		for prefix, elems := range it.Extensions {
			for name, exts := range elems {
				if len(exts) == 0 || strings.TrimSpace(exts[0].Value) == "" {
					continue
				}
				item[prefix+":"+name] = exts[0].Value
				if _, taken := item[name]; !taken {
					item[name] = exts[0].Value
				}
			}
		}
		items = append(items, item)
	}
	return items, nil
}

// APIReader decodes JSON payloads. A configured transform takes precedence,
// then items_path, then the payload shape.
type APIReader struct {
	Fetcher    Fetcher
	Transforms *Transforms
}

var wellKnownItemKeys = []string{"scholarships", "data", "results", "items", "records"}

func (r *APIReader) Read(ctx context.Context, cfg SourceConfig) ([]RawItem, error) {
	body, err := fetchBody(ctx, r.Fetcher, cfg)
	if err != nil {
		return nil, err
	}

	items, err := r.parse(body, cfg)
	return items, apperr.Wrap(apperr.KindParse, cfg.ID, err)
}

func (r *APIReader) parse(body []byte, cfg SourceConfig) ([]RawItem, error) {
	payload, err := decodeJSON(body)
	if err != nil {
		return nil, err
	}
	if cfg.Transform != "" {
		transform, ok := r.Transforms.Get(cfg.Transform)
		if !ok {
			return nil, fmt.Errorf("unknown transform %q", cfg.Transform)
		}
		return transform(payload)
	}
	return ExtractItems(payload, cfg.ItemsPath)
}

func decodeJSON(body []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var payload any
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	return payload, nil
}

// ExtractItems finds the item list in a decoded payload.
func ExtractItems(payload any, itemsPath string) ([]RawItem, error) {
	if itemsPath != "" {
		obj, ok := payload.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("items_path %q: payload is not an object", itemsPath)
		}
		v, ok := valueAt(obj, itemsPath)
		if !ok {
			return nil, fmt.Errorf("items_path %q not found", itemsPath)
		}
		list, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("items_path %q is not an array", itemsPath)
		}
		return objectItems(list), nil
	}

	switch val := payload.(type) {
	case []any:
		return objectItems(val), nil
	case map[string]any:
		for _, k := range wellKnownItemKeys {
			if list, ok := val[k].([]any); ok {
				return objectItems(list), nil
			}
		}
		return []RawItem{RawItem(val)}, nil
	}
	return nil, fmt.Errorf("unsupported payload of type %T", payload)
}

// objectItems keeps only the object elements of list.
func objectItems(list []any) []RawItem {
	items := make([]RawItem, 0, len(list))
	for _, el := range list {
		if obj, ok := el.(map[string]any); ok {
			items = append(items, RawItem(obj))
		}
	}
	return items
}

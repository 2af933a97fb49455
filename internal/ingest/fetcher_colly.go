package ingest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/david/scholarship-finder/internal/logger"
)

const defaultMaxPages = 5

// HTMLReader scrapes listing pages with colly. Each element matching
// selectors.container becomes one raw item; next_page is followed up to
// max_pages.
type HTMLReader struct {
	UserAgent      string
	RequestTimeout time.Duration
	MaxBodySize    int
	logger         *zap.Logger
}

func NewHTMLReader(log *zap.Logger) *HTMLReader {
	return &HTMLReader{
		UserAgent:      userAgent,
		RequestTimeout: 20 * time.Second,
		MaxBodySize:    10 * 1024 * 1024,
		logger:         logger.OrNop(log),
	}
}

func (r *HTMLReader) collector(ctx context.Context, cfg SourceConfig) *colly.Collector {
	c := colly.NewCollector(
		colly.UserAgent(r.UserAgent),
		colly.MaxBodySize(r.MaxBodySize),
		colly.DetectCharset(),
		colly.StdlibContext(ctx),
	)

	delay := time.Duration(cfg.Delay * float64(time.Second))
	c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
		Delay:       delay,
		RandomDelay: delay / 2,
	})
	c.SetRequestTimeout(r.RequestTimeout)

	if cfg.APIKey != "" && cfg.APIKeyIn != "" && !strings.HasPrefix(cfg.APIKeyIn, "query:") {
		c.OnRequest(func(req *colly.Request) {
			req.Headers.Set(cfg.APIKeyIn, cfg.APIKey)
		})
	}
	return c
}

func (r *HTMLReader) Read(ctx context.Context, cfg SourceConfig) ([]RawItem, error) {
	sel := cfg.Selectors
	if sel.Container == "" {
		return nil, fmt.Errorf("html source %s: selectors.container is required", cfg.ID)
	}
	maxPages := cfg.MaxPages
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}

	c := r.collector(ctx, cfg)

	var (
		mu       sync.Mutex
		items    []RawItem
		firstErr error
		pages    = 1
	)

	c.OnHTML(sel.Container, func(e *colly.HTMLElement) {
		item := RawItem{}
		put := func(key, value string) {
			if value = strings.TrimSpace(value); value != "" {
				item[key] = value
			}
		}

		if sel.Name != "" {
			put("name", e.ChildText(sel.Name))
		} else {
			put("name", e.Text)
		}

		attr := sel.LinkAttr
		if attr == "" {
			attr = "href"
		}
		var href string
		if sel.Link == "" || sel.Link == "." {
			href = e.Attr(attr)
		} else {
			href = e.ChildAttr(sel.Link, attr)
		}
		if href != "" {
			abs := e.Request.AbsoluteURL(href)
			put("link", abs)
			put("id", abs)
		}

		if sel.Provider != "" {
			put("provider", e.ChildText(sel.Provider))
		}
		if sel.Amount != "" {
			put("amount", e.ChildText(sel.Amount))
		}
		if sel.Deadline != "" {
			put("deadline", e.ChildText(sel.Deadline))
		}
		if sel.Eligibility != "" {
			put("eligibility", e.ChildText(sel.Eligibility))
		}

		if len(item) == 0 {
			return
		}
		mu.Lock()
		items = append(items, item)
		mu.Unlock()
	})

	if cfg.NextPage != "" {
		c.OnHTML(cfg.NextPage, func(e *colly.HTMLElement) {
			next := e.Request.AbsoluteURL(e.Attr("href"))
			if next == "" {
				return
			}
			mu.Lock()
			if pages >= maxPages {
				mu.Unlock()
				return
			}
			pages++
			mu.Unlock()
			if err := e.Request.Visit(next); err != nil {
				r.logger.Debug("next page not followed", zap.String("url", next), zap.Error(err))
			}
		})
	}

	c.OnError(func(resp *colly.Response, err error) {
		mu.Lock()
		defer mu.Unlock()
		if firstErr == nil {
			firstErr = fmt.Errorf("scrape %s: %w", resp.Request.URL, err)
		}
	})

	if err := c.Visit(cfg.URL); err != nil {
		return nil, fmt.Errorf("visit %s: %w", cfg.URL, err)
	}
	c.Wait()

	// A failure on a later page still yields what the earlier pages produced.
	if firstErr != nil && len(items) == 0 {
		return nil, firstErr
	}
	if firstErr != nil {
		r.logger.Warn("html source partially scraped", zap.String("source", cfg.ID), zap.Error(firstErr))
	}
	return items, nil
}

package match

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/david/scholarship-finder/internal/dates"
	"github.com/david/scholarship-finder/internal/logger"
	"github.com/david/scholarship-finder/internal/metrics"
	"github.com/david/scholarship-finder/internal/models"
)

const (
	DefaultMaxResults = 20
	DefaultMinScore   = 60
)

type Options struct {
	// Sources are merged in this order regardless of completion order.
	Sources    []CandidateSource
	MaxResults int
	MinScore   int
	Logger     *zap.Logger
	Now        func() time.Time
}

// Aggregator merges candidate sources into one ranked list.
type Aggregator struct {
	sources    []CandidateSource
	maxResults int
	minScore   int
	logger     *zap.Logger
	now        func() time.Time
}

func NewAggregator(opts Options) *Aggregator {
	a := &Aggregator{
		sources:    opts.Sources,
		maxResults: opts.MaxResults,
		minScore:   opts.MinScore,
		logger:     logger.OrNop(opts.Logger),
		now:        opts.Now,
	}
	if a.maxResults <= 0 {
		a.maxResults = DefaultMaxResults
	}
	if a.minScore <= 0 {
		a.minScore = DefaultMinScore
	}
	if a.now == nil {
		a.now = time.Now
	}
	return a
}

// Match returns the ranked candidates, possibly none. A failing source
// contributes nothing and never fails the whole request.
func (a *Aggregator) Match(ctx context.Context, profile models.ApplicantProfile) []models.MatchCandidate {
	results := make([][]models.MatchCandidate, len(a.sources))

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range a.sources {
		g.Go(func() error {
			start := time.Now()
			cands, err := src.Fetch(gctx, profile)
			status := "ok"
			if err != nil {
				status = "error"
				a.logger.Warn("candidate source failed, continuing without it",
					zap.String("source", src.Name()), zap.Error(err))
				cands = nil
			}
			metrics.CandidateSourceDuration.WithLabelValues(src.Name(), status).Observe(time.Since(start).Seconds())
			results[i] = cands
			return nil
		})
	}
	_ = g.Wait()

	var merged []models.MatchCandidate
	for _, r := range results {
		merged = append(merged, r...)
	}
	return a.rank(merged)
}

// Recommend is Match with the placeholder fallback for an empty result.
func (a *Aggregator) Recommend(ctx context.Context, profile models.ApplicantProfile) []models.MatchCandidate {
	ranked := a.Match(ctx, profile)
	if len(ranked) == 0 {
		metrics.MatchRequestsTotal.WithLabelValues("placeholder").Inc()
		a.logger.Info("no candidates matched, returning placeholders")
		return Placeholders()
	}
	metrics.MatchRequestsTotal.WithLabelValues("ranked").Inc()
	return ranked
}

func (a *Aggregator) rank(in []models.MatchCandidate) []models.MatchCandidate {
	now := a.now()
	seen := make(map[string]bool, len(in))
	out := make([]models.MatchCandidate, 0, len(in))
	for _, c := range in {
		key := strings.ToLower(strings.TrimSpace(c.Name))
		if seen[key] {
			continue
		}
		seen[key] = true

		if dates.Before(c.Deadline, now) {
			continue
		}
		if c.MatchScore < a.minScore {
			continue
		}
		out = append(out, c)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].MatchScore > out[j].MatchScore
	})
	if len(out) > a.maxResults {
		out = out[:a.maxResults]
	}
	return out
}

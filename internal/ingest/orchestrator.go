package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/david/scholarship-finder/internal/apperr"
	"github.com/david/scholarship-finder/internal/dates"
	"github.com/david/scholarship-finder/internal/logger"
	"github.com/david/scholarship-finder/internal/metrics"
	"github.com/david/scholarship-finder/internal/models"
)

const DefaultFetchTimeout = 20 * time.Second

// SourceStats are the counters for one source within a run.
type SourceStats struct {
	Source    string        `json:"source"`
	Status    string        `json:"status"`
	Processed int           `json:"processed"`
	Added     int           `json:"added"`
	Updated   int           `json:"updated"`
	Flagged   int           `json:"flagged"`
	Error     string        `json:"error,omitempty"`
	Skipped   bool          `json:"skipped,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// Message is the human readable summary stored with the report row.
func (s SourceStats) Message() string {
	if s.Status == models.ReportError {
		return fmt.Sprintf("Source failed after %d items: %s", s.Processed, s.Error)
	}
	return fmt.Sprintf("Processed %d items: %d added, %d updated, %d flagged",
		s.Processed, s.Added, s.Updated, s.Flagged)
}

// RunSummary aggregates one run across all sources.
type RunSummary struct {
	RunID      uuid.UUID     `json:"runId"`
	StartedAt  time.Time     `json:"startedAt"`
	FinishedAt time.Time     `json:"finishedAt"`
	Sources    []SourceStats `json:"sources"`
	Processed  int           `json:"processed"`
	Added      int           `json:"added"`
	Updated    int           `json:"updated"`
	Flagged    int           `json:"flagged"`
	Failed     int           `json:"failed"`
	DryRun     bool          `json:"dryRun,omitempty"`
}

func (s *RunSummary) add(st SourceStats) {
	s.Sources = append(s.Sources, st)
	s.Processed += st.Processed
	s.Added += st.Added
	s.Updated += st.Updated
	s.Flagged += st.Flagged
	if st.Status == models.ReportError {
		s.Failed++
	}
}

type Options struct {
	Sources  []SourceConfig
	Readers  Readers
	Store    RecordStore
	Resolver *Resolver
	// Optional collaborators; nil disables the step.
	Verifier LinkChecker
	Embedder Embedder
	Sink     ReportSink
	Notifier Notifier

	Logger       *zap.Logger
	FetchTimeout time.Duration
	DryRun       bool
	Now          func() time.Time
}

// Orchestrator drives ingestion runs. Sources, and the items within each
// source, are processed sequentially in configured order.
type Orchestrator struct {
	sources      []SourceConfig
	readers      Readers
	store        RecordStore
	resolver     *Resolver
	verifier     LinkChecker
	embedder     Embedder
	sink         ReportSink
	notifier     Notifier
	logger       *zap.Logger
	fetchTimeout time.Duration
	dryRun       bool
	now          func() time.Time

	// mu serializes runs so dedup lookups never race a concurrent insert.
	mu sync.Mutex
}

// ErrRunInProgress is returned by RunOne while another run holds the lock.
var ErrRunInProgress = errors.New("ingestion run already in progress")

func NewOrchestrator(opts Options) *Orchestrator {
	if opts.Resolver == nil {
		opts.Resolver = NewResolver(opts.Store, DefaultNameFragmentLength)
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = DefaultFetchTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Orchestrator{
		sources:      opts.Sources,
		readers:      opts.Readers,
		store:        opts.Store,
		resolver:     opts.Resolver,
		verifier:     opts.Verifier,
		embedder:     opts.Embedder,
		sink:         opts.Sink,
		notifier:     opts.Notifier,
		logger:       logger.OrNop(opts.Logger),
		fetchTimeout: opts.FetchTimeout,
		dryRun:       opts.DryRun,
		now:          opts.Now,
	}
}

// Sources returns the configured source list.
func (o *Orchestrator) Sources() []SourceConfig {
	return o.sources
}

// Run processes every configured source. It never returns an error: source
// failures become error reports and the run moves on. It waits for any run
// already in progress.
func (o *Orchestrator) Run(ctx context.Context) RunSummary {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.run(ctx, o.sources)
}

// RunOne processes a single configured source by id.
func (o *Orchestrator) RunOne(ctx context.Context, sourceID string) (RunSummary, error) {
	for _, cfg := range o.sources {
		if cfg.ID != sourceID {
			continue
		}
		if !o.mu.TryLock() {
			return RunSummary{}, ErrRunInProgress
		}
		defer o.mu.Unlock()
		return o.run(ctx, []SourceConfig{cfg}), nil
	}
	return RunSummary{}, fmt.Errorf("source %q is not configured", sourceID)
}

func (o *Orchestrator) run(ctx context.Context, sources []SourceConfig) RunSummary {
	summary := RunSummary{
		RunID:     uuid.New(),
		StartedAt: o.now(),
		DryRun:    o.dryRun,
	}
	log := o.logger.With(zap.String("run_id", summary.RunID.String()))
	log.Info("ingestion run started", zap.Int("sources", len(sources)), zap.Bool("dry_run", o.dryRun))

	for _, cfg := range sources {
		if ctx.Err() != nil {
			log.Warn("ingestion run cancelled", zap.Error(ctx.Err()))
			break
		}
		stats := o.runSource(ctx, cfg)
		if stats.Skipped {
			continue
		}
		summary.add(stats)
		o.writeReport(ctx, summary.RunID, stats)
	}

	summary.FinishedAt = o.now()
	log.Info("ingestion run finished",
		zap.Int("sources", len(summary.Sources)),
		zap.Int("processed", summary.Processed),
		zap.Int("added", summary.Added),
		zap.Int("updated", summary.Updated),
		zap.Int("flagged", summary.Flagged),
		zap.Int("failed_sources", summary.Failed),
		zap.Duration("elapsed", summary.FinishedAt.Sub(summary.StartedAt)),
	)

	if o.notifier != nil && !o.dryRun {
		if err := o.notifier.SendSummary(ctx, summary); err != nil {
			log.Warn("summary notification failed", zap.Error(apperr.Wrap(apperr.KindNotify, "send summary", err)))
		}
	}
	return summary
}

// RunSource fetches, parses and upserts one source. Unknown source types are
// returned with Skipped set.
func (o *Orchestrator) RunSource(ctx context.Context, cfg SourceConfig) SourceStats {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.runSource(ctx, cfg)
}

func (o *Orchestrator) runSource(ctx context.Context, cfg SourceConfig) SourceStats {
	start := time.Now()
	stats := SourceStats{Source: cfg.ID, Status: models.ReportSuccess}
	log := o.logger.With(zap.String("source", cfg.ID), zap.String("type", string(cfg.Type)))

	reader, ok := o.readers[cfg.Type]
	if !ok {
		log.Warn("unknown source type, skipping")
		stats.Skipped = true
		return stats
	}

	fetchCtx, cancel := context.WithTimeout(ctx, o.fetchTimeout)
	items, err := reader.Read(fetchCtx, cfg)
	cancel()
	if err != nil {
		if apperr.KindOf(err) == "" {
			err = apperr.Wrap(apperr.KindFetch, "read "+cfg.ID, err)
		}
		log.Error("source failed", zap.Error(err))
		stats.Status = models.ReportError
		stats.Error = err.Error()
		o.finishSource(&stats, start)
		return stats
	}

	for _, raw := range items {
		if ctx.Err() != nil {
			break
		}
		o.processItem(ctx, cfg, raw, &stats, log)
	}

	o.finishSource(&stats, start)
	log.Info("source processed",
		zap.Int("processed", stats.Processed),
		zap.Int("added", stats.Added),
		zap.Int("updated", stats.Updated),
		zap.Int("flagged", stats.Flagged),
	)
	return stats
}

func (o *Orchestrator) finishSource(stats *SourceStats, start time.Time) {
	stats.Duration = time.Since(start)
	metrics.SourceRunsTotal.WithLabelValues(stats.Source, stats.Status).Inc()
	metrics.SourceDuration.WithLabelValues(stats.Source).Observe(stats.Duration.Seconds())
}

// processItem normalizes, resolves and upserts one raw item. Any failure is
// absorbed into the flagged counter.
func (o *Orchestrator) processItem(ctx context.Context, cfg SourceConfig, raw RawItem, stats *SourceStats, log *zap.Logger) {
	stats.Processed++
	flagged := false
	defer func() {
		if r := recover(); r != nil {
			log.Error("item panicked", zap.Any("panic", r))
			flagged = true
		}
		if flagged {
			stats.Flagged++
			metrics.ItemsTotal.WithLabelValues(cfg.ID, "flagged").Inc()
		}
	}()

	rec := Normalize(raw, cfg.ID, cfg.Fields)
	if rec.Name == nil || rec.Link == nil {
		rec.NeedsReview = true
		flagged = true
	}

	now := o.now().UTC()
	if o.verifier != nil {
		status := o.verifier.Verify(ctx, rec.LinkURL())
		rec.LinkBroken = !status.Reachable
		checked := now
		rec.LastChecked = &checked
	}
	rec.Expired = dates.Before(rec.Deadline, now)
	rec.LastUpdated = now

	if o.embedder != nil {
		if vec, err := o.embedder.GenerateEmbedding(ctx, rec.Text()); err != nil {
			log.Debug("embedding skipped", zap.String("name", rec.DisplayName()), zap.Error(err))
		} else {
			rec.Embedding = vec
		}
	}

	existing, strategy, err := o.resolver.ResolveWithStrategy(ctx, &rec)
	if err != nil {
		log.Warn("dedup lookup failed", zap.String("name", rec.DisplayName()), zap.Error(err))
		flagged = true
		return
	}

	if o.dryRun {
		if existing != nil {
			stats.Updated++
		} else {
			stats.Added++
		}
		return
	}

	if existing != nil {
		if err := o.store.Update(ctx, *existing, &rec); err != nil {
			o.logWriteFailure(log, rec, err)
			flagged = true
			return
		}
		stats.Updated++
		metrics.ItemsTotal.WithLabelValues(cfg.ID, "updated").Inc()
		log.Debug("record updated", zap.String("id", existing.String()), zap.String("match", string(strategy)))
		return
	}

	if _, err := o.store.Insert(ctx, &rec); err != nil {
		o.logWriteFailure(log, rec, err)
		flagged = true
		return
	}
	stats.Added++
	metrics.ItemsTotal.WithLabelValues(cfg.ID, "added").Inc()
}

// logWriteFailure reports a record that passed dedup but was not stored.
func (o *Orchestrator) logWriteFailure(log *zap.Logger, rec models.Scholarship, err error) {
	log.Error("upsert write failed, record dropped",
		zap.String("name", rec.DisplayName()),
		zap.String("source_id", rec.SourceID),
		zap.Error(apperr.Wrap(apperr.KindWrite, "upsert", err)),
	)
}

func (o *Orchestrator) writeReport(ctx context.Context, runID uuid.UUID, stats SourceStats) {
	if o.sink == nil || o.dryRun {
		return
	}
	report := models.IngestionReport{
		RunID:          runID,
		Source:         stats.Source,
		Status:         stats.Status,
		Message:        stats.Message(),
		ItemsProcessed: stats.Processed,
		ItemsAdded:     stats.Added,
		ItemsUpdated:   stats.Updated,
		ItemsFlagged:   stats.Flagged,
		Error:          stats.Error,
		OccurredAt:     o.now().UTC(),
	}
	if err := o.sink.WriteReport(ctx, report); err != nil {
		o.logger.Error("ingestion report not written", zap.String("source", stats.Source), zap.Error(err))
	}
}

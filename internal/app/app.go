// Package app assembles the store, ingestion pipeline, matcher and scheduler
// from configuration. The server and the CLI share it.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/david/scholarship-finder/internal/ai"
	"github.com/david/scholarship-finder/internal/cache"
	"github.com/david/scholarship-finder/internal/config"
	"github.com/david/scholarship-finder/internal/db"
	"github.com/david/scholarship-finder/internal/events"
	"github.com/david/scholarship-finder/internal/ingest"
	"github.com/david/scholarship-finder/internal/logger"
	"github.com/david/scholarship-finder/internal/match"
	"github.com/david/scholarship-finder/internal/models"
	"github.com/david/scholarship-finder/internal/notify"
	"github.com/david/scholarship-finder/internal/scheduler"
)

// MemoryDatabase selects the in-process store instead of Postgres.
const MemoryDatabase = "memory"

// Store is everything the application needs from persistence.
type Store interface {
	ingest.RecordStore
	ingest.ReportSink
	ingest.LinkStore
	match.ContextLister
	Ping(ctx context.Context) error
	GetScholarship(ctx context.Context, id uuid.UUID) (*models.Scholarship, error)
	ListScholarships(ctx context.Context, params db.ListParams) (*db.ListResult, error)
	ListReports(ctx context.Context, source string, limit int) ([]models.IngestionReport, error)
}

type Options struct {
	DryRun bool
	// Store overrides the configured database.
	Store Store
}

type App struct {
	Config       *config.Config
	Logger       *zap.Logger
	Store        Store
	Registry     *ingest.Registry
	Orchestrator *ingest.Orchestrator
	Sweeper      *ingest.LinkSweeper
	Aggregator   *match.Aggregator
	Scheduler    *scheduler.Scheduler

	closers []func() error
}

func New(ctx context.Context, cfg *config.Config, log *zap.Logger, opts Options) (*App, error) {
	log = logger.OrNop(log)
	a := &App{Config: cfg, Logger: log}

	store, err := a.openStore(ctx, opts.Store)
	if err != nil {
		return nil, err
	}
	a.Store = store

	c := a.openCache(ctx)

	reg, err := ingest.LoadRegistry(cfg.SourcesFile)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Registry = reg

	verifier := ingest.NewLinkVerifier(ingest.LinkVerifierOptions{
		Timeout:      cfg.Links.Timeout,
		MaxRedirects: cfg.Links.MaxRedirects,
		AllowPrivate: cfg.Ingest.AllowPrivate,
		Cache:        c,
		CacheTTL:     cfg.Links.CacheTTL,
		Logger:       log,
	})

	completer, embedder, err := a.openOracle(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	fetcher := ingest.NewRateLimitedFetcher(ingest.FetchConfig{
		Timeout:      cfg.Ingest.FetchTimeout,
		MaxRetries:   cfg.Ingest.MaxRetries,
		RateLimitRPS: cfg.Ingest.RateLimitRPS,
		AllowPrivate: cfg.Ingest.AllowPrivate,
	})

	orchOpts := ingest.Options{
		Sources:      reg.Enabled(),
		Readers:      ingest.DefaultReaders(fetcher, nil, log),
		Store:        store,
		Resolver:     ingest.NewResolver(store, cfg.Ingest.NameFragmentLength),
		Sink:         a.reportSink(store),
		Logger:       log,
		FetchTimeout: cfg.Ingest.FetchTimeout,
		DryRun:       opts.DryRun,
	}
	if cfg.Ingest.VerifyLinks {
		orchOpts.Verifier = verifier
	}
	if cfg.Ingest.Embed && embedder != nil {
		orchOpts.Embedder = embedder
	}
	if cfg.SMTP.Enabled() {
		orchOpts.Notifier = notify.NewMailer(cfg.SMTP, log)
	}
	a.Orchestrator = ingest.NewOrchestrator(orchOpts)

	a.Sweeper = &ingest.LinkSweeper{
		Store:    store,
		Verifier: verifier,
		MaxAge:   cfg.Links.MaxAge,
		Batch:    cfg.Links.SweepBatch,
		Logger:   log,
	}

	oracle := &match.OracleSource{
		Completer: completer,
		Embedder:  embedder,
		Context:   store,
		Cache:     c,
		CacheTTL:  cfg.Oracle.CacheTTL,
		Timeout:   cfg.Oracle.Timeout,
		Sample:    cfg.Match.ContextSample,
		Logger:    log,
	}
	a.Aggregator = match.NewAggregator(match.Options{
		Sources: []match.CandidateSource{
			&match.StoredSource{Store: store, Limit: cfg.Match.StoredLimit},
			oracle,
		},
		MaxResults: cfg.Match.MaxResults,
		MinScore:   cfg.Match.MinScore,
		Logger:     log,
	})

	a.Scheduler = scheduler.New(log)
	a.Scheduler.Register(scheduler.JobIngest, a.runIngest)
	a.Scheduler.Register(scheduler.JobLinkSweep, a.runSweep)

	return a, nil
}

func (a *App) openStore(ctx context.Context, override Store) (Store, error) {
	if override != nil {
		return override, nil
	}
	if a.Config.DatabaseURL == MemoryDatabase {
		a.Logger.Warn("using in-memory store, records are lost on exit")
		return db.NewMemoryStore(), nil
	}

	pool, err := db.Connect(ctx, a.Config.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.ApplyMigrations(ctx, pool, a.Logger); err != nil {
		pool.Close()
		return nil, err
	}
	a.closers = append(a.closers, func() error { pool.Close(); return nil })
	return db.NewStore(pool), nil
}

// openCache connects to Redis when configured. A failed connection degrades
// to no caching.
func (a *App) openCache(ctx context.Context) cache.Cache {
	if a.Config.RedisURL == "" {
		return cache.Nop{}
	}
	client, err := cache.NewRedisClient(ctx, a.Config.RedisURL)
	if err != nil {
		a.Logger.Warn("redis unavailable, caching disabled", zap.Error(err))
		return cache.Nop{}
	}
	a.closers = append(a.closers, client.Close)
	return cache.NewRedis(client, "scholarships:")
}

// openOracle returns the configured completer and, when an Ollama host is
// set, an embedder. Either may be nil.
func (a *App) openOracle(ctx context.Context) (ai.Completer, ai.Embedder, error) {
	oc := a.Config.Oracle
	var embedder ai.Embedder
	var ollama *ai.OllamaClient
	if oc.Ollama.Host != "" {
		ollama = ai.NewOllamaClient(oc.Ollama.Host, oc.Ollama.EmbedModel, oc.Ollama.Model)
		embedder = ollama
	}

	switch oc.Provider {
	case "ollama":
		if ollama == nil {
			return nil, embedder, errors.New("oracle provider ollama needs oracle.ollama.host")
		}
		return ollama, embedder, nil
	case "gemini":
		if oc.Gemini.APIKey == "" {
			a.Logger.Warn("gemini api key missing, oracle disabled")
			return nil, embedder, nil
		}
		g, err := ai.NewGeminiClient(ctx, oc.Gemini.APIKey, oc.Gemini.Model, oc.Gemini.WebSearch)
		if err != nil {
			return nil, nil, fmt.Errorf("gemini client: %w", err)
		}
		return g, embedder, nil
	default:
		return nil, embedder, nil
	}
}

func (a *App) reportSink(store Store) ingest.ReportSink {
	if !a.Config.Kafka.Enabled() {
		return store
	}
	pub := events.NewReportPublisher(a.Config.Kafka.Brokers, a.Config.Kafka.Topic, a.Logger)
	a.closers = append(a.closers, pub.Close)
	return ingest.MultiSink{store, pub}
}

// ErrAllSourcesFailed marks an ingestion run where no source succeeded.
var ErrAllSourcesFailed = errors.New("every source failed")

func (a *App) runIngest(ctx context.Context) error {
	summary := a.Orchestrator.Run(ctx)
	if len(summary.Sources) > 0 && summary.Failed == len(summary.Sources) {
		return fmt.Errorf("%w (%d sources)", ErrAllSourcesFailed, summary.Failed)
	}
	return nil
}

func (a *App) runSweep(ctx context.Context) error {
	_, err := a.Sweeper.Sweep(ctx)
	return err
}

// Close releases connections in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

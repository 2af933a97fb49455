// Package scheduler runs the periodic ingestion and link sweep jobs. A job
// never overlaps with itself, whether it was fired by cron or triggered
// manually from the admin API or CLI.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/david/scholarship-finder/internal/logger"
)

const (
	JobIngest    = "ingest"
	JobLinkSweep = "link-sweep"
)

var (
	ErrBusy       = errors.New("job is already running")
	ErrUnknownJob = errors.New("unknown job")
)

type JobFunc func(ctx context.Context) error

type job struct {
	name string
	run  JobFunc
	lock sync.Mutex
}

// Scheduler wraps robfig/cron with per-job locking.
type Scheduler struct {
	cron   *cron.Cron
	logger *zap.Logger

	mu   sync.Mutex
	jobs map[string]*job
	ctx  context.Context
}

func New(log *zap.Logger) *Scheduler {
	log = logger.OrNop(log)
	return &Scheduler{
		cron:   cron.New(cron.WithLogger(cronLogger{log: log})),
		logger: log,
		jobs:   make(map[string]*job),
		ctx:    context.Background(),
	}
}

// Register makes a job available for Schedule and Trigger.
func (s *Scheduler) Register(name string, run JobFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[name] = &job{name: name, run: run}
}

// Schedule fires a registered job on a cron spec. An empty spec is a no-op.
func (s *Scheduler) Schedule(name, spec string) error {
	if spec == "" {
		return nil
	}
	j, err := s.job(name)
	if err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(spec, func() {
		if err := s.execute(s.context(), j); errors.Is(err, ErrBusy) {
			s.logger.Info("skipping scheduled run, previous run still active", zap.String("job", name))
		}
	}); err != nil {
		return fmt.Errorf("cron.AddFunc %s: %w", name, err)
	}
	s.logger.Info("job scheduled", zap.String("job", name), zap.String("spec", spec))
	return nil
}

// Trigger runs a job now and waits for it. It returns ErrBusy without
// running when the job is already in progress.
func (s *Scheduler) Trigger(ctx context.Context, name string) error {
	j, err := s.job(name)
	if err != nil {
		return err
	}
	return s.execute(ctx, j)
}

// Running reports whether the named job is in progress.
func (s *Scheduler) Running(name string) bool {
	j, err := s.job(name)
	if err != nil {
		return false
	}
	if j.lock.TryLock() {
		j.lock.Unlock()
		return false
	}
	return true
}

// Jobs lists registered job names.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Start begins firing scheduled jobs with ctx as their parent context.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()
	s.cron.Start()
	s.logger.Info("scheduler started", zap.Int("entries", len(s.cron.Entries())))
}

// Stop halts the cron loop and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) job(name string) (*job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return j, nil
}

func (s *Scheduler) context() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

func (s *Scheduler) execute(ctx context.Context, j *job) error {
	if !j.lock.TryLock() {
		return ErrBusy
	}
	defer j.lock.Unlock()

	start := time.Now()
	s.logger.Info("job started", zap.String("job", j.name))
	if err := j.run(ctx); err != nil {
		s.logger.Error("job failed", zap.String("job", j.name), zap.Duration("duration", time.Since(start)), zap.Error(err))
		return err
	}
	s.logger.Info("job finished", zap.String("job", j.name), zap.Duration("duration", time.Since(start)))
	return nil
}

// cronLogger routes cron's own messages through zap.
type cronLogger struct {
	log *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Sugar().Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}

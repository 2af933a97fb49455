package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/david/scholarship-finder/internal/ingest"
	"github.com/david/scholarship-finder/internal/scheduler"
)

const (
	jobRunning   = "running"
	jobCompleted = "completed"
	jobFailed    = "failed"
)

type backgroundJob struct {
	ID        string     `json:"id"`
	Kind      string     `json:"kind"`
	Status    string     `json:"status"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	Duration  string     `json:"duration,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// jobTracker keeps the most recent background jobs for status polling.
type jobTracker struct {
	mu    sync.Mutex
	jobs  map[string]*backgroundJob
	order []string
	keep  int
}

func newJobTracker(keep int) *jobTracker {
	return &jobTracker{jobs: make(map[string]*backgroundJob), keep: keep}
}

func (t *jobTracker) add(kind string) *backgroundJob {
	t.mu.Lock()
	defer t.mu.Unlock()

	job := &backgroundJob{
		ID:        uuid.New().String()[:8],
		Kind:      kind,
		Status:    jobRunning,
		StartedAt: time.Now(),
	}
	t.jobs[job.ID] = job
	t.order = append(t.order, job.ID)
	for len(t.order) > t.keep {
		delete(t.jobs, t.order[0])
		t.order = t.order[1:]
	}
	return job
}

func (t *jobTracker) finish(job *backgroundJob, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	job.EndedAt = &now
	job.Duration = now.Sub(job.StartedAt).String()
	if err != nil {
		job.Status = jobFailed
		job.Error = err.Error()
		return
	}
	job.Status = jobCompleted
}

// get returns a copy safe to serialize outside the lock.
func (t *jobTracker) get(id string) (backgroundJob, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	job, ok := t.jobs[id]
	if !ok {
		return backgroundJob{}, false
	}
	return *job, true
}

// startJob runs a scheduler job in the background and returns 202 with a
// poll URL, or 409 when that job is already running.
func (s *Server) startJob(c echo.Context, name string) error {
	if s.runner.Running(name) {
		return c.JSON(http.StatusConflict, map[string]any{
			"error": fmt.Sprintf("%s job is already running", name),
		})
	}

	// Detached from the request lifecycle, bounded by our own timeout.
	jobCtx, cancel := context.WithTimeout(context.WithoutCancel(c.Request().Context()), s.jobTimeout)
	job := s.jobs.add(name)

	go func() {
		defer cancel()
		err := s.runner.Trigger(jobCtx, name)
		s.jobs.finish(job, err)
		if err != nil && !errors.Is(err, scheduler.ErrBusy) {
			s.logger.Error("background job failed", zap.String("job_id", job.ID), zap.String("kind", name), zap.Error(err))
		}
	}()

	return c.JSON(http.StatusAccepted, map[string]any{
		"message": fmt.Sprintf("%s job started", name),
		"job_id":  job.ID,
		"poll":    fmt.Sprintf("/api/v1/admin/job/%s", job.ID),
	})
}

func (s *Server) handleIngestAll(c echo.Context) error {
	return s.startJob(c, scheduler.JobIngest)
}

func (s *Server) handleVerifyLinks(c echo.Context) error {
	return s.startJob(c, scheduler.JobLinkSweep)
}

func (s *Server) handleIngestSourceByID(c echo.Context) error {
	sourceID := strings.TrimSpace(c.Param("id"))
	summary, err := s.sources.RunOne(c.Request().Context(), sourceID)
	if errors.Is(err, ingest.ErrRunInProgress) {
		return errorJSON(c, http.StatusConflict, err.Error())
	}
	if err != nil {
		return errorJSON(c, http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{
		"message": fmt.Sprintf("%s ingestion complete", sourceID),
		"summary": summary,
	})
}

func (s *Server) handleJobStatus(c echo.Context) error {
	job, ok := s.jobs.get(c.Param("id"))
	if !ok {
		return errorJSON(c, http.StatusNotFound, "job not found")
	}
	return c.JSON(http.StatusOK, job)
}

package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/david/scholarship-finder/internal/logger"
	"github.com/david/scholarship-finder/internal/models"
)

// LinkStore is the slice of the record store the sweeper needs.
type LinkStore interface {
	ListStaleLinks(ctx context.Context, checkedBefore time.Time, limit int) ([]models.Scholarship, error)
	UpdateLinkStatus(ctx context.Context, id uuid.UUID, broken bool, checkedAt time.Time) error
}

// SweepResult counts one sweep.
type SweepResult struct {
	Checked int `json:"checked"`
	Broken  int `json:"broken"`
	Failed  int `json:"failed"`
}

// LinkSweeper re-verifies stored links whose last check is older than MaxAge.
type LinkSweeper struct {
	Store    LinkStore
	Verifier LinkChecker
	MaxAge   time.Duration
	Batch    int
	Logger   *zap.Logger
	Now      func() time.Time
}

func (s *LinkSweeper) Sweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	log := logger.OrNop(s.Logger)
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	batch := s.Batch
	if batch <= 0 {
		batch = 200
	}

	cutoff := now().Add(-s.MaxAge)
	records, err := s.Store.ListStaleLinks(ctx, cutoff, batch)
	if err != nil {
		return res, fmt.Errorf("list stale links: %w", err)
	}

	for _, rec := range records {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		status := s.Verifier.Verify(ctx, rec.LinkURL())
		res.Checked++
		if !status.Reachable {
			res.Broken++
		}
		if err := s.Store.UpdateLinkStatus(ctx, rec.ID, !status.Reachable, now().UTC()); err != nil {
			res.Failed++
			log.Warn("link status not saved", zap.String("id", rec.ID.String()), zap.Error(err))
		}
	}

	log.Info("link sweep finished",
		zap.Int("checked", res.Checked),
		zap.Int("broken", res.Broken),
		zap.Int("failed", res.Failed),
	)
	return res, nil
}

package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/firmasegura/certifications-backend/pkg/logger"
)

const (
	staleDraftDays      = 180
	staleDraftBatchSize = 100
	staleDraftMaxRounds = 50
)

type draftPurger interface {
	PurgeStaleDrafts(ctx context.Context, cutoff time.Time, limit int) (int, error)
}

type StaleDraftJobParams struct {
	Logger        *logger.Logger
	Purger        draftPurger
	RetentionDays int
	BatchSize     int
}

// NewStaleDraftJob removes drafts untouched for RetentionDays together with their attachments.
func NewStaleDraftJob(params StaleDraftJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Purger == nil {
		return nil, fmt.Errorf("draft purger required")
	}
	days := params.RetentionDays
	if days <= 0 {
		days = staleDraftDays
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = staleDraftBatchSize
	}
	return &staleDraftJob{
		logg:   params.Logger,
		purger: params.Purger,
		days:   days,
		batch:  batch,
		now:    time.Now,
	}, nil
}

type staleDraftJob struct {
	logg   *logger.Logger
	purger draftPurger
	days   int
	batch  int
	now    func() time.Time
}

func (j *staleDraftJob) Name() string { return "stale-draft-cleanup" }

func (j *staleDraftJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().AddDate(0, 0, -j.days)
	total := 0
	for round := 0; round < staleDraftMaxRounds; round++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		purged, err := j.purger.PurgeStaleDrafts(ctx, cutoff, j.batch)
		total += purged
		if err != nil {
			return fmt.Errorf("purge stale drafts: %w", err)
		}
		if purged < j.batch {
			break
		}
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":        cutoff,
		"drafts_purged": total,
	})
	j.logg.Info(logCtx, "stale draft cleanup complete")
	return nil
}

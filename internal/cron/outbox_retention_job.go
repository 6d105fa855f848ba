package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/firmasegura/certifications-backend/pkg/logger"
)

const defaultOutboxRetention = 30 * 24 * time.Hour

type publishedPruner interface {
	DeletePublishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type OutboxRetentionJobParams struct {
	Logger        *logger.Logger
	Repository    publishedPruner
	RetentionDays int
}

// outboxRetentionJob drops outbox rows once they have been published for longer than keep.
// Unpublished rows are never touched, whatever their age.
type outboxRetentionJob struct {
	logg *logger.Logger
	repo publishedPruner
	keep time.Duration
	now  func() time.Time
}

func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository required")
	}
	keep := defaultOutboxRetention
	if params.RetentionDays > 0 {
		keep = time.Duration(params.RetentionDays) * 24 * time.Hour
	}
	return &outboxRetentionJob{logg: params.Logger, repo: params.Repository, keep: keep, now: time.Now}, nil
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.keep)
	removed, err := j.repo.DeletePublishedBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("prune published outbox rows before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"rows_deleted": removed,
	}), "outbox retention cleanup complete")
	return nil
}

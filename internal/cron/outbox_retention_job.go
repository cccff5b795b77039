package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/visitrewards-backend/pkg/enums"
	"github.com/angelmondragon/visitrewards-backend/pkg/logger"
	"gorm.io/gorm"
)

const (
	outboxRetentionDays = 30
	outboxMinAttempts   = 5
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxRetentionRepo interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, minAttemptCount int) (int64, error)
	CountPending(ctx context.Context) (int64, error)
}

type deadLetterCounter interface {
	CountByReasonSince(ctx context.Context, since time.Time) (map[enums.OutboxDLQErrorReason]int64, error)
}

// OutboxRetentionJobParams configures pruning of settled notification rows.
type OutboxRetentionJobParams struct {
	Logger      *logger.Logger
	DB          txRunner
	Repository  outboxRetentionRepo
	DeadLetters deadLetterCounter
	Retention   int
	MinAttempts int
}

// NewOutboxRetentionJob returns the job that deletes published outbox rows and
// terminal failures older than the retention window, then reports the
// remaining backlog so a stalled relay shows up in the cron logs.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	job := &outboxRetentionJob{
		logg:        params.Logger,
		db:          params.DB,
		repo:        params.Repository,
		deadLetters: params.DeadLetters,
		retention:   params.Retention,
		minAttempts: params.MinAttempts,
		now:         time.Now,
	}
	if job.retention <= 0 {
		job.retention = outboxRetentionDays
	}
	if job.minAttempts <= 0 {
		job.minAttempts = outboxMinAttempts
	}
	return job, nil
}

type outboxRetentionJob struct {
	logg        *logger.Logger
	db          txRunner
	repo        outboxRetentionRepo
	deadLetters deadLetterCounter
	retention   int
	minAttempts int
	now         func() time.Time
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	cutoff := now.Add(-time.Duration(j.retention) * 24 * time.Hour)

	var deleted int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := j.repo.DeletePublishedBefore(ctx, tx, cutoff, j.minAttempts)
		deleted = rows
		return err
	})
	if err != nil {
		return fmt.Errorf("outbox retention: %w", err)
	}

	fields := map[string]any{
		"cutoff":         cutoff,
		"retention_days": j.retention,
		"rows_deleted":   deleted,
	}
	// backlog figures are informational; a failed count does not fail the job
	if pending, err := j.repo.CountPending(ctx); err == nil {
		fields["pending_notifications"] = pending
	} else {
		j.logg.Warn(j.logg.WithField(ctx, "error", err.Error()), "count pending notifications failed")
	}
	if j.deadLetters != nil {
		if counts, err := j.deadLetters.CountByReasonSince(ctx, now.Add(-24*time.Hour)); err == nil {
			fields["dead_letters_24h"] = counts
		} else {
			j.logg.Warn(j.logg.WithField(ctx, "error", err.Error()), "count dead letters failed")
		}
	}
	j.logg.Info(j.logg.WithFields(ctx, fields), "notification outbox retention complete")
	return nil
}

package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/visitrewards-backend/internal/giftsync"
	"github.com/angelmondragon/visitrewards-backend/pkg/logger"
)

type giftReconciler interface {
	Reconcile(ctx context.Context) (giftsync.Report, error)
}

// GiftSyncJobParams wires the periodic first-visit gift reconcile.
type GiftSyncJobParams struct {
	Logger     *logger.Logger
	Reconciler giftReconciler
}

// NewGiftSyncJob returns the gift-sync job.
func NewGiftSyncJob(params GiftSyncJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Reconciler == nil {
		return nil, fmt.Errorf("gift reconciler required")
	}
	return &giftSyncJob{logg: params.Logger, reconciler: params.Reconciler}, nil
}

type giftSyncJob struct {
	logg       *logger.Logger
	reconciler giftReconciler
}

func (j *giftSyncJob) Name() string { return "gift-sync" }

// Run reports partial progress even when some programs failed.
func (j *giftSyncJob) Run(ctx context.Context) error {
	report, err := j.reconciler.Reconcile(ctx)
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"programs_examined": report.Examined,
		"gifts_created":     len(report.Created),
		"gifts_updated":     len(report.Updated),
		"gifts_drifted":     len(report.Drifted),
	})
	if err != nil {
		return fmt.Errorf("gift sync: %w", err)
	}
	j.logg.Info(logCtx, "gift sync complete")
	return nil
}

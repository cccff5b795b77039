package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/visitrewards-backend/pkg/logger"
)

const defaultTokenRetention = 72 * time.Hour

type tokenPruner interface {
	DeleteExpiredTokens(ctx context.Context, before time.Time) (int64, error)
}

// RedemptionTokenJobParams configures request-token pruning.
type RedemptionTokenJobParams struct {
	Logger    *logger.Logger
	Ledger    tokenPruner
	Retention time.Duration
}

// NewRedemptionTokenJob returns the job that deletes request-token
// reservations once their dedupe window has passed. Redemption records stay.
func NewRedemptionTokenJob(params RedemptionTokenJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = defaultTokenRetention
	}
	return &redemptionTokenJob{
		logg:      params.Logger,
		ledger:    params.Ledger,
		retention: retention,
		now:       time.Now,
	}, nil
}

type redemptionTokenJob struct {
	logg      *logger.Logger
	ledger    tokenPruner
	retention time.Duration
	now       func() time.Time
}

func (j *redemptionTokenJob) Name() string { return "redemption-token-retention" }

func (j *redemptionTokenJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	deleted, err := j.ledger.DeleteExpiredTokens(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("delete expired redemption tokens: %w", err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":         cutoff,
		"tokens_deleted": deleted,
	}), "redemption token retention complete")
	return nil
}

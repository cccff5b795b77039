package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/visitrewards-backend/pkg/logger"
)

type fakeTokenPruner struct {
	before time.Time
	err    error
}

func (f *fakeTokenPruner) DeleteExpiredTokens(ctx context.Context, before time.Time) (int64, error) {
	f.before = before
	return 3, f.err
}

func TestRedemptionTokenJobUsesRetentionCutoff(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	pruner := &fakeTokenPruner{}
	jobIface, err := NewRedemptionTokenJob(RedemptionTokenJobParams{
		Logger:    logger.New(logger.Options{ServiceName: "test"}),
		Ledger:    pruner,
		Retention: 48 * time.Hour,
	})
	if err != nil {
		t.Fatalf("NewRedemptionTokenJob: %v", err)
	}
	job := jobIface.(*redemptionTokenJob)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := now.Add(-48 * time.Hour); !pruner.before.Equal(want) {
		t.Fatalf("expected cutoff %s, got %s", want, pruner.before)
	}
}

func TestRedemptionTokenJobDefaultsAndErrors(t *testing.T) {
	jobIface, err := NewRedemptionTokenJob(RedemptionTokenJobParams{
		Logger: logger.New(logger.Options{ServiceName: "test"}),
		Ledger: &fakeTokenPruner{err: errors.New("db down")},
	})
	if err != nil {
		t.Fatalf("NewRedemptionTokenJob: %v", err)
	}
	job := jobIface.(*redemptionTokenJob)
	if job.retention != defaultTokenRetention {
		t.Fatalf("expected default retention, got %s", job.retention)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

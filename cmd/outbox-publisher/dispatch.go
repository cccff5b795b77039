package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/visitrewards-backend/pkg/db/models"
	"github.com/angelmondragon/visitrewards-backend/pkg/enums"
	"github.com/angelmondragon/visitrewards-backend/pkg/outbox/registry"
	"gorm.io/gorm"
)

type outcome int

const (
	outcomePublished outcome = iota
	outcomeRetry
	outcomeDeadLettered
)

// drainBatch claims one batch and settles every row in the same transaction.
// A row that fails never blocks the rest of the batch.
func (r *Relay) drainBatch(ctx context.Context) (int, error) {
	var claimed int
	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := r.repo.FetchUnpublishedForPublish(tx, r.batchSize, r.maxAttempts)
		if err != nil {
			return fmt.Errorf("claim outbox rows: %w", err)
		}
		claimed = len(rows)

		tally := map[outcome]int{}
		for _, row := range rows {
			result, err := r.settle(ctx, tx, row)
			if err != nil {
				return err
			}
			tally[result]++
		}
		if claimed > 0 {
			r.logg.Info(r.logg.WithFields(ctx, map[string]any{
				"claimed":       claimed,
				"published":     tally[outcomePublished],
				"retrying":      tally[outcomeRetry],
				"dead_lettered": tally[outcomeDeadLettered],
			}), "notification batch settled")
		}
		return nil
	})
	return claimed, err
}

// settle publishes one row and records the result. The returned error is a
// bookkeeping failure that aborts the batch transaction.
func (r *Relay) settle(ctx context.Context, tx *gorm.DB, row models.OutboxEvent) (outcome, error) {
	resolved, err := r.registry.Resolve(row)
	if err != nil {
		reason := enums.OutboxDLQReasonNonRetryable
		if errors.Is(err, registry.ErrUnknownEvent) {
			reason = enums.OutboxDLQReasonUnknownEvent
		}
		return outcomeDeadLettered, r.deadLetter(ctx, tx, row, reason, err)
	}

	logCtx := r.logg.WithFields(ctx, rowFields(row, resolved))
	publishErr := r.publish(ctx, row, resolved)
	if publishErr == nil {
		if err := r.repo.MarkPublishedTx(tx, row.ID); err != nil {
			return outcomePublished, fmt.Errorf("mark published %s: %w", row.ID, err)
		}
		r.logg.Info(logCtx, "notification published")
		return outcomePublished, nil
	}

	var nonRetryable registry.NonRetryableError
	if errors.As(publishErr, &nonRetryable) {
		return outcomeDeadLettered, r.deadLetter(logCtx, tx, row, enums.OutboxDLQReasonNonRetryable, publishErr)
	}
	if row.AttemptCount+1 >= r.maxAttempts {
		exhausted := fmt.Errorf("gave up after %d attempts: %w", row.AttemptCount+1, publishErr)
		return outcomeDeadLettered, r.deadLetter(logCtx, tx, row, enums.OutboxDLQReasonMaxAttempts, exhausted)
	}

	r.logg.Warn(r.logg.WithFields(logCtx, map[string]any{
		"attempt_count": row.AttemptCount + 1,
		"error":         publishErr.Error(),
	}), "notification publish failed; will retry")
	if err := r.repo.MarkFailedTx(tx, row.ID, publishErr); err != nil {
		return outcomeRetry, fmt.Errorf("mark failure %s: %w", row.ID, err)
	}
	return outcomeRetry, nil
}

// deadLetter copies the row to the DLQ and pins it so it is never claimed again.
func (r *Relay) deadLetter(ctx context.Context, tx *gorm.DB, row models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error) error {
	r.logg.Warn(r.logg.WithFields(ctx, map[string]any{
		"outbox_id":    row.ID.String(),
		"error_reason": reason,
		"error":        cause.Error(),
	}), "notification dead-lettered")

	message := cause.Error()
	entry := models.OutboxDLQ{
		EventID:       row.ID,
		EventType:     row.EventType,
		AggregateType: row.AggregateType,
		AggregateID:   row.AggregateID,
		Payload:       row.Payload,
		ErrorReason:   reason,
		ErrorMessage:  &message,
		AttemptCount:  row.AttemptCount,
		FailedAt:      time.Now().UTC(),
	}
	if err := r.dlq.InsertTx(tx, entry); err != nil {
		return fmt.Errorf("insert dlq %s: %w", row.ID, err)
	}
	if err := r.repo.MarkTerminalTx(tx, row.ID, cause, r.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", row.ID, err)
	}
	return nil
}

func rowFields(row models.OutboxEvent, resolved *registry.ResolvedEvent) map[string]any {
	fields := map[string]any{
		"outbox_id":     row.ID.String(),
		"event_type":    row.EventType,
		"membership_id": row.AggregateID.String(),
		"attempt_count": row.AttemptCount,
		"topic":         resolved.Descriptor.Topic,
		"event_id":      resolved.Envelope.EventID,
	}
	if n := notificationOf(resolved); n != nil {
		fields["notification_kind"] = n.Kind
		fields["program_id"] = n.ProgramID.String()
	}
	return fields
}

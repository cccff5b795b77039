package notifications

import (
	"context"
	"fmt"

	"github.com/angelmondragon/visitrewards-backend/pkg/enums"
	"github.com/angelmondragon/visitrewards-backend/pkg/logger"
	"github.com/angelmondragon/visitrewards-backend/pkg/outbox"
	"github.com/angelmondragon/visitrewards-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxWriter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Notice is one customer-facing notification request.
type Notice struct {
	Kind         enums.NotificationKind
	CustomerID   uuid.UUID
	ProgramID    uuid.UUID
	MembershipID uuid.UUID
	RewardID     uuid.UUID
	RewardName   string
	Actor        *outbox.ActorRef
}

// Emitter hands notification requests to the delivery service through the
// outbox. It runs after the ledger commit and never reports failure to the
// caller: a lost notification must not undo a visit or a redemption.
type Emitter struct {
	db     txRunner
	outbox outboxWriter
	logg   *logger.Logger
}

// NewEmitter wires the emitter.
func NewEmitter(db txRunner, writer outboxWriter, logg *logger.Logger) (*Emitter, error) {
	if db == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if writer == nil {
		return nil, fmt.Errorf("outbox writer required")
	}
	return &Emitter{db: db, outbox: writer, logg: logg}, nil
}

// Emit queues every notice in a single short transaction and reports how many were queued.
func (e *Emitter) Emit(ctx context.Context, notices ...Notice) int {
	if e == nil || len(notices) == 0 {
		return 0
	}
	err := e.db.WithTx(ctx, func(tx *gorm.DB) error {
		for _, notice := range notices {
			if err := e.outbox.Emit(ctx, tx, toDomainEvent(notice)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if e.logg != nil {
			logCtx := e.logg.WithFields(ctx, map[string]any{
				"program_id":    notices[0].ProgramID.String(),
				"membership_id": notices[0].MembershipID.String(),
				"notices":       len(notices),
			})
			e.logg.Error(logCtx, "notification emit failed", err)
		}
		return 0
	}
	return len(notices)
}

func toDomainEvent(notice Notice) outbox.DomainEvent {
	return outbox.DomainEvent{
		EventType:     enums.EventNotificationRequested,
		AggregateType: enums.AggregateMembership,
		AggregateID:   notice.MembershipID,
		Actor:         notice.Actor,
		Data: payloads.NotificationRequestedEvent{
			CustomerID:   notice.CustomerID,
			ProgramID:    notice.ProgramID,
			MembershipID: notice.MembershipID,
			Kind:         notice.Kind,
			RewardID:     notice.RewardID,
			RewardName:   notice.RewardName,
			Message:      Message(notice.Kind, notice.RewardName),
		},
	}
}

// Message renders the human-readable text shown to the customer.
func Message(kind enums.NotificationKind, rewardName string) string {
	switch kind {
	case enums.NotificationKindRewardUnlocked:
		return fmt.Sprintf("You unlocked %s! Show this at your next visit to redeem it.", rewardName)
	case enums.NotificationKindRewardRedeemed:
		return fmt.Sprintf("You redeemed %s. Enjoy!", rewardName)
	default:
		return rewardName
	}
}

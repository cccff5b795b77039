package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/visitrewards-backend/pkg/enums"
)

// RedemptionRecord is the append-only audit row for a reward exchange.
// RewardName is a snapshot so renames never rewrite history.
type RedemptionRecord struct {
	ID              uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	MembershipID    uuid.UUID              `gorm:"column:membership_id;type:uuid;not null;index:idx_redemption_records_membership_redeemed,priority:1"`
	RewardID        uuid.UUID              `gorm:"column:reward_id;type:uuid;not null"`
	RewardName      string                 `gorm:"column:reward_name;not null"`
	Source          enums.RedemptionSource `gorm:"column:source;type:text;not null"`
	StaffActorID    *uuid.UUID             `gorm:"column:staff_actor_id;type:uuid"`
	CostCharged     int                    `gorm:"column:cost_charged;not null"`
	RedeemableAfter int                    `gorm:"column:redeemable_after;not null"`
	RedeemedAt      time.Time              `gorm:"column:redeemed_at;not null;index:idx_redemption_records_membership_redeemed,priority:2"`
}

func (r *RedemptionRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.RedeemedAt.IsZero() {
		r.RedeemedAt = time.Now().UTC()
	}
	return nil
}

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// VisitRecord is the append-only audit row written for every recorded visit.
type VisitRecord struct {
	ID               uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	MembershipID     uuid.UUID  `gorm:"column:membership_id;type:uuid;not null;index:idx_visit_records_membership_recorded,priority:1"`
	StaffActorID     *uuid.UUID `gorm:"column:staff_actor_id;type:uuid"`
	AccumulatedAfter int        `gorm:"column:accumulated_after;not null"`
	RedeemableAfter  int        `gorm:"column:redeemable_after;not null"`
	RecordedAt       time.Time  `gorm:"column:recorded_at;not null;index:idx_visit_records_membership_recorded,priority:2"`
}

func (v *VisitRecord) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	if v.RecordedAt.IsZero() {
		v.RecordedAt = time.Now().UTC()
	}
	return nil
}

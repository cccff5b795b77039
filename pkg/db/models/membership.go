package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Membership holds a customer's visit balances within one program.
// Version is bumped on every balance write and guards compare-and-swap updates.
type Membership struct {
	ID                uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	ProgramID         uuid.UUID  `gorm:"column:program_id;type:uuid;not null;uniqueIndex:ux_memberships_program_customer,priority:1"`
	CustomerID        uuid.UUID  `gorm:"column:customer_id;type:uuid;not null;uniqueIndex:ux_memberships_program_customer,priority:2"`
	AccumulatedVisits int        `gorm:"column:accumulated_visits;not null;default:0"`
	RedeemableVisits  int        `gorm:"column:redeemable_visits;not null;default:0;check:chk_memberships_balance,redeemable_visits >= 0 AND redeemable_visits <= accumulated_visits"`
	Version           int64      `gorm:"column:version;not null;default:0"`
	EnrolledAt        time.Time  `gorm:"column:enrolled_at;not null"`
	LastVisitAt       *time.Time `gorm:"column:last_visit_at"`
	CreatedAt         time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (m *Membership) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.EnrolledAt.IsZero() {
		m.EnrolledAt = time.Now().UTC()
	}
	return nil
}

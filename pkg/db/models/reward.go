package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SystemGiftTag marks the reward managed by gift sync.
const SystemGiftTag = "system:first_visit_gift"

// Reward is a catalog entry redeemable for a number of visits.
type Reward struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ProgramID   uuid.UUID `gorm:"column:program_id;type:uuid;not null;uniqueIndex:ux_rewards_program_system_tag,priority:1"`
	Name        string    `gorm:"column:name;not null"`
	Description string    `gorm:"column:description;not null;default:''"`
	Tag         *string   `gorm:"column:tag;uniqueIndex:ux_rewards_program_system_tag,priority:2"`
	CostVisits  int       `gorm:"column:cost_visits;not null;check:chk_rewards_cost_non_negative,cost_visits >= 0"`
	Active      bool      `gorm:"column:active;not null;default:true"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// IsSystemGift reports whether the reward is the program's first-visit gift.
func (r Reward) IsSystemGift() bool {
	return r.Tag != nil && *r.Tag == SystemGiftTag
}

func (r *Reward) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Program is a business's loyalty configuration.
type Program struct {
	ID                    uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	BusinessID            uuid.UUID `gorm:"column:business_id;type:uuid;not null;index"`
	Name                  string    `gorm:"column:name;not null"`
	Active                bool      `gorm:"column:active;not null;default:true"`
	FirstVisitGiftEnabled bool      `gorm:"column:first_visit_gift_enabled;not null;default:false"`
	FirstVisitGiftText    string    `gorm:"column:first_visit_gift_text;not null;default:''"`
	CreatedAt             time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Program) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RedemptionRequestToken reserves a client request token for one membership
// while its dedupe window is open. Rows are pruned once the window passes;
// the redemption they point at is never touched.
type RedemptionRequestToken struct {
	MembershipID uuid.UUID `gorm:"column:membership_id;type:uuid;primaryKey"`
	Token        string    `gorm:"column:token;primaryKey"`
	RedemptionID uuid.UUID `gorm:"column:redemption_id;type:uuid;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;not null;index:idx_redemption_request_tokens_created"`
}

func (t *RedemptionRequestToken) BeforeCreate(tx *gorm.DB) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	return nil
}

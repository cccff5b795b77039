package ledger

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/visitrewards-backend/pkg/db/models"
	"github.com/angelmondragon/visitrewards-backend/pkg/enums"
)

// MembershipSnapshot is the transport shape of a membership's balances.
type MembershipSnapshot struct {
	ID                uuid.UUID  `json:"id"`
	ProgramID         uuid.UUID  `json:"program_id"`
	CustomerID        uuid.UUID  `json:"customer_id"`
	AccumulatedVisits int        `json:"accumulated_visits"`
	RedeemableVisits  int        `json:"redeemable_visits"`
	EnrolledAt        time.Time  `json:"enrolled_at"`
	LastVisitAt       *time.Time `json:"last_visit_at,omitempty"`
}

// VisitDTO exposes a visit audit row.
type VisitDTO struct {
	ID               uuid.UUID  `json:"id"`
	MembershipID     uuid.UUID  `json:"membership_id"`
	StaffActorID     *uuid.UUID `json:"staff_actor_id,omitempty"`
	AccumulatedAfter int        `json:"accumulated_after"`
	RedeemableAfter  int        `json:"redeemable_after"`
	RecordedAt       time.Time  `json:"recorded_at"`
}

// RedemptionDTO exposes a redemption audit row. The request token is not echoed.
type RedemptionDTO struct {
	ID              uuid.UUID              `json:"id"`
	MembershipID    uuid.UUID              `json:"membership_id"`
	RewardID        uuid.UUID              `json:"reward_id"`
	RewardName      string                 `json:"reward_name"`
	Source          enums.RedemptionSource `json:"source"`
	StaffActorID    *uuid.UUID             `json:"staff_actor_id,omitempty"`
	CostCharged     int                    `json:"cost_charged"`
	RedeemableAfter int                    `json:"redeemable_after"`
	RedeemedAt      time.Time              `json:"redeemed_at"`
}

// SnapshotFromModel maps a membership row.
func SnapshotFromModel(m *models.Membership) MembershipSnapshot {
	return MembershipSnapshot{
		ID:                m.ID,
		ProgramID:         m.ProgramID,
		CustomerID:        m.CustomerID,
		AccumulatedVisits: m.AccumulatedVisits,
		RedeemableVisits:  m.RedeemableVisits,
		EnrolledAt:        m.EnrolledAt,
		LastVisitAt:       m.LastVisitAt,
	}
}

// VisitFromModel maps a visit row.
func VisitFromModel(m *models.VisitRecord) VisitDTO {
	return VisitDTO{
		ID:               m.ID,
		MembershipID:     m.MembershipID,
		StaffActorID:     m.StaffActorID,
		AccumulatedAfter: m.AccumulatedAfter,
		RedeemableAfter:  m.RedeemableAfter,
		RecordedAt:       m.RecordedAt,
	}
}

// RedemptionFromModel maps a redemption row.
func RedemptionFromModel(m *models.RedemptionRecord) RedemptionDTO {
	return RedemptionDTO{
		ID:              m.ID,
		MembershipID:    m.MembershipID,
		RewardID:        m.RewardID,
		RewardName:      m.RewardName,
		Source:          m.Source,
		StaffActorID:    m.StaffActorID,
		CostCharged:     m.CostCharged,
		RedeemableAfter: m.RedeemableAfter,
		RedeemedAt:      m.RedeemedAt,
	}
}

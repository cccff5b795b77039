package memberships

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/visitrewards-backend/internal/ledger"
	"github.com/angelmondragon/visitrewards-backend/internal/programs"
	"github.com/angelmondragon/visitrewards-backend/pkg/pagination"
)

// HistoryKind selects which audit trail a history page reads.
type HistoryKind string

const (
	HistoryVisits      HistoryKind = "visits"
	HistoryRedemptions HistoryKind = "redemptions"
)

// IsValid reports whether the kind names a known audit trail.
func (k HistoryKind) IsValid() bool {
	return k == HistoryVisits || k == HistoryRedemptions
}

// NextGoal is the cheapest active reward the customer cannot afford yet.
type NextGoal struct {
	Reward       programs.RewardDTO `json:"reward"`
	VisitsNeeded int                `json:"visits_needed"`
}

// Snapshot is a customer's standing in one program.
type Snapshot struct {
	Membership ledger.MembershipSnapshot `json:"membership"`
	Eligible   []programs.RewardDTO      `json:"eligible_rewards"`
	NextGoal   *NextGoal                 `json:"next_goal,omitempty"`
}

// HistoryInput identifies the membership and page to read.
type HistoryInput struct {
	ProgramID  uuid.UUID
	CustomerID uuid.UUID
	Kind       HistoryKind
	Page       pagination.Params
}

// HistoryPage holds one page of the selected trail, newest first. Only the
// slice matching Kind is populated.
type HistoryPage struct {
	Kind        HistoryKind            `json:"kind"`
	Visits      []ledger.VisitDTO      `json:"visits,omitempty"`
	Redemptions []ledger.RedemptionDTO `json:"redemptions,omitempty"`
	Cursor      string                 `json:"cursor"`
}

type historyQuery struct {
	MembershipID uuid.UUID
	Limit        int
	Cursor       *pagination.Cursor
}

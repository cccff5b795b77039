package memberships

import (
	"github.com/angelmondragon/visitrewards-backend/internal/ledger"
	"github.com/angelmondragon/visitrewards-backend/internal/programs"
	"github.com/angelmondragon/visitrewards-backend/pkg/db/models"
	"github.com/angelmondragon/visitrewards-backend/pkg/pagination"
)

func visitCursor(row models.VisitRecord) pagination.Cursor {
	return pagination.Cursor{At: row.RecordedAt, ID: row.ID}
}

func redemptionCursor(row models.RedemptionRecord) pagination.Cursor {
	return pagination.Cursor{At: row.RedeemedAt, ID: row.ID}
}

func visitsToDTO(rows []models.VisitRecord) []ledger.VisitDTO {
	out := make([]ledger.VisitDTO, 0, len(rows))
	for i := range rows {
		out = append(out, ledger.VisitFromModel(&rows[i]))
	}
	return out
}

func redemptionsToDTO(rows []models.RedemptionRecord) []ledger.RedemptionDTO {
	out := make([]ledger.RedemptionDTO, 0, len(rows))
	for i := range rows {
		out = append(out, ledger.RedemptionFromModel(&rows[i]))
	}
	return out
}

// nextGoal picks the cheapest staff-authored reward above the balance.
// Rewards arrive sorted by cost.
func nextGoal(cfg *programs.ProgramConfig, balance int) *NextGoal {
	for _, reward := range cfg.Rewards {
		if reward.SystemManaged || reward.CostVisits <= balance {
			continue
		}
		return &NextGoal{Reward: reward, VisitsNeeded: reward.CostVisits - balance}
	}
	return nil
}

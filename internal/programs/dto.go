package programs

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/visitrewards-backend/pkg/db/models"
)

// RewardDTO is the transport shape for a catalog entry.
type RewardDTO struct {
	ID            uuid.UUID `json:"id"`
	ProgramID     uuid.UUID `json:"program_id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	CostVisits    int       `json:"cost_visits"`
	Active        bool      `json:"active"`
	SystemManaged bool      `json:"system_managed"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ProgramConfig is the resolved view of a program used by the visit and
// redemption flows. Rewards only holds active entries, cheapest first.
type ProgramConfig struct {
	ProgramID             uuid.UUID   `json:"program_id"`
	BusinessID            uuid.UUID   `json:"business_id"`
	Name                  string      `json:"name"`
	Active                bool        `json:"active"`
	FirstVisitGiftEnabled bool        `json:"first_visit_gift_enabled"`
	FirstVisitGiftText    string      `json:"first_visit_gift_text"`
	Rewards               []RewardDTO `json:"rewards"`
}

// GiftRuleApplies reports whether first visits should trigger the gift.
func (c *ProgramConfig) GiftRuleApplies() bool {
	return c != nil && c.Active && c.FirstVisitGiftEnabled
}

// GiftReward returns the active system-managed gift, if the catalog has one.
func (c *ProgramConfig) GiftReward() *RewardDTO {
	if c == nil {
		return nil
	}
	for i := range c.Rewards {
		if c.Rewards[i].SystemManaged {
			return &c.Rewards[i]
		}
	}
	return nil
}

// FindReward looks a reward up in the active catalog.
func (c *ProgramConfig) FindReward(id uuid.UUID) *RewardDTO {
	if c == nil {
		return nil
	}
	for i := range c.Rewards {
		if c.Rewards[i].ID == id {
			return &c.Rewards[i]
		}
	}
	return nil
}

// Affordable lists active rewards whose cost fits the balance.
func (c *ProgramConfig) Affordable(balance int) []RewardDTO {
	if c == nil {
		return nil
	}
	out := make([]RewardDTO, 0, len(c.Rewards))
	for _, reward := range c.Rewards {
		if reward.CostVisits <= balance {
			out = append(out, reward)
		}
	}
	return out
}

// UnlockedBetween lists active rewards that were out of reach at before and
// are covered at after.
func (c *ProgramConfig) UnlockedBetween(before, after int) []RewardDTO {
	if c == nil || after <= before {
		return nil
	}
	var out []RewardDTO
	for _, reward := range c.Rewards {
		if reward.CostVisits > before && reward.CostVisits <= after {
			out = append(out, reward)
		}
	}
	return out
}

// CreateRewardInput carries a staff-authored catalog entry.
type CreateRewardInput struct {
	Name        string
	Description string
	CostVisits  int
	Active      *bool
}

// UpdateRewardInput carries a partial catalog edit.
type UpdateRewardInput struct {
	Name        *string
	Description *string
	CostVisits  *int
	Active      *bool
}

// UpdateGiftSettingsInput toggles or retexts the first-visit gift.
type UpdateGiftSettingsInput struct {
	Enabled *bool
	Text    *string
}

// RewardFromModel maps the persisted reward into a DTO.
func RewardFromModel(m *models.Reward) RewardDTO {
	return RewardDTO{
		ID:            m.ID,
		ProgramID:     m.ProgramID,
		Name:          m.Name,
		Description:   m.Description,
		CostVisits:    m.CostVisits,
		Active:        m.Active,
		SystemManaged: m.IsSystemGift(),
		UpdatedAt:     m.UpdatedAt,
	}
}

func configFromModels(program *models.Program, rewards []models.Reward) *ProgramConfig {
	cfg := &ProgramConfig{
		ProgramID:             program.ID,
		BusinessID:            program.BusinessID,
		Name:                  program.Name,
		Active:                program.Active,
		FirstVisitGiftEnabled: program.FirstVisitGiftEnabled,
		FirstVisitGiftText:    program.FirstVisitGiftText,
		Rewards:               make([]RewardDTO, 0, len(rewards)),
	}
	for i := range rewards {
		if !rewards[i].Active {
			continue
		}
		cfg.Rewards = append(cfg.Rewards, RewardFromModel(&rewards[i]))
	}
	sort.SliceStable(cfg.Rewards, func(i, j int) bool {
		return cfg.Rewards[i].CostVisits < cfg.Rewards[j].CostVisits
	})
	return cfg
}

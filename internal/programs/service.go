package programs

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/visitrewards-backend/internal/giftsync"
	"github.com/angelmondragon/visitrewards-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/visitrewards-backend/pkg/errors"
	"github.com/angelmondragon/visitrewards-backend/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const maxRewardNameLength = 120

// GiftReconciler converges a program's system gift after its settings change.
type GiftReconciler interface {
	ReconcileProgram(ctx context.Context, programID uuid.UUID) (giftsync.Report, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service maintains the reward catalog and first-visit gift settings.
type Service interface {
	Catalog(ctx context.Context, programID uuid.UUID) (*ProgramConfig, error)
	CreateReward(ctx context.Context, programID uuid.UUID, input CreateRewardInput) (*RewardDTO, error)
	UpdateReward(ctx context.Context, programID, rewardID uuid.UUID, input UpdateRewardInput) (*RewardDTO, error)
	UpdateGiftSettings(ctx context.Context, programID uuid.UUID, input UpdateGiftSettingsInput) (*GiftSettingsResult, error)
}

// GiftSettingsResult reports the stored settings and the reconcile they
// triggered. SyncPending means the settings were saved but the gift reward
// has not converged yet; the gift-sync job finishes it.
type GiftSettingsResult struct {
	ProgramID   uuid.UUID       `json:"program_id"`
	Enabled     bool            `json:"first_visit_gift_enabled"`
	Text        string          `json:"first_visit_gift_text"`
	Sync        giftsync.Report `json:"sync"`
	SyncPending bool            `json:"sync_pending"`
}

// ServiceParams wires the catalog service.
type ServiceParams struct {
	Repo       Repository
	DB         txRunner
	Resolver   *Resolver
	Reconciler GiftReconciler
	Logger     *logger.Logger
}

type service struct {
	repo       Repository
	db         txRunner
	resolver   *Resolver
	reconciler GiftReconciler
	logg       *logger.Logger
}

// NewService validates dependencies and returns the catalog service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("program repository required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Resolver == nil {
		return nil, fmt.Errorf("program resolver required")
	}
	return &service{
		repo:       params.Repo,
		db:         params.DB,
		resolver:   params.Resolver,
		reconciler: params.Reconciler,
		logg:       params.Logger,
	}, nil
}

func (s *service) Catalog(ctx context.Context, programID uuid.UUID) (*ProgramConfig, error) {
	return s.resolver.Resolve(ctx, programID)
}

func (s *service) CreateReward(ctx context.Context, programID uuid.UUID, input CreateRewardInput) (*RewardDTO, error) {
	name, err := normalizeRewardName(input.Name)
	if err != nil {
		return nil, err
	}
	if input.CostVisits < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cost_visits must be >= 0")
	}
	active := true
	if input.Active != nil {
		active = *input.Active
	}

	if _, err := s.loadProgram(ctx, s.repo, programID); err != nil {
		return nil, err
	}
	reward := &models.Reward{
		ProgramID:   programID,
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		CostVisits:  input.CostVisits,
		Active:      active,
	}
	if err := s.repo.CreateReward(ctx, reward); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create reward")
	}
	s.invalidate(ctx, programID)

	dto := RewardFromModel(reward)
	return &dto, nil
}

func (s *service) UpdateReward(ctx context.Context, programID, rewardID uuid.UUID, input UpdateRewardInput) (*RewardDTO, error) {
	var updated *models.Reward
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := s.loadProgram(ctx, repo, programID); err != nil {
			return err
		}
		reward, err := repo.FindReward(ctx, programID, rewardID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "reward not found").
					WithDetails(map[string]any{"reason": "reward_not_found"})
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reward")
		}

		if input.Name != nil {
			if reward.IsSystemGift() {
				return pkgerrors.New(pkgerrors.CodeValidation, "the first-visit gift is renamed through gift settings")
			}
			name, err := normalizeRewardName(*input.Name)
			if err != nil {
				return err
			}
			reward.Name = name
		}
		if input.Description != nil {
			reward.Description = strings.TrimSpace(*input.Description)
		}
		if input.CostVisits != nil {
			if *input.CostVisits < 0 {
				return pkgerrors.New(pkgerrors.CodeValidation, "cost_visits must be >= 0")
			}
			reward.CostVisits = *input.CostVisits
		}
		if input.Active != nil {
			reward.Active = *input.Active
		}
		if err := repo.UpdateReward(ctx, reward); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update reward")
		}
		updated = reward
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, programID)

	dto := RewardFromModel(updated)
	return &dto, nil
}

func (s *service) UpdateGiftSettings(ctx context.Context, programID uuid.UUID, input UpdateGiftSettingsInput) (*GiftSettingsResult, error) {
	if input.Enabled == nil && input.Text == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "enabled or text is required")
	}

	var program *models.Program
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		found, err := s.loadProgram(ctx, repo, programID)
		if err != nil {
			return err
		}
		if input.Enabled != nil {
			found.FirstVisitGiftEnabled = *input.Enabled
		}
		if input.Text != nil {
			text := strings.TrimSpace(*input.Text)
			if len(text) > maxRewardNameLength {
				return pkgerrors.New(pkgerrors.CodeValidation, "gift text is too long")
			}
			found.FirstVisitGiftText = text
		}
		if err := repo.UpdateProgram(ctx, found); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update gift settings")
		}
		program = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, programID)

	result := &GiftSettingsResult{
		ProgramID: program.ID,
		Enabled:   program.FirstVisitGiftEnabled,
		Text:      program.FirstVisitGiftText,
	}
	if s.reconciler != nil {
		report, err := s.reconciler.ReconcileProgram(ctx, programID)
		result.Sync = report
		if err != nil {
			result.SyncPending = true
			if s.logg != nil {
				s.logg.Error(s.logg.WithProgramID(ctx, programID.String()), "gift settings saved but reconcile failed", err)
			}
		}
	}
	return result, nil
}

// loadProgram returns the program for catalog edits. Inactive programs may
// still be edited by their owner.
func (s *service) loadProgram(ctx context.Context, repo Repository, programID uuid.UUID) (*models.Program, error) {
	program, err := repo.FindProgram(ctx, programID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, invalidProgram(pkgerrors.CodeNotFound, "program not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load program")
	}
	return program, nil
}

func (s *service) invalidate(ctx context.Context, programID uuid.UUID) {
	if err := s.resolver.Invalidate(ctx, programID); err != nil && s.logg != nil {
		s.logg.Error(s.logg.WithProgramID(ctx, programID.String()), "invalidate program cache", err)
	}
}

func normalizeRewardName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if len(name) > maxRewardNameLength {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "name is too long")
	}
	if name == models.SystemGiftTag {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "name is reserved")
	}
	return name, nil
}

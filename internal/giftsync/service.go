package giftsync

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/visitrewards-backend/internal/ledger"
	"github.com/angelmondragon/visitrewards-backend/pkg/db"
	"github.com/angelmondragon/visitrewards-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/visitrewards-backend/pkg/errors"
	"github.com/angelmondragon/visitrewards-backend/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"
)

const (
	// GiftCostVisits lets a single first visit pay for the gift.
	GiftCostVisits = 1
	// DefaultGiftName is used when the program has no gift text configured.
	DefaultGiftName = "Welcome gift"

	giftIndexName = "ux_rewards_program_system_tag"
	operationName = "gift_sync"
)

// Report summarizes one reconciliation pass.
type Report struct {
	Examined int         `json:"examined"`
	Created  int         `json:"created"`
	Updated  int         `json:"updated"`
	Drifted  []uuid.UUID `json:"drifted"`
}

// Writes reports how many rows the pass changed.
func (r Report) Writes() int {
	return r.Created + r.Updated
}

func (r *Report) merge(other Report) {
	r.Examined += other.Examined
	r.Created += other.Created
	r.Updated += other.Updated
	r.Drifted = append(r.Drifted, other.Drifted...)
}

// Guard serializes reconciliation per program.
type Guard interface {
	Do(ctx context.Context, key uuid.UUID, operation string, fn func(tx *gorm.DB) error) error
}

// ConfigInvalidator drops cached program configuration after a gift write.
type ConfigInvalidator interface {
	Invalidate(ctx context.Context, programID uuid.UUID) error
}

// ServiceParams wires the reconciler.
type ServiceParams struct {
	Repo        Repository
	Guard       Guard
	Invalidator ConfigInvalidator
	Logger      *logger.Logger
}

// Service keeps exactly one system-managed first-visit gift per enabled program.
type Service struct {
	repo        Repository
	guard       Guard
	invalidator ConfigInvalidator
	logg        *logger.Logger
}

// NewService validates dependencies and returns the reconciler.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("gift sync repository required")
	}
	if params.Guard == nil {
		return nil, fmt.Errorf("program guard required")
	}
	return &Service{
		repo:        params.Repo,
		guard:       params.Guard,
		invalidator: params.Invalidator,
		logg:        params.Logger,
	}, nil
}

// Reconcile walks every program with the gift enabled. A failing program does
// not stop the pass; failures are combined into the returned error.
func (s *Service) Reconcile(ctx context.Context) (Report, error) {
	ids, err := s.repo.ListGiftEnabledProgramIDs(ctx)
	if err != nil {
		return Report{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list gift-enabled programs")
	}

	var (
		report  Report
		errList error
	)
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return report, multierr.Append(errList, err)
		}
		result, err := s.ReconcileProgram(ctx, id)
		report.merge(result)
		if err != nil {
			errList = multierr.Append(errList, fmt.Errorf("program %s: %w", id, err))
		}
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"examined": report.Examined,
			"created":  report.Created,
			"updated":  report.Updated,
			"drifted":  len(report.Drifted),
		})
		s.logg.Info(logCtx, "gift sync pass finished")
	}
	return report, errList
}

// ReconcileProgram converges a single program. Disabled programs are left untouched.
func (s *Service) ReconcileProgram(ctx context.Context, programID uuid.UUID) (Report, error) {
	if programID == uuid.Nil {
		return Report{}, pkgerrors.New(pkgerrors.CodeValidation, "program id is required")
	}

	var report Report
	err := s.guard.Do(ctx, programID, operationName, func(tx *gorm.DB) error {
		report = Report{}
		return s.reconcileTx(ctx, s.repo.WithTx(tx), programID, &report)
	})
	if err != nil {
		return Report{}, err
	}

	if report.Writes() > 0 && s.invalidator != nil {
		if err := s.invalidator.Invalidate(ctx, programID); err != nil && s.logg != nil {
			s.logg.Error(s.logg.WithProgramID(ctx, programID.String()), "invalidate program cache after gift sync", err)
		}
	}
	if len(report.Drifted) > 0 && s.logg != nil {
		s.logg.Warn(s.logg.WithProgramID(ctx, programID.String()), "system gift cost exceeds one visit; first visits will not auto-redeem it")
	}
	return report, nil
}

func (s *Service) reconcileTx(ctx context.Context, repo Repository, programID uuid.UUID, report *Report) error {
	program, err := repo.LockProgram(ctx, programID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "program not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock program")
	}
	report.Examined = 1
	if !program.FirstVisitGiftEnabled {
		return nil
	}

	name := GiftName(program)
	gift, err := repo.FindSystemGift(ctx, programID)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		tag := models.SystemGiftTag
		gift = &models.Reward{
			ProgramID:  programID,
			Name:       name,
			Tag:        &tag,
			CostVisits: GiftCostVisits,
			Active:     true,
		}
		if err := repo.CreateGift(ctx, gift); err != nil {
			if db.IsUniqueViolation(err, giftIndexName) {
				return fmt.Errorf("%w: system gift created concurrently", ledger.ErrVersionConflict)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create system gift")
		}
		report.Created = 1
		if s.logg != nil {
			s.logg.Info(s.logg.WithProgramID(ctx, programID.String()), "system gift created")
		}
		return nil
	case err != nil:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load system gift")
	}

	if gift.Name != name {
		if err := repo.RenameGift(ctx, gift.ID, name); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rename system gift")
		}
		report.Updated = 1
	}
	if gift.CostVisits > GiftCostVisits {
		report.Drifted = append(report.Drifted, programID)
	}
	return nil
}

// GiftName is the reward name the program's gift text maps to.
func GiftName(program *models.Program) string {
	name := strings.TrimSpace(program.FirstVisitGiftText)
	if name == "" {
		return DefaultGiftName
	}
	return name
}

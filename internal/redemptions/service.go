package redemptions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/visitrewards-backend/internal/ledger"
	"github.com/angelmondragon/visitrewards-backend/internal/notifications"
	"github.com/angelmondragon/visitrewards-backend/internal/programs"
	"github.com/angelmondragon/visitrewards-backend/pkg/db"
	"github.com/angelmondragon/visitrewards-backend/pkg/db/models"
	"github.com/angelmondragon/visitrewards-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/visitrewards-backend/pkg/errors"
	"github.com/angelmondragon/visitrewards-backend/pkg/logger"
	"github.com/angelmondragon/visitrewards-backend/pkg/outbox"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	operationName          = "redeem"
	maxRequestTokenLength  = 128
	defaultTokenRetention  = 72 * time.Hour
	tokenIndexName         = "ux_redemption_request_tokens"
	reasonMembershipAbsent = "membership_not_found"
	reasonRewardAbsent     = "reward_not_found"
	reasonRewardInactive   = "reward_inactive"
)

// RedeemInput is a staff-initiated redemption request.
type RedeemInput struct {
	CustomerID   uuid.UUID
	ProgramID    uuid.UUID
	RewardID     uuid.UUID
	StaffActorID uuid.UUID
	ActorRole    enums.ActorRole
	RequestToken *string
}

// RedeemResult is returned after a committed redemption.
type RedeemResult struct {
	Membership ledger.MembershipSnapshot `json:"membership"`
	Redemption ledger.RedemptionDTO      `json:"redemption"`
}

// EligibleResult lists what the customer can redeem right now.
type EligibleResult struct {
	Membership ledger.MembershipSnapshot `json:"membership"`
	Rewards    []programs.RewardDTO      `json:"rewards"`
}

type configResolver interface {
	Resolve(ctx context.Context, programID uuid.UUID) (*programs.ProgramConfig, error)
}

type guard interface {
	Do(ctx context.Context, key uuid.UUID, operation string, fn func(tx *gorm.DB) error) error
}

type notifier interface {
	Emit(ctx context.Context, notices ...notifications.Notice) int
}

type redemptionMetrics interface {
	IncRedemption(source string)
	IncRedemptionFailure(code string)
}

// Service coordinates reward redemption.
type Service interface {
	Redeem(ctx context.Context, input RedeemInput) (*RedeemResult, error)
	Eligible(ctx context.Context, customerID, programID uuid.UUID) (*EligibleResult, error)
}

// ServiceParams wires the coordinator.
type ServiceParams struct {
	Ledger         ledger.Repository
	Catalog        programs.Repository
	Resolver       configResolver
	Guard          guard
	Notifier       notifier
	Metrics        redemptionMetrics
	TokenRetention time.Duration
	Logger         *logger.Logger
}

type service struct {
	ledger    ledger.Repository
	catalog   programs.Repository
	resolver  configResolver
	guard     guard
	notifier  notifier
	metrics   redemptionMetrics
	retention time.Duration
	logg      *logger.Logger
	now       func() time.Time
}

// NewService validates dependencies and returns the coordinator.
func NewService(params ServiceParams) (Service, error) {
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if params.Resolver == nil {
		return nil, fmt.Errorf("program resolver required")
	}
	if params.Guard == nil {
		return nil, fmt.Errorf("membership guard required")
	}
	retention := params.TokenRetention
	if retention <= 0 {
		retention = defaultTokenRetention
	}
	return &service{
		ledger:    params.Ledger,
		catalog:   params.Catalog,
		resolver:  params.Resolver,
		guard:     params.Guard,
		notifier:  params.Notifier,
		metrics:   params.Metrics,
		retention: retention,
		logg:      params.Logger,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Redeem(ctx context.Context, input RedeemInput) (*RedeemResult, error) {
	result, err := s.redeem(ctx, input)
	if err != nil {
		s.recordFailure(ctx, input, err)
		return nil, err
	}
	s.afterCommit(ctx, input, result)
	return result, nil
}

func (s *service) redeem(ctx context.Context, input RedeemInput) (*RedeemResult, error) {
	token, err := validate(&input)
	if err != nil {
		return nil, err
	}
	if _, err := s.resolver.Resolve(ctx, input.ProgramID); err != nil {
		return nil, err
	}

	membership, err := s.ledger.FindMembership(ctx, input.ProgramID, input.CustomerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("membership not found", reasonMembershipAbsent)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load membership")
	}

	var result *RedeemResult
	err = s.guard.Do(ctx, membership.ID, operationName, func(tx *gorm.DB) error {
		result = nil
		repo := s.ledger.WithTx(tx)

		locked, err := repo.LockMembership(ctx, membership.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock membership")
		}
		if token != nil {
			if err := s.checkToken(ctx, repo, locked.ID, *token); err != nil {
				return err
			}
		}

		reward, err := s.catalog.WithTx(tx).FindReward(ctx, input.ProgramID, input.RewardID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("reward not found", reasonRewardAbsent)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reward")
		}
		if !reward.Active {
			return pkgerrors.New(pkgerrors.CodeInactiveEntity, "reward is inactive").
				WithDetails(map[string]any{"reason": reasonRewardInactive})
		}
		if reward.CostVisits > locked.RedeemableVisits {
			return insufficientBalance(locked.RedeemableVisits, reward.CostVisits)
		}

		if err := repo.ApplyBalance(ctx, locked, 0, -reward.CostVisits, nil); err != nil {
			return wrapWrite(err, "decrement balance")
		}
		staff := input.StaffActorID
		record := &models.RedemptionRecord{
			MembershipID:    locked.ID,
			RewardID:        reward.ID,
			RewardName:      reward.Name,
			Source:          enums.RedemptionSourceStaff,
			StaffActorID:    &staff,
			CostCharged:     reward.CostVisits,
			RedeemableAfter: locked.RedeemableVisits,
			RedeemedAt:      s.now(),
		}
		if err := repo.AppendRedemption(ctx, record); err != nil {
			return wrapWrite(err, "append redemption")
		}
		if token != nil {
			err := repo.ReserveRequestToken(ctx, &models.RedemptionRequestToken{
				MembershipID: locked.ID,
				Token:        *token,
				RedemptionID: record.ID,
				CreatedAt:    record.RedeemedAt,
			})
			if err != nil {
				if db.IsUniqueViolation(err, tokenIndexName) {
					// Another writer committed the same token; the retry reports the duplicate.
					return fmt.Errorf("%w: request token raced", ledger.ErrVersionConflict)
				}
				return wrapWrite(err, "reserve request token")
			}
		}

		result = &RedeemResult{
			Membership: ledger.SnapshotFromModel(locked),
			Redemption: ledger.RedemptionFromModel(record),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// checkToken rejects a token reused inside the retention window and releases
// a reservation whose window has passed.
func (s *service) checkToken(ctx context.Context, repo ledger.Repository, membershipID uuid.UUID, token string) error {
	existing, err := repo.FindRequestToken(ctx, membershipID, token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check request token")
	}
	if existing.CreatedAt.After(s.now().Add(-s.retention)) {
		return pkgerrors.New(pkgerrors.CodeDuplicateRequest, "request token already used").
			WithDetails(map[string]any{
				"redemption_id": existing.RedemptionID.String(),
				"redeemed_at":   existing.CreatedAt,
			})
	}
	if err := repo.ReleaseRequestToken(ctx, membershipID, token); err != nil {
		return wrapWrite(err, "release expired request token")
	}
	return nil
}

func (s *service) Eligible(ctx context.Context, customerID, programID uuid.UUID) (*EligibleResult, error) {
	if customerID == uuid.Nil || programID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id and program id are required")
	}
	cfg, err := s.resolver.Resolve(ctx, programID)
	if err != nil {
		return nil, err
	}
	membership, err := s.ledger.FindMembership(ctx, programID, customerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("membership not found", reasonMembershipAbsent)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load membership")
	}
	return &EligibleResult{
		Membership: ledger.SnapshotFromModel(membership),
		Rewards:    cfg.Affordable(membership.RedeemableVisits),
	}, nil
}

func (s *service) afterCommit(ctx context.Context, input RedeemInput, result *RedeemResult) {
	if s.metrics != nil {
		s.metrics.IncRedemption(string(enums.RedemptionSourceStaff))
	}
	if s.logg != nil {
		logCtx := s.logg.WithProgramID(ctx, input.ProgramID.String())
		logCtx = s.logg.WithMembershipID(logCtx, result.Membership.ID.String())
		logCtx = s.logg.WithStaffActorID(logCtx, input.StaffActorID.String())
		logCtx = s.logg.WithFields(logCtx, map[string]any{
			"reward_id":         result.Redemption.RewardID.String(),
			"cost_charged":      result.Redemption.CostCharged,
			"redeemable_visits": result.Membership.RedeemableVisits,
		})
		s.logg.Info(logCtx, "reward redeemed")
	}
	if s.notifier == nil {
		return
	}
	role := input.ActorRole
	if !role.IsValid() {
		role = enums.ActorRoleStaff
	}
	s.notifier.Emit(ctx, notifications.Notice{
		Kind:         enums.NotificationKindRewardRedeemed,
		CustomerID:   input.CustomerID,
		ProgramID:    input.ProgramID,
		MembershipID: result.Membership.ID,
		RewardID:     result.Redemption.RewardID,
		RewardName:   result.Redemption.RewardName,
		Actor:        &outbox.ActorRef{ActorID: input.StaffActorID, Role: role},
	})
}

func (s *service) recordFailure(ctx context.Context, input RedeemInput, err error) {
	code := pkgerrors.CodeInternal
	if typed := pkgerrors.As(err); typed != nil {
		code = typed.Code()
	}
	if s.metrics != nil {
		s.metrics.IncRedemptionFailure(string(code))
	}
	if s.logg != nil && code != pkgerrors.CodeInsufficientBalance && code != pkgerrors.CodeValidation {
		logCtx := s.logg.WithProgramID(ctx, input.ProgramID.String())
		logCtx = s.logg.WithField(logCtx, "code", string(code))
		s.logg.Warn(logCtx, "redemption rejected")
	}
}

func validate(input *RedeemInput) (*string, error) {
	switch {
	case input.CustomerID == uuid.Nil:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	case input.ProgramID == uuid.Nil:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "program id is required")
	case input.RewardID == uuid.Nil:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reward id is required")
	case input.StaffActorID == uuid.Nil:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "staff actor id is required")
	}
	if input.RequestToken == nil {
		return nil, nil
	}
	token := strings.TrimSpace(*input.RequestToken)
	if token == "" {
		return nil, nil
	}
	if len(token) > maxRequestTokenLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "request token is too long")
	}
	return &token, nil
}

func insufficientBalance(redeemable, cost int) error {
	return pkgerrors.New(pkgerrors.CodeInsufficientBalance, "reward costs more than the redeemable balance").
		WithDetails(map[string]any{
			"redeemable": redeemable,
			"cost":       cost,
			"needed":     cost - redeemable,
		})
}

func notFound(message, reason string) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, message).WithDetails(map[string]any{"reason": reason})
}

// wrapWrite keeps version conflicts unwrapped so the guard can retry them.
func wrapWrite(err error, message string) error {
	if ledger.IsConflict(err) {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, message)
}

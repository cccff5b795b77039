package visits

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/visitrewards-backend/internal/ledger"
	"github.com/angelmondragon/visitrewards-backend/internal/notifications"
	"github.com/angelmondragon/visitrewards-backend/internal/programs"
	"github.com/angelmondragon/visitrewards-backend/pkg/db/models"
	"github.com/angelmondragon/visitrewards-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/visitrewards-backend/pkg/errors"
	"github.com/angelmondragon/visitrewards-backend/pkg/logger"
	"github.com/angelmondragon/visitrewards-backend/pkg/outbox"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const operationName = "visit"

// RecordVisitInput identifies the scan. A nil StaffActorID is a self check-in.
type RecordVisitInput struct {
	CustomerID   uuid.UUID
	ProgramID    uuid.UUID
	StaffActorID *uuid.UUID
	ActorRole    enums.ActorRole
}

// VisitResult is the post-visit state returned to the scanner.
type VisitResult struct {
	Membership      ledger.MembershipSnapshot `json:"membership"`
	Visit           ledger.VisitDTO           `json:"visit"`
	FirstVisit      bool                      `json:"first_visit"`
	GiftRedemption  *ledger.RedemptionDTO     `json:"gift_redemption,omitempty"`
	UnlockedRewards []programs.RewardDTO      `json:"unlocked_rewards"`
}

type configResolver interface {
	Resolve(ctx context.Context, programID uuid.UUID) (*programs.ProgramConfig, error)
	ResolveTx(ctx context.Context, tx *gorm.DB, programID uuid.UUID) (*programs.ProgramConfig, error)
}

type guard interface {
	Do(ctx context.Context, key uuid.UUID, operation string, fn func(tx *gorm.DB) error) error
}

type notifier interface {
	Emit(ctx context.Context, notices ...notifications.Notice) int
}

type visitMetrics interface {
	IncVisit()
	IncRedemption(source string)
}

// Service records visits.
type Service interface {
	RecordVisit(ctx context.Context, input RecordVisitInput) (*VisitResult, error)
}

// ServiceParams wires the visit recorder.
type ServiceParams struct {
	Ledger   ledger.Repository
	Resolver configResolver
	Guard    guard
	Notifier notifier
	Metrics  visitMetrics
	Logger   *logger.Logger
}

type service struct {
	ledger   ledger.Repository
	resolver configResolver
	guard    guard
	notifier notifier
	metrics  visitMetrics
	logg     *logger.Logger
}

// NewService validates dependencies and returns the visit recorder.
func NewService(params ServiceParams) (Service, error) {
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if params.Resolver == nil {
		return nil, fmt.Errorf("program resolver required")
	}
	if params.Guard == nil {
		return nil, fmt.Errorf("membership guard required")
	}
	return &service{
		ledger:   params.Ledger,
		resolver: params.Resolver,
		guard:    params.Guard,
		notifier: params.Notifier,
		metrics:  params.Metrics,
		logg:     params.Logger,
	}, nil
}

type giftOutcome int

const (
	giftNotApplicable giftOutcome = iota
	giftRedeemed
	giftMissing
	giftUnaffordable
)

func (s *service) RecordVisit(ctx context.Context, input RecordVisitInput) (*VisitResult, error) {
	if input.CustomerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	}
	if input.ProgramID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "program id is required")
	}
	if input.StaffActorID != nil && *input.StaffActorID == uuid.Nil {
		input.StaffActorID = nil
	}

	if _, err := s.resolver.Resolve(ctx, input.ProgramID); err != nil {
		return nil, err
	}

	membership, _, err := s.ledger.EnsureMembership(ctx, input.ProgramID, input.CustomerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "ensure membership")
	}

	var (
		result  *VisitResult
		outcome giftOutcome
		gift    *programs.RewardDTO
	)
	err = s.guard.Do(ctx, membership.ID, operationName, func(tx *gorm.DB) error {
		result, outcome, gift = nil, giftNotApplicable, nil
		repo := s.ledger.WithTx(tx)

		locked, err := repo.LockMembership(ctx, membership.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock membership")
		}
		cfg, err := s.resolver.ResolveTx(ctx, tx, input.ProgramID)
		if err != nil {
			return err
		}

		firstVisit := locked.AccumulatedVisits == 0
		before := locked.RedeemableVisits
		now := time.Now().UTC()
		if err := repo.ApplyBalance(ctx, locked, 1, 1, &now); err != nil {
			return wrapWrite(err, "increment balance")
		}

		visit := &models.VisitRecord{
			MembershipID:     locked.ID,
			StaffActorID:     input.StaffActorID,
			AccumulatedAfter: locked.AccumulatedVisits,
			RedeemableAfter:  locked.RedeemableVisits,
			RecordedAt:       now,
		}
		if err := repo.AppendVisit(ctx, visit); err != nil {
			return wrapWrite(err, "append visit")
		}

		res := &VisitResult{
			Visit:      ledger.VisitFromModel(visit),
			FirstVisit: firstVisit,
		}

		if firstVisit && cfg.GiftRuleApplies() {
			gift = cfg.GiftReward()
			switch {
			case gift == nil:
				outcome = giftMissing
			case gift.CostVisits > locked.RedeemableVisits:
				outcome = giftUnaffordable
			default:
				redemption, err := redeemGift(ctx, repo, locked, gift, now)
				if err != nil {
					return err
				}
				outcome = giftRedeemed
				dto := ledger.RedemptionFromModel(redemption)
				res.GiftRedemption = &dto
			}
		}

		// measured after any gift charge so only affordable rewards count
		res.UnlockedRewards = staffAuthored(cfg.UnlockedBetween(before, locked.RedeemableVisits))
		res.Membership = ledger.SnapshotFromModel(locked)
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, input, result, outcome, gift)
	return result, nil
}

// redeemGift charges the system gift in the visit transaction.
func redeemGift(ctx context.Context, repo ledger.Repository, membership *models.Membership, gift *programs.RewardDTO, now time.Time) (*models.RedemptionRecord, error) {
	if err := repo.ApplyBalance(ctx, membership, 0, -gift.CostVisits, nil); err != nil {
		return nil, wrapWrite(err, "charge first-visit gift")
	}
	record := &models.RedemptionRecord{
		MembershipID:    membership.ID,
		RewardID:        gift.ID,
		RewardName:      gift.Name,
		Source:          enums.RedemptionSourceSystem,
		CostCharged:     gift.CostVisits,
		RedeemableAfter: membership.RedeemableVisits,
		RedeemedAt:      now,
	}
	if err := repo.AppendRedemption(ctx, record); err != nil {
		return nil, wrapWrite(err, "append gift redemption")
	}
	return record, nil
}

func (s *service) afterCommit(ctx context.Context, input RecordVisitInput, result *VisitResult, outcome giftOutcome, gift *programs.RewardDTO) {
	if s.metrics != nil {
		s.metrics.IncVisit()
		if outcome == giftRedeemed {
			s.metrics.IncRedemption(string(enums.RedemptionSourceSystem))
		}
	}

	if s.logg != nil {
		logCtx := s.logg.WithProgramID(ctx, input.ProgramID.String())
		logCtx = s.logg.WithMembershipID(logCtx, result.Membership.ID.String())
		logCtx = s.logg.WithFields(logCtx, map[string]any{
			"redeemable_visits":  result.Membership.RedeemableVisits,
			"accumulated_visits": result.Membership.AccumulatedVisits,
			"first_visit":        result.FirstVisit,
			"unlocked":           len(result.UnlockedRewards),
		})
		switch outcome {
		case giftMissing:
			s.logg.Warn(logCtx, "first-visit gift enabled but no active system gift reward; visit recorded without gift")
		case giftUnaffordable:
			s.logg.Warn(s.logg.WithField(logCtx, "gift_cost", gift.CostVisits), "first-visit gift costs more than one visit; not auto-redeemed")
		}
		s.logg.Info(logCtx, "visit recorded")
	}

	if s.notifier == nil {
		return
	}
	var actor *outbox.ActorRef
	if input.StaffActorID != nil {
		role := input.ActorRole
		if !role.IsValid() {
			role = enums.ActorRoleStaff
		}
		actor = &outbox.ActorRef{ActorID: *input.StaffActorID, Role: role}
	}
	notices := make([]notifications.Notice, 0, len(result.UnlockedRewards)+1)
	for _, reward := range result.UnlockedRewards {
		notices = append(notices, notifications.Notice{
			Kind:         enums.NotificationKindRewardUnlocked,
			CustomerID:   input.CustomerID,
			ProgramID:    input.ProgramID,
			MembershipID: result.Membership.ID,
			RewardID:     reward.ID,
			RewardName:   reward.Name,
			Actor:        actor,
		})
	}
	if result.GiftRedemption != nil {
		notices = append(notices, notifications.Notice{
			Kind:         enums.NotificationKindRewardRedeemed,
			CustomerID:   input.CustomerID,
			ProgramID:    input.ProgramID,
			MembershipID: result.Membership.ID,
			RewardID:     result.GiftRedemption.RewardID,
			RewardName:   result.GiftRedemption.RewardName,
		})
	}
	s.notifier.Emit(ctx, notices...)
}

// staffAuthored drops the system gift: it is issued on the first visit, never unlocked.
func staffAuthored(rewards []programs.RewardDTO) []programs.RewardDTO {
	out := make([]programs.RewardDTO, 0, len(rewards))
	for _, reward := range rewards {
		if !reward.SystemManaged {
			out = append(out, reward)
		}
	}
	return out
}

// wrapWrite keeps version conflicts unwrapped so the guard can retry them.
func wrapWrite(err error, message string) error {
	if ledger.IsConflict(err) {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, message)
}

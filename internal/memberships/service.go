package memberships

import (
	"context"
	"errors"
	"fmt"

	"github.com/angelmondragon/visitrewards-backend/internal/ledger"
	"github.com/angelmondragon/visitrewards-backend/internal/programs"
	"github.com/angelmondragon/visitrewards-backend/internal/redemptions"
	pkgerrors "github.com/angelmondragon/visitrewards-backend/pkg/errors"
	"github.com/angelmondragon/visitrewards-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type eligibility interface {
	Eligible(ctx context.Context, customerID, programID uuid.UUID) (*redemptions.EligibleResult, error)
}

type configResolver interface {
	Resolve(ctx context.Context, programID uuid.UUID) (*programs.ProgramConfig, error)
}

// Service answers read-only membership queries.
type Service interface {
	Snapshot(ctx context.Context, programID, customerID uuid.UUID) (*Snapshot, error)
	History(ctx context.Context, input HistoryInput) (*HistoryPage, error)
}

// ServiceParams wires the membership query service.
type ServiceParams struct {
	Repo        Repository
	Ledger      ledger.Repository
	Eligibility eligibility
	Resolver    configResolver
}

type service struct {
	repo        Repository
	ledger      ledger.Repository
	eligibility eligibility
	resolver    configResolver
}

// NewService validates dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("history repository required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if params.Eligibility == nil {
		return nil, fmt.Errorf("eligibility service required")
	}
	if params.Resolver == nil {
		return nil, fmt.Errorf("program resolver required")
	}
	return &service{
		repo:        params.Repo,
		ledger:      params.Ledger,
		eligibility: params.Eligibility,
		resolver:    params.Resolver,
	}, nil
}

func (s *service) Snapshot(ctx context.Context, programID, customerID uuid.UUID) (*Snapshot, error) {
	eligible, err := s.eligibility.Eligible(ctx, customerID, programID)
	if err != nil {
		return nil, err
	}
	cfg, err := s.resolver.Resolve(ctx, programID)
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		Membership: eligible.Membership,
		Eligible:   eligible.Rewards,
		NextGoal:   nextGoal(cfg, eligible.Membership.RedeemableVisits),
	}, nil
}

func (s *service) History(ctx context.Context, input HistoryInput) (*HistoryPage, error) {
	if input.ProgramID == uuid.Nil || input.CustomerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "program id and customer id are required")
	}
	if input.Kind == "" {
		input.Kind = HistoryVisits
	}
	if !input.Kind.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "kind must be visits or redemptions")
	}
	cursor, err := pagination.ParseCursor(input.Page.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	membership, err := s.ledger.FindMembership(ctx, input.ProgramID, input.CustomerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "membership not found").
				WithDetails(map[string]any{"reason": "membership_not_found"})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load membership")
	}

	query := historyQuery{MembershipID: membership.ID, Limit: input.Page.Limit, Cursor: cursor}
	page := &HistoryPage{Kind: input.Kind}
	var next *pagination.Cursor
	switch input.Kind {
	case HistoryRedemptions:
		rows, n, err := s.repo.ListRedemptions(ctx, query)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list redemptions")
		}
		page.Redemptions, next = redemptionsToDTO(rows), n
	default:
		rows, n, err := s.repo.ListVisits(ctx, query)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list visits")
		}
		page.Visits, next = visitsToDTO(rows), n
	}
	if next != nil {
		page.Cursor = pagination.EncodeCursor(*next)
	}
	return page, nil
}

package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/visitrewards-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrVersionConflict is returned when a compare-and-swap balance write matched no row.
var ErrVersionConflict = errors.New("membership version conflict")

// Repository persists memberships and their append-only visit/redemption history.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindMembership(ctx context.Context, programID, customerID uuid.UUID) (*models.Membership, error)
	EnsureMembership(ctx context.Context, programID, customerID uuid.UUID) (*models.Membership, bool, error)
	LockMembership(ctx context.Context, id uuid.UUID) (*models.Membership, error)
	ApplyBalance(ctx context.Context, membership *models.Membership, deltaAccumulated, deltaRedeemable int, lastVisitAt *time.Time) error
	AppendVisit(ctx context.Context, record *models.VisitRecord) error
	AppendRedemption(ctx context.Context, record *models.RedemptionRecord) error
	FindRequestToken(ctx context.Context, membershipID uuid.UUID, token string) (*models.RedemptionRequestToken, error)
	ReserveRequestToken(ctx context.Context, reservation *models.RedemptionRequestToken) error
	ReleaseRequestToken(ctx context.Context, membershipID uuid.UUID, token string) error
	DeleteExpiredTokens(ctx context.Context, before time.Time) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindMembership(ctx context.Context, programID, customerID uuid.UUID) (*models.Membership, error) {
	var membership models.Membership
	err := r.db.WithContext(ctx).
		Where("program_id = ? AND customer_id = ?", programID, customerID).
		First(&membership).Error
	if err != nil {
		return nil, err
	}
	return &membership, nil
}

// EnsureMembership creates the membership with zero balances when absent and
// reports whether this call created it. Concurrent first scans converge on a
// single row through the (program_id, customer_id) unique index.
func (r *repository) EnsureMembership(ctx context.Context, programID, customerID uuid.UUID) (*models.Membership, bool, error) {
	candidate := &models.Membership{
		ProgramID:  programID,
		CustomerID: customerID,
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "program_id"}, {Name: "customer_id"}},
			DoNothing: true,
		}).
		Create(candidate)
	if res.Error != nil {
		return nil, false, res.Error
	}

	membership, err := r.FindMembership(ctx, programID, customerID)
	if err != nil {
		return nil, false, err
	}
	return membership, res.RowsAffected == 1, nil
}

// LockMembership reads the membership holding a row lock until the surrounding
// transaction ends.
func (r *repository) LockMembership(ctx context.Context, id uuid.UUID) (*models.Membership, error) {
	var membership models.Membership
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&membership).Error
	if err != nil {
		return nil, err
	}
	return &membership, nil
}

// ApplyBalance moves both balances by the given deltas when the row still
// carries membership.Version and the redeemable balance stays non-negative.
// On success the membership is updated in place.
func (r *repository) ApplyBalance(ctx context.Context, membership *models.Membership, deltaAccumulated, deltaRedeemable int, lastVisitAt *time.Time) error {
	if membership == nil {
		return errors.New("membership is required")
	}
	now := time.Now().UTC()
	updates := map[string]any{
		"accumulated_visits": gorm.Expr("accumulated_visits + ?", deltaAccumulated),
		"redeemable_visits":  gorm.Expr("redeemable_visits + ?", deltaRedeemable),
		"version":            gorm.Expr("version + 1"),
		"updated_at":         now,
	}
	if lastVisitAt != nil {
		updates["last_visit_at"] = *lastVisitAt
	}

	res := r.db.WithContext(ctx).
		Model(&models.Membership{}).
		Where("id = ? AND version = ? AND redeemable_visits + ? >= 0", membership.ID, membership.Version, deltaRedeemable).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrVersionConflict
	}

	membership.AccumulatedVisits += deltaAccumulated
	membership.RedeemableVisits += deltaRedeemable
	membership.Version++
	membership.UpdatedAt = now
	if lastVisitAt != nil {
		visited := *lastVisitAt
		membership.LastVisitAt = &visited
	}
	return nil
}

func (r *repository) AppendVisit(ctx context.Context, record *models.VisitRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *repository) AppendRedemption(ctx context.Context, record *models.RedemptionRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *repository) FindRequestToken(ctx context.Context, membershipID uuid.UUID, token string) (*models.RedemptionRequestToken, error) {
	var reservation models.RedemptionRequestToken
	err := r.db.WithContext(ctx).
		Where("membership_id = ? AND token = ?", membershipID, token).
		First(&reservation).Error
	if err != nil {
		return nil, err
	}
	return &reservation, nil
}

// ReserveRequestToken records which redemption claimed the token. A second
// reservation of the same (membership, token) fails on the primary key.
func (r *repository) ReserveRequestToken(ctx context.Context, reservation *models.RedemptionRequestToken) error {
	return r.db.WithContext(ctx).Create(reservation).Error
}

// ReleaseRequestToken drops a reservation whose window has passed.
func (r *repository) ReleaseRequestToken(ctx context.Context, membershipID uuid.UUID, token string) error {
	return r.db.WithContext(ctx).
		Where("membership_id = ? AND token = ?", membershipID, token).
		Delete(&models.RedemptionRequestToken{}).Error
}

// DeleteExpiredTokens prunes reservations created before the cutoff.
// Redemption records are not touched.
func (r *repository) DeleteExpiredTokens(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("created_at < ?", before).
		Delete(&models.RedemptionRequestToken{})
	return res.RowsAffected, res.Error
}

package memberships

import (
	"context"

	"github.com/angelmondragon/visitrewards-backend/pkg/db/models"
	"github.com/angelmondragon/visitrewards-backend/pkg/pagination"
	"gorm.io/gorm"
)

// Repository reads the append-only audit trails.
type Repository interface {
	ListVisits(ctx context.Context, query historyQuery) ([]models.VisitRecord, *pagination.Cursor, error)
	ListRedemptions(ctx context.Context, query historyQuery) ([]models.RedemptionRecord, *pagination.Cursor, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository binds the repo to the provided GORM connection.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) ListVisits(ctx context.Context, query historyQuery) ([]models.VisitRecord, *pagination.Cursor, error) {
	var rows []models.VisitRecord
	err := r.db.WithContext(ctx).
		Where("membership_id = ?", query.MembershipID).
		Scopes(pagination.Keyset("recorded_at", query.Cursor, query.Limit)).
		Find(&rows).Error
	if err != nil {
		return nil, nil, err
	}
	rows, next := pagination.Page(rows, query.Limit, visitCursor)
	return rows, next, nil
}

func (r *repository) ListRedemptions(ctx context.Context, query historyQuery) ([]models.RedemptionRecord, *pagination.Cursor, error) {
	var rows []models.RedemptionRecord
	err := r.db.WithContext(ctx).
		Where("membership_id = ?", query.MembershipID).
		Scopes(pagination.Keyset("redeemed_at", query.Cursor, query.Limit)).
		Find(&rows).Error
	if err != nil {
		return nil, nil, err
	}
	rows, next := pagination.Page(rows, query.Limit, redemptionCursor)
	return rows, next, nil
}

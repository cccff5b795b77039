package giftsync

import (
	"context"

	"github.com/angelmondragon/visitrewards-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository exposes the program and reward rows the reconciler touches.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ListGiftEnabledProgramIDs(ctx context.Context) ([]uuid.UUID, error)
	LockProgram(ctx context.Context, id uuid.UUID) (*models.Program, error)
	FindSystemGift(ctx context.Context, programID uuid.UUID) (*models.Reward, error)
	CreateGift(ctx context.Context, reward *models.Reward) error
	RenameGift(ctx context.Context, rewardID uuid.UUID, name string) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository binds the repo to the provided GORM connection.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) ListGiftEnabledProgramIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.Program{}).
		Where("first_visit_gift_enabled = ?", true).
		Order("id").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repository) LockProgram(ctx context.Context, id uuid.UUID) (*models.Program, error) {
	var program models.Program
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&program).Error
	if err != nil {
		return nil, err
	}
	return &program, nil
}

func (r *repository) FindSystemGift(ctx context.Context, programID uuid.UUID) (*models.Reward, error) {
	var reward models.Reward
	err := r.db.WithContext(ctx).
		Where("program_id = ? AND tag = ?", programID, models.SystemGiftTag).
		First(&reward).Error
	if err != nil {
		return nil, err
	}
	return &reward, nil
}

func (r *repository) CreateGift(ctx context.Context, reward *models.Reward) error {
	return r.db.WithContext(ctx).Create(reward).Error
}

// RenameGift only touches the name; cost and active flag belong to the owner.
func (r *repository) RenameGift(ctx context.Context, rewardID uuid.UUID, name string) error {
	return r.db.WithContext(ctx).
		Model(&models.Reward{}).
		Where("id = ?", rewardID).
		Update("name", name).Error
}

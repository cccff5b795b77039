package programs

import (
	"context"

	"github.com/angelmondragon/visitrewards-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository reads and writes programs and their reward catalog.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindProgram(ctx context.Context, id uuid.UUID) (*models.Program, error)
	UpdateProgram(ctx context.Context, program *models.Program) error
	ListRewards(ctx context.Context, programID uuid.UUID) ([]models.Reward, error)
	FindReward(ctx context.Context, programID, rewardID uuid.UUID) (*models.Reward, error)
	CreateReward(ctx context.Context, reward *models.Reward) error
	UpdateReward(ctx context.Context, reward *models.Reward) error
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

func (r *repository) FindProgram(ctx context.Context, id uuid.UUID) (*models.Program, error) {
	var program models.Program
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&program).Error; err != nil {
		return nil, err
	}
	return &program, nil
}

func (r *repository) UpdateProgram(ctx context.Context, program *models.Program) error {
	return r.db.WithContext(ctx).Save(program).Error
}

// ListRewards returns every reward of the program, active or not, cheapest first.
func (r *repository) ListRewards(ctx context.Context, programID uuid.UUID) ([]models.Reward, error) {
	var rewards []models.Reward
	err := r.db.WithContext(ctx).
		Where("program_id = ?", programID).
		Order("cost_visits ASC").
		Order("name ASC").
		Find(&rewards).Error
	if err != nil {
		return nil, err
	}
	return rewards, nil
}

// FindReward returns gorm.ErrRecordNotFound when the reward belongs to another program.
func (r *repository) FindReward(ctx context.Context, programID, rewardID uuid.UUID) (*models.Reward, error) {
	var reward models.Reward
	err := r.db.WithContext(ctx).
		Where("id = ? AND program_id = ?", rewardID, programID).
		First(&reward).Error
	if err != nil {
		return nil, err
	}
	return &reward, nil
}

// CreateReward inserts every column so an explicit inactive flag is not
// replaced by the column default.
func (r *repository) CreateReward(ctx context.Context, reward *models.Reward) error {
	return r.db.WithContext(ctx).Select("*").Create(reward).Error
}

func (r *repository) UpdateReward(ctx context.Context, reward *models.Reward) error {
	return r.db.WithContext(ctx).Save(reward).Error
}

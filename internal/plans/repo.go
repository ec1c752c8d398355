package plans

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/velafit/velafit-backend/pkg/db/models"
	"github.com/velafit/velafit-backend/pkg/enums"
)

// Repository manages persistence for brand credit plans.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, plan *models.CreditPlan) error
	Update(ctx context.Context, plan *models.CreditPlan) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.CreditPlan, error)
	ListByBrand(ctx context.Context, brandID uuid.UUID, includeRetired bool) ([]models.CreditPlan, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a plans repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, plan *models.CreditPlan) error {
	return r.db.WithContext(ctx).Create(plan).Error
}

func (r *repository) Update(ctx context.Context, plan *models.CreditPlan) error {
	return r.db.WithContext(ctx).Save(plan).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.CreditPlan, error) {
	var plan models.CreditPlan
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&plan).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

func (r *repository) ListByBrand(ctx context.Context, brandID uuid.UUID, includeRetired bool) ([]models.CreditPlan, error) {
	query := r.db.WithContext(ctx).Where("brand_id = ?", brandID)
	if !includeRetired {
		query = query.Where("status = ?", enums.PlanStatusActive)
	}
	var plans []models.CreditPlan
	if err := query.Order("created_at ASC").Find(&plans).Error; err != nil {
		return nil, err
	}
	return plans, nil
}

package plans

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/velafit/velafit-backend/pkg/db"
	"github.com/velafit/velafit-backend/pkg/db/models"
	"github.com/velafit/velafit-backend/pkg/enums"
	pkgerrors "github.com/velafit/velafit-backend/pkg/errors"
)

// activePlanNameIndex backs the one-active-plan-per-name rule; retired names
// stay reusable because the index only covers status = 'active'.
const activePlanNameIndex = "idx_credit_plans_brand_name_active"

// Service manages the credit plan catalog of a brand. Plans are retired, not
// deleted: sold packages keep referencing them for their lifetime.
type Service interface {
	Create(ctx context.Context, input CreatePlanInput) (*models.CreditPlan, error)
	Update(ctx context.Context, input UpdatePlanInput) (*models.CreditPlan, error)
	Retire(ctx context.Context, brandID, planID uuid.UUID) (*models.CreditPlan, error)
	Get(ctx context.Context, brandID, planID uuid.UUID) (*models.CreditPlan, error)
	List(ctx context.Context, brandID uuid.UUID, includeRetired bool) ([]models.CreditPlan, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.CreditPlan, error)
}

type service struct {
	repo Repository
}

// NewService wires a plans service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("plans repository required")
	}
	return &service{repo: repo}, nil
}

// CreatePlanInput captures the fields a brand sets when publishing a plan.
type CreatePlanInput struct {
	BrandID      uuid.UUID
	Name         string
	PriceCents   int64
	BaseCredits  int
	BonusCredits int
	ValidityDays int
	ClassFilter  []uuid.UUID
}

// UpdatePlanInput carries partial edits; nil fields keep their value.
// Credit amounts and validity stay editable because packages snapshot them
// at purchase time.
type UpdatePlanInput struct {
	BrandID      uuid.UUID
	PlanID       uuid.UUID
	Name         *string
	PriceCents   *int64
	BaseCredits  *int
	BonusCredits *int
	ValidityDays *int
	ClassFilter  []uuid.UUID
}

func (s *service) Create(ctx context.Context, input CreatePlanInput) (*models.CreditPlan, error) {
	if input.BrandID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "brand id required")
	}
	if input.Name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "plan name required")
	}
	if err := validateAmounts(input.BaseCredits, input.BonusCredits, input.ValidityDays, input.PriceCents); err != nil {
		return nil, err
	}

	plan := &models.CreditPlan{
		BrandID:      input.BrandID,
		Name:         input.Name,
		Status:       enums.PlanStatusActive,
		PriceCents:   input.PriceCents,
		BaseCredits:  input.BaseCredits,
		BonusCredits: input.BonusCredits,
		ValidityDays: input.ValidityDays,
		ClassFilter:  input.ClassFilter,
	}
	if err := s.repo.Create(ctx, plan); err != nil {
		if db.IsUniqueViolation(err, activePlanNameIndex) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "an active plan with this name already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create plan failed")
	}
	return plan, nil
}

func (s *service) Update(ctx context.Context, input UpdatePlanInput) (*models.CreditPlan, error) {
	plan, err := s.ownedPlan(ctx, input.BrandID, input.PlanID)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		if *input.Name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "plan name required")
		}
		plan.Name = *input.Name
	}
	if input.PriceCents != nil {
		plan.PriceCents = *input.PriceCents
	}
	if input.BaseCredits != nil {
		plan.BaseCredits = *input.BaseCredits
	}
	if input.BonusCredits != nil {
		plan.BonusCredits = *input.BonusCredits
	}
	if input.ValidityDays != nil {
		plan.ValidityDays = *input.ValidityDays
	}
	if input.ClassFilter != nil {
		plan.ClassFilter = input.ClassFilter
	}
	if err := validateAmounts(plan.BaseCredits, plan.BonusCredits, plan.ValidityDays, plan.PriceCents); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, plan); err != nil {
		if db.IsUniqueViolation(err, activePlanNameIndex) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "an active plan with this name already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update plan failed")
	}
	return plan, nil
}

func (s *service) Retire(ctx context.Context, brandID, planID uuid.UUID) (*models.CreditPlan, error) {
	plan, err := s.ownedPlan(ctx, brandID, planID)
	if err != nil {
		return nil, err
	}
	if plan.Status == enums.PlanStatusInactive {
		return plan, nil
	}
	plan.Status = enums.PlanStatusInactive
	if err := s.repo.Update(ctx, plan); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "retire plan failed")
	}
	return plan, nil
}

func (s *service) Get(ctx context.Context, brandID, planID uuid.UUID) (*models.CreditPlan, error) {
	return s.ownedPlan(ctx, brandID, planID)
}

func (s *service) List(ctx context.Context, brandID uuid.UUID, includeRetired bool) ([]models.CreditPlan, error) {
	if brandID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "brand id required")
	}
	plans, err := s.repo.ListByBrand(ctx, brandID, includeRetired)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list plans failed")
	}
	return plans, nil
}

func (s *service) FindByID(ctx context.Context, id uuid.UUID) (*models.CreditPlan, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *service) ownedPlan(ctx context.Context, brandID, planID uuid.UUID) (*models.CreditPlan, error) {
	if brandID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "brand id required")
	}
	if planID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "plan id required")
	}
	plan, err := s.repo.FindByID(ctx, planID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load plan failed")
	}
	if plan == nil || plan.BrandID != brandID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "credit plan not found")
	}
	return plan, nil
}

func validateAmounts(base, bonus, validityDays int, priceCents int64) error {
	if base < 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "base credits must be at least 1")
	}
	if bonus < 0 || bonus > base {
		return pkgerrors.New(pkgerrors.CodeValidation, "bonus credits must be between 0 and the base amount")
	}
	if validityDays < 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "validity must be at least one day")
	}
	if priceCents < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "price cannot be negative")
	}
	return nil
}

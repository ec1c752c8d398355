package plans

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/velafit/velafit-backend/pkg/db/models"
	"github.com/velafit/velafit-backend/pkg/enums"
)

// PlanDTO is the transport shape for a credit plan. Price is the decimal
// rendering of the stored cent amount.
type PlanDTO struct {
	ID           uuid.UUID        `json:"id"`
	BrandID      uuid.UUID        `json:"brand_id"`
	Name         string           `json:"name"`
	Status       enums.PlanStatus `json:"status"`
	Price        string           `json:"price"`
	PriceCents   int64            `json:"price_cents"`
	BaseCredits  int              `json:"base_credits"`
	BonusCredits int              `json:"bonus_credits"`
	TotalCredits int              `json:"total_credits"`
	ValidityDays int              `json:"validity_days"`
	ClassFilter  []uuid.UUID      `json:"class_filter"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// ToDTO converts a plan model to the external DTO.
func ToDTO(plan *models.CreditPlan) *PlanDTO {
	if plan == nil {
		return nil
	}
	filter := []uuid.UUID(plan.ClassFilter)
	if filter == nil {
		filter = []uuid.UUID{}
	}
	return &PlanDTO{
		ID:           plan.ID,
		BrandID:      plan.BrandID,
		Name:         plan.Name,
		Status:       plan.Status,
		Price:        decimal.NewFromInt(plan.PriceCents).Shift(-2).StringFixed(2),
		PriceCents:   plan.PriceCents,
		BaseCredits:  plan.BaseCredits,
		BonusCredits: plan.BonusCredits,
		TotalCredits: plan.TotalCredits(),
		ValidityDays: plan.ValidityDays,
		ClassFilter:  filter,
		CreatedAt:    plan.CreatedAt,
		UpdatedAt:    plan.UpdatedAt,
	}
}

// ToDTOs converts a slice of plan models.
func ToDTOs(plans []models.CreditPlan) []PlanDTO {
	out := make([]PlanDTO, 0, len(plans))
	for i := range plans {
		out = append(out, *ToDTO(&plans[i]))
	}
	return out
}

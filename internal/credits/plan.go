package credits

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/velafit/velafit-backend/pkg/db/models"
)

// PlanSnapshot captures the plan configuration a purchase is priced against.
// The aggregate only ever sees this frozen copy; later plan edits never reach
// packages that were already sold.
type PlanSnapshot struct {
	PlanID       uuid.UUID
	BrandID      uuid.UUID
	Name         string
	BaseCredits  int
	BonusCredits int
	ValidityDays int
	ClassFilter  []uuid.UUID
}

// SnapshotFromPlan freezes the purchasable fields of a plan record.
func SnapshotFromPlan(plan models.CreditPlan) PlanSnapshot {
	filter := make([]uuid.UUID, len(plan.ClassFilter))
	copy(filter, plan.ClassFilter)
	return PlanSnapshot{
		PlanID:       plan.ID,
		BrandID:      plan.BrandID,
		Name:         plan.Name,
		BaseCredits:  plan.BaseCredits,
		BonusCredits: plan.BonusCredits,
		ValidityDays: plan.ValidityDays,
		ClassFilter:  filter,
	}
}

// TotalCredits is the number of credits one purchase of the plan grants.
func (p PlanSnapshot) TotalCredits() int {
	return p.BaseCredits + p.BonusCredits
}

// IncludesClass reports whether credits from this plan may book the class.
// An empty filter covers every class of the brand.
func (p PlanSnapshot) IncludesClass(classID uuid.UUID) bool {
	if len(p.ClassFilter) == 0 {
		return true
	}
	for _, candidate := range p.ClassFilter {
		if candidate == classID {
			return true
		}
	}
	return false
}

// ExpiryFrom computes when a package purchased at the given time expires.
func (p PlanSnapshot) ExpiryFrom(purchasedAt time.Time) time.Time {
	return purchasedAt.Add(time.Duration(p.ValidityDays) * 24 * time.Hour)
}

func (p PlanSnapshot) validate() error {
	if p.PlanID == uuid.Nil {
		return fmt.Errorf("%w: plan id missing", ErrInvalidPlanSnapshot)
	}
	if p.BaseCredits < 1 {
		return fmt.Errorf("%w: base credits must be at least 1", ErrInvalidPlanSnapshot)
	}
	if p.BonusCredits < 0 || p.BonusCredits > p.BaseCredits {
		return fmt.Errorf("%w: bonus credits out of range", ErrInvalidPlanSnapshot)
	}
	if p.ValidityDays < 1 {
		return fmt.Errorf("%w: validity must be at least one day", ErrInvalidPlanSnapshot)
	}
	return nil
}

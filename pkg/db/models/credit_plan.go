package models

import (
	"time"

	"github.com/google/uuid"

	dbtypes "github.com/velafit/velafit-backend/pkg/db/types"
	"github.com/velafit/velafit-backend/pkg/enums"
)

// CreditPlan is a brand's purchasable credit pack template. Packages snapshot
// its credit amounts at purchase time, so later edits never reach sold lots.
type CreditPlan struct {
	ID           uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BrandID      uuid.UUID         `gorm:"column:brand_id;type:uuid;not null;index"`
	Name         string            `gorm:"column:name;not null"`
	Status       enums.PlanStatus  `gorm:"column:status;type:plan_status;not null;default:active"`
	PriceCents   int64             `gorm:"column:price_cents;not null"`
	BaseCredits  int               `gorm:"column:base_credits;not null"`
	BonusCredits int               `gorm:"column:bonus_credits;not null;default:0"`
	ValidityDays int               `gorm:"column:validity_days;not null"`
	ClassFilter  dbtypes.UUIDArray `gorm:"column:class_filter;type:uuid[];default:'{}'"`
	CreatedAt    time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

// Purchasable reports whether new packages may still be sold from this plan.
func (p CreditPlan) Purchasable() bool {
	return p.Status == enums.PlanStatusActive
}

// TotalCredits is the number of credits one purchase of this plan grants.
func (p CreditPlan) TotalCredits() int {
	return p.BaseCredits + p.BonusCredits
}

// IncludesClass reports whether the plan's credits may book the given class.
// An empty filter covers every class of the brand.
func (p CreditPlan) IncludesClass(classID uuid.UUID) bool {
	if len(p.ClassFilter) == 0 {
		return true
	}
	return p.ClassFilter.Contains(classID)
}

// ExpiryFrom computes when a package purchased at the given time expires.
func (p CreditPlan) ExpiryFrom(purchasedAt time.Time) time.Time {
	return purchasedAt.Add(time.Duration(p.ValidityDays) * 24 * time.Hour)
}

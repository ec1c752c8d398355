package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/velafit/velafit-backend/pkg/enums"
)

// CreditPackage is one purchased lot of credits with its own expiry, owned
// exclusively by one ledger. OriginalCredits snapshots the plan's total at
// purchase time.
type CreditPackage struct {
	ID               uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	LedgerID         uuid.UUID           `gorm:"column:ledger_id;type:uuid;not null;index"`
	PlanID           uuid.UUID           `gorm:"column:plan_id;type:uuid;not null"`
	OriginalCredits  int                 `gorm:"column:original_credits;not null"`
	CreditsRemaining int                 `gorm:"column:credits_remaining;not null"`
	PurchasedAt      time.Time           `gorm:"column:purchased_at;not null"`
	ExpiresAt        time.Time           `gorm:"column:expires_at;not null"`
	PaymentRef       string              `gorm:"column:payment_ref"`
	Status           enums.PackageStatus `gorm:"column:status;type:package_status;not null;default:active"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// Expired reports whether the package's validity window has passed.
func (p CreditPackage) Expired(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}

// Consumable reports whether the package can still cover a deduction.
func (p CreditPackage) Consumable(now time.Time) bool {
	return p.Status == enums.PackageStatusActive && p.CreditsRemaining > 0 && !p.Expired(now)
}

package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/velafit/velafit-backend/pkg/enums"
)

// CreditLedger is the per-(client, brand) aggregate root owning all credit
// packages and transactions for that pair. AvailableCredits is derived state:
// it must always equal the sum of CreditsRemaining over active packages.
type CreditLedger struct {
	ID               uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ClientID         uuid.UUID          `gorm:"column:client_id;type:uuid;not null;uniqueIndex:idx_credit_ledgers_client_brand"`
	BrandID          uuid.UUID          `gorm:"column:brand_id;type:uuid;not null;uniqueIndex:idx_credit_ledgers_client_brand"`
	AvailableCredits int                `gorm:"column:available_credits;not null;default:0"`
	TotalEarned      int                `gorm:"column:total_earned;not null;default:0"`
	TotalUsed        int                `gorm:"column:total_used;not null;default:0"`
	Status           enums.LedgerStatus `gorm:"column:status;type:ledger_status;not null;default:active"`
	LastActivityAt   time.Time          `gorm:"column:last_activity_at"`
	CreatedAt        time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time          `gorm:"column:updated_at;autoUpdateTime"`

	Packages     []CreditPackage     `gorm:"foreignKey:LedgerID"`
	Transactions []CreditTransaction `gorm:"foreignKey:LedgerID"`
}

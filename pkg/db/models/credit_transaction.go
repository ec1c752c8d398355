package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/velafit/velafit-backend/pkg/enums"
)

// CreditTransaction is an append-only audit record of one ledger mutation.
// Rows are never updated or deleted after insert; they are the sole trail
// reconciling against the ledger's TotalEarned/TotalUsed counters.
type CreditTransaction struct {
	ID          uuid.UUID                   `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	LedgerID    uuid.UUID                   `gorm:"column:ledger_id;type:uuid;not null;index"`
	Type        enums.CreditTransactionType `gorm:"column:type;type:credit_transaction_type;not null"`
	Amount      int                         `gorm:"column:amount;not null"`
	PackageID   *uuid.UUID                  `gorm:"column:package_id;type:uuid"`
	BookingRef  *string                     `gorm:"column:booking_ref"`
	Description string                      `gorm:"column:description"`
	CreatedAt   time.Time                   `gorm:"column:created_at;autoCreateTime"`
}

package credits

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/velafit/velafit-backend/pkg/db/models"
	"github.com/velafit/velafit-backend/pkg/enums"
	"github.com/velafit/velafit-backend/pkg/pagination"
)

// LedgerKey identifies one (client, brand) ledger without loading it.
type LedgerKey struct {
	LedgerID uuid.UUID
	ClientID uuid.UUID
	BrandID  uuid.UUID
}

// Repository manages persistence for credit ledgers, packages, and the
// audit transaction trail.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Find(ctx context.Context, clientID, brandID uuid.UUID) (*Ledger, error)
	FindForUpdate(ctx context.Context, clientID, brandID uuid.UUID) (*Ledger, error)
	GetOrCreateForUpdate(ctx context.Context, clientID, brandID uuid.UUID) (*Ledger, error)
	FindRecord(ctx context.Context, clientID, brandID uuid.UUID) (*models.CreditLedger, error)
	Apply(ctx context.Context, mut Mutation) error
	ListTransactions(ctx context.Context, ledgerID uuid.UUID, page pagination.Page) ([]models.CreditTransaction, error)
	FindLatestDeduction(ctx context.Context, ledgerID uuid.UUID, bookingRef string) (*models.CreditTransaction, error)
	ListLedgersWithLapsedPackages(ctx context.Context, now time.Time, limit int) ([]LedgerKey, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a credits repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Find(ctx context.Context, clientID, brandID uuid.UUID) (*Ledger, error) {
	return r.find(ctx, clientID, brandID, false)
}

func (r *repository) FindForUpdate(ctx context.Context, clientID, brandID uuid.UUID) (*Ledger, error) {
	return r.find(ctx, clientID, brandID, true)
}

func (r *repository) find(ctx context.Context, clientID, brandID uuid.UUID, forUpdate bool) (*Ledger, error) {
	query := r.db.WithContext(ctx)
	if forUpdate {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var record models.CreditLedger
	err := query.
		Where("client_id = ? AND brand_id = ?", clientID, brandID).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	packages, err := r.loadPackages(ctx, record.ID)
	if err != nil {
		return nil, err
	}
	return &Ledger{Record: record, Packages: packages}, nil
}

// GetOrCreateForUpdate returns the locked ledger for the pair, inserting an
// empty one first when none exists. The insert tolerates a concurrent create
// racing it; the follow-up locked read settles on whichever row won.
func (r *repository) GetOrCreateForUpdate(ctx context.Context, clientID, brandID uuid.UUID) (*Ledger, error) {
	record := models.CreditLedger{
		ClientID: clientID,
		BrandID:  brandID,
		Status:   enums.LedgerStatusActive,
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "client_id"}, {Name: "brand_id"}},
			DoNothing: true,
		}).
		Create(&record).Error
	if err != nil {
		return nil, err
	}
	return r.find(ctx, clientID, brandID, true)
}

func (r *repository) FindRecord(ctx context.Context, clientID, brandID uuid.UUID) (*models.CreditLedger, error) {
	var record models.CreditLedger
	err := r.db.WithContext(ctx).
		Where("client_id = ? AND brand_id = ?", clientID, brandID).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// Apply persists one aggregate mutation: inserts new packages and
// transactions, updates touched packages, and writes back the ledger
// counters. Callers run it inside the transaction that locked the ledger.
func (r *repository) Apply(ctx context.Context, mut Mutation) error {
	db := r.db.WithContext(ctx)
	if len(mut.NewPackages) > 0 {
		if err := db.Create(&mut.NewPackages).Error; err != nil {
			return err
		}
	}
	for i := range mut.UpdatedPackages {
		pkg := mut.UpdatedPackages[i]
		err := db.Model(&models.CreditPackage{}).
			Where("id = ?", pkg.ID).
			Updates(map[string]interface{}{
				"credits_remaining": pkg.CreditsRemaining,
				"status":            pkg.Status,
			}).Error
		if err != nil {
			return err
		}
	}
	if len(mut.Transactions) > 0 {
		if err := db.Create(&mut.Transactions).Error; err != nil {
			return err
		}
	}
	return db.Model(&models.CreditLedger{}).
		Where("id = ?", mut.Ledger.ID).
		Updates(map[string]interface{}{
			"available_credits": mut.Ledger.AvailableCredits,
			"total_earned":      mut.Ledger.TotalEarned,
			"total_used":        mut.Ledger.TotalUsed,
			"last_activity_at":  mut.Ledger.LastActivityAt,
		}).Error
}

func (r *repository) ListTransactions(ctx context.Context, ledgerID uuid.UUID, page pagination.Page) ([]models.CreditTransaction, error) {
	page = page.Normalize()
	var txns []models.CreditTransaction
	err := r.db.WithContext(ctx).
		Where("ledger_id = ?", ledgerID).
		Order("created_at DESC, id DESC").
		Limit(page.Limit).
		Offset(page.Offset).
		Find(&txns).Error
	if err != nil {
		return nil, err
	}
	return txns, nil
}

// FindLatestDeduction returns the most recent deduction carrying the booking
// reference, or nil when the booking never drew from this ledger.
func (r *repository) FindLatestDeduction(ctx context.Context, ledgerID uuid.UUID, bookingRef string) (*models.CreditTransaction, error) {
	var txn models.CreditTransaction
	err := r.db.WithContext(ctx).
		Where("ledger_id = ? AND booking_ref = ? AND type = ?",
			ledgerID, bookingRef, enums.CreditTransactionTypeDeduction).
		Order("created_at DESC, id DESC").
		First(&txn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

// ListLedgersWithLapsedPackages finds ledgers still holding active packages
// whose expiry has passed. The sweeper walks this list.
func (r *repository) ListLedgersWithLapsedPackages(ctx context.Context, now time.Time, limit int) ([]LedgerKey, error) {
	var keys []LedgerKey
	err := r.db.WithContext(ctx).
		Model(&models.CreditPackage{}).
		Select("DISTINCT credit_ledgers.id AS ledger_id, credit_ledgers.client_id, credit_ledgers.brand_id").
		Joins("JOIN credit_ledgers ON credit_ledgers.id = credit_packages.ledger_id").
		Where("credit_packages.status = ? AND credit_packages.expires_at <= ?",
			enums.PackageStatusActive, now).
		Limit(limit).
		Scan(&keys).Error
	if err != nil {
		return nil, err
	}
	return keys, nil
}

func (r *repository) loadPackages(ctx context.Context, ledgerID uuid.UUID) ([]models.CreditPackage, error) {
	var packages []models.CreditPackage
	err := r.db.WithContext(ctx).
		Where("ledger_id = ?", ledgerID).
		Order("purchased_at ASC, created_at ASC").
		Find(&packages).Error
	if err != nil {
		return nil, err
	}
	return packages, nil
}

package credits

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/velafit/velafit-backend/pkg/db/models"
	"github.com/velafit/velafit-backend/pkg/enums"
	"github.com/velafit/velafit-backend/pkg/pagination"
)

func setupCreditsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	ledgers := `
CREATE TABLE IF NOT EXISTS credit_ledgers (
  id TEXT PRIMARY KEY,
  client_id TEXT NOT NULL,
  brand_id TEXT NOT NULL,
  available_credits INTEGER NOT NULL DEFAULT 0,
  total_earned INTEGER NOT NULL DEFAULT 0,
  total_used INTEGER NOT NULL DEFAULT 0,
  status TEXT NOT NULL DEFAULT 'active',
  last_activity_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	packages := `
CREATE TABLE IF NOT EXISTS credit_packages (
  id TEXT PRIMARY KEY,
  ledger_id TEXT NOT NULL,
  plan_id TEXT NOT NULL,
  original_credits INTEGER NOT NULL,
  credits_remaining INTEGER NOT NULL,
  purchased_at DATETIME NOT NULL,
  expires_at DATETIME NOT NULL,
  payment_ref TEXT,
  status TEXT NOT NULL DEFAULT 'active',
  created_at DATETIME,
  updated_at DATETIME
);`
	transactions := `
CREATE TABLE IF NOT EXISTS credit_transactions (
  id TEXT PRIMARY KEY,
  ledger_id TEXT NOT NULL,
  type TEXT NOT NULL,
  amount INTEGER NOT NULL,
  package_id TEXT,
  booking_ref TEXT,
  description TEXT,
  created_at DATETIME
);`
	require.NoError(t, db.Exec(ledgers).Error)
	require.NoError(t, db.Exec(packages).Error)
	require.NoError(t, db.Exec(transactions).Error)
	return db
}

func seedLedger(t *testing.T, db *gorm.DB) *models.CreditLedger {
	t.Helper()

	record := &models.CreditLedger{
		ID:       uuid.New(),
		ClientID: uuid.New(),
		BrandID:  uuid.New(),
		Status:   enums.LedgerStatusActive,
	}
	require.NoError(t, db.Create(record).Error)
	return record
}

func seedPackage(t *testing.T, db *gorm.DB, ledgerID uuid.UUID, remaining int, purchasedAt, expiresAt time.Time) *models.CreditPackage {
	t.Helper()

	pkg := &models.CreditPackage{
		ID:               uuid.New(),
		LedgerID:         ledgerID,
		PlanID:           uuid.New(),
		OriginalCredits:  remaining,
		CreditsRemaining: remaining,
		PurchasedAt:      purchasedAt,
		ExpiresAt:        expiresAt,
		Status:           enums.PackageStatusActive,
	}
	require.NoError(t, db.Create(pkg).Error)
	return pkg
}

func TestRepositoryFindLoadsPackagesOldestFirst(t *testing.T) {
	db := setupCreditsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	record := seedLedger(t, db)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	newer := seedPackage(t, db, record.ID, 5, base.Add(time.Hour), base.Add(30*24*time.Hour))
	older := seedPackage(t, db, record.ID, 10, base, base.Add(30*24*time.Hour))

	ledger, err := repo.Find(ctx, record.ClientID, record.BrandID)
	require.NoError(t, err)
	require.NotNil(t, ledger)
	require.Len(t, ledger.Packages, 2)
	assert.Equal(t, older.ID, ledger.Packages[0].ID)
	assert.Equal(t, newer.ID, ledger.Packages[1].ID)
}

func TestRepositoryFindReturnsNilForUnknownPair(t *testing.T) {
	db := setupCreditsTestDB(t)
	repo := NewRepository(db)

	ledger, err := repo.Find(context.Background(), uuid.New(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, ledger)
}

func TestRepositoryApplyPersistsMutation(t *testing.T) {
	db := setupCreditsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	record := seedLedger(t, db)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	existing := seedPackage(t, db, record.ID, 10, now.Add(-time.Hour), now.Add(30*24*time.Hour))

	updated := *existing
	updated.CreditsRemaining = 0
	updated.Status = enums.PackageStatusConsumed

	fresh := models.CreditPackage{
		ID:               uuid.New(),
		LedgerID:         record.ID,
		PlanID:           uuid.New(),
		OriginalCredits:  5,
		CreditsRemaining: 5,
		PurchasedAt:      now,
		ExpiresAt:        now.Add(30 * 24 * time.Hour),
		Status:           enums.PackageStatusActive,
	}

	ledger := record
	ledger.AvailableCredits = 5
	ledger.TotalEarned = 15
	ledger.TotalUsed = 10
	ledger.LastActivityAt = now

	err := repo.Apply(ctx, Mutation{
		Ledger:          *ledger,
		NewPackages:     []models.CreditPackage{fresh},
		UpdatedPackages: []models.CreditPackage{updated},
		Transactions: []models.CreditTransaction{
			{
				ID:        uuid.New(),
				LedgerID:  record.ID,
				Type:      enums.CreditTransactionTypeDeduction,
				Amount:    10,
				PackageID: &existing.ID,
				CreatedAt: now,
			},
		},
	})
	require.NoError(t, err)

	reloaded, err := repo.Find(ctx, record.ClientID, record.BrandID)
	require.NoError(t, err)
	require.NotNil(t, reloaded)
	assert.Equal(t, 5, reloaded.Record.AvailableCredits)
	assert.Equal(t, 15, reloaded.Record.TotalEarned)
	assert.Equal(t, 10, reloaded.Record.TotalUsed)
	require.Len(t, reloaded.Packages, 2)
	assert.Equal(t, enums.PackageStatusConsumed, reloaded.Packages[0].Status)
	assert.Equal(t, 0, reloaded.Packages[0].CreditsRemaining)
	assert.Equal(t, 5, reloaded.Packages[1].CreditsRemaining)

	txns, err := repo.ListTransactions(ctx, record.ID, pagination.Page{})
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, enums.CreditTransactionTypeDeduction, txns[0].Type)
}

func TestRepositoryListTransactionsNewestFirst(t *testing.T) {
	db := setupCreditsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	record := seedLedger(t, db)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		txn := models.CreditTransaction{
			ID:        uuid.New(),
			LedgerID:  record.ID,
			Type:      enums.CreditTransactionTypePurchase,
			Amount:    10 + i,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, db.Create(&txn).Error)
	}

	txns, err := repo.ListTransactions(ctx, record.ID, pagination.Page{Limit: 2})
	require.NoError(t, err)
	require.Len(t, txns, 2)
	assert.Equal(t, 12, txns[0].Amount)
	assert.Equal(t, 11, txns[1].Amount)

	rest, err := repo.ListTransactions(ctx, record.ID, pagination.Page{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, 10, rest[0].Amount)
}

func TestRepositoryFindLatestDeduction(t *testing.T) {
	db := setupCreditsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	record := seedLedger(t, db)
	bookingRef := "booking-9"
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	pkgA := uuid.New()
	pkgB := uuid.New()
	for i, pkgID := range []uuid.UUID{pkgA, pkgB} {
		txn := models.CreditTransaction{
			ID:         uuid.New(),
			LedgerID:   record.ID,
			Type:       enums.CreditTransactionTypeDeduction,
			Amount:     1,
			PackageID:  &pkgID,
			BookingRef: &bookingRef,
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, db.Create(&txn).Error)
	}

	latest, err := repo.FindLatestDeduction(ctx, record.ID, bookingRef)
	require.NoError(t, err)
	require.NotNil(t, latest)
	require.NotNil(t, latest.PackageID)
	assert.Equal(t, pkgB, *latest.PackageID)

	missing, err := repo.FindLatestDeduction(ctx, record.ID, "booking-unknown")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRepositoryListLedgersWithLapsedPackages(t *testing.T) {
	db := setupCreditsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	lapsed := seedLedger(t, db)
	seedPackage(t, db, lapsed.ID, 5, now.Add(-40*24*time.Hour), now.Add(-time.Hour))

	healthy := seedLedger(t, db)
	seedPackage(t, db, healthy.ID, 5, now.Add(-time.Hour), now.Add(30*24*time.Hour))

	keys, err := repo.ListLedgersWithLapsedPackages(ctx, now, 100)
	require.NoError(t, err)

	var found bool
	for _, key := range keys {
		if key.LedgerID == lapsed.ID {
			found = true
			assert.Equal(t, lapsed.ClientID, key.ClientID)
			assert.Equal(t, lapsed.BrandID, key.BrandID)
		}
		if key.LedgerID == healthy.ID {
			t.Fatalf("ledger without lapsed packages should not be listed")
		}
	}
	assert.True(t, found, "expected lapsed ledger in sweep candidates")
}

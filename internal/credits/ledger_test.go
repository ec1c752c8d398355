package credits

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/velafit/velafit-backend/pkg/db/models"
	"github.com/velafit/velafit-backend/pkg/enums"
)

var testNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func testLedger() *Ledger {
	return &Ledger{
		Record: models.CreditLedger{
			ID:       uuid.New(),
			ClientID: uuid.New(),
			BrandID:  uuid.New(),
			Status:   enums.LedgerStatusActive,
		},
	}
}

func testSnapshot(base, bonus, validityDays int) PlanSnapshot {
	return PlanSnapshot{
		PlanID:       uuid.New(),
		BrandID:      uuid.New(),
		Name:         "test plan",
		BaseCredits:  base,
		BonusCredits: bonus,
		ValidityDays: validityDays,
	}
}

func mustPurchase(t *testing.T, led *Ledger, plan PlanSnapshot, at time.Time) models.CreditPackage {
	t.Helper()
	mut, err := led.Purchase(plan, "pay_test", at)
	if err != nil {
		t.Fatalf("purchase failed: %v", err)
	}
	return mut.NewPackages[0]
}

func TestPurchaseCreditsBonusImmediately(t *testing.T) {
	led := testLedger()

	mut, err := led.Purchase(testSnapshot(10, 2, 30), "pay_123", testNow)
	if err != nil {
		t.Fatalf("purchase failed: %v", err)
	}

	if led.Record.AvailableCredits != 12 {
		t.Fatalf("expected 12 available credits, got %d", led.Record.AvailableCredits)
	}
	if led.Record.TotalEarned != 12 {
		t.Fatalf("expected total earned 12, got %d", led.Record.TotalEarned)
	}
	pkg := mut.NewPackages[0]
	if pkg.OriginalCredits != 12 || pkg.CreditsRemaining != 12 {
		t.Fatalf("expected package 12/12, got %d/%d", pkg.CreditsRemaining, pkg.OriginalCredits)
	}
	if !pkg.ExpiresAt.Equal(testNow.Add(30 * 24 * time.Hour)) {
		t.Fatalf("unexpected expiry %s", pkg.ExpiresAt)
	}
	txn := mut.Transactions[0]
	if txn.Type != enums.CreditTransactionTypePurchase || txn.Amount != 12 {
		t.Fatalf("unexpected transaction %s/%d", txn.Type, txn.Amount)
	}
	if txn.PackageID != nil {
		t.Fatalf("purchase transactions should not reference a package")
	}
}

func TestPurchaseRejectsInvalidSnapshot(t *testing.T) {
	led := testLedger()

	cases := []struct {
		name string
		plan PlanSnapshot
	}{
		{"zero base", testSnapshot(0, 0, 30)},
		{"bonus above base", testSnapshot(5, 6, 30)},
		{"negative bonus", testSnapshot(5, -1, 30)},
		{"zero validity", testSnapshot(5, 0, 0)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := led.Purchase(tc.plan, "", testNow); !errors.Is(err, ErrInvalidPlanSnapshot) {
				t.Fatalf("expected ErrInvalidPlanSnapshot, got %v", err)
			}
		})
	}
	if led.Record.AvailableCredits != 0 || len(led.Packages) != 0 {
		t.Fatalf("failed purchases must not mutate the ledger")
	}
}

func TestPurchaseInactiveLedger(t *testing.T) {
	led := testLedger()
	led.Record.Status = enums.LedgerStatusInactive

	if _, err := led.Purchase(testSnapshot(10, 0, 30), "", testNow); !errors.Is(err, ErrLedgerInactive) {
		t.Fatalf("expected ErrLedgerInactive, got %v", err)
	}
}

func TestDeductDrainsOldestPackagesFirst(t *testing.T) {
	led := testLedger()
	older := mustPurchase(t, led, testSnapshot(10, 0, 30), testNow)
	newer := mustPurchase(t, led, testSnapshot(5, 0, 30), testNow.Add(time.Hour))

	ref := "booking_42"
	mut, err := led.Deduct(12, &ref, testNow.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("deduct failed: %v", err)
	}

	if len(mut.Transactions) != 2 {
		t.Fatalf("expected 2 deduction records, got %d", len(mut.Transactions))
	}
	first, second := mut.Transactions[0], mut.Transactions[1]
	if *first.PackageID != older.ID || first.Amount != 10 {
		t.Fatalf("expected 10 credits from the older package, got %d from %s", first.Amount, first.PackageID)
	}
	if *second.PackageID != newer.ID || second.Amount != 2 {
		t.Fatalf("expected 2 credits from the newer package, got %d from %s", second.Amount, second.PackageID)
	}
	if first.BookingRef == nil || *first.BookingRef != ref {
		t.Fatalf("deduction should carry the booking ref")
	}

	if led.Packages[0].Status != enums.PackageStatusConsumed || led.Packages[0].CreditsRemaining != 0 {
		t.Fatalf("drained package should be consumed at zero")
	}
	if led.Packages[1].CreditsRemaining != 3 {
		t.Fatalf("expected 3 credits left in the newer package, got %d", led.Packages[1].CreditsRemaining)
	}
	if led.Record.AvailableCredits != 3 || led.Record.TotalUsed != 12 {
		t.Fatalf("counters off: available %d, used %d", led.Record.AvailableCredits, led.Record.TotalUsed)
	}
}

func TestDeductInsufficientLeavesLedgerUntouched(t *testing.T) {
	led := testLedger()
	mustPurchase(t, led, testSnapshot(5, 0, 30), testNow)

	_, err := led.Deduct(6, nil, testNow.Add(time.Hour))
	if !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("expected ErrInsufficientCredits, got %v", err)
	}
	if led.Record.AvailableCredits != 5 || led.Record.TotalUsed != 0 {
		t.Fatalf("failed deduction must not move counters: available %d, used %d",
			led.Record.AvailableCredits, led.Record.TotalUsed)
	}
	if led.Packages[0].CreditsRemaining != 5 {
		t.Fatalf("failed deduction must not touch packages")
	}
}

func TestDeductIgnoresLapsedPackages(t *testing.T) {
	led := testLedger()
	mustPurchase(t, led, testSnapshot(5, 0, 1), testNow)   // lapses after a day
	keep := mustPurchase(t, led, testSnapshot(5, 0, 30), testNow)

	later := testNow.Add(48 * time.Hour)
	if got := led.ConsumableCredits(later); got != 5 {
		t.Fatalf("expected 5 consumable credits, got %d", got)
	}
	if _, err := led.Deduct(6, nil, later); !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("expected ErrInsufficientCredits over lapsed credits, got %v", err)
	}

	mut, err := led.Deduct(5, nil, later)
	if err != nil {
		t.Fatalf("deduct failed: %v", err)
	}
	if *mut.Transactions[0].PackageID != keep.ID {
		t.Fatalf("deduction drew from the lapsed package")
	}
}

func TestDeductRejectsNonPositiveAmount(t *testing.T) {
	led := testLedger()
	mustPurchase(t, led, testSnapshot(5, 0, 30), testNow)

	for _, amount := range []int{0, -3} {
		if _, err := led.Deduct(amount, nil, testNow); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("amount %d: expected ErrInvalidAmount, got %v", amount, err)
		}
	}
}

func TestRefundRestoresConsumedPackage(t *testing.T) {
	led := testLedger()
	pkg := mustPurchase(t, led, testSnapshot(5, 0, 30), testNow)
	ref := "booking_9"
	if _, err := led.Deduct(5, &ref, testNow.Add(time.Hour)); err != nil {
		t.Fatalf("deduct failed: %v", err)
	}

	mut, err := led.Refund(2, &ref, &pkg.ID, testNow.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("refund failed: %v", err)
	}

	if mut.Transactions[0].Amount != 2 {
		t.Fatalf("expected 2 credits refunded, got %d", mut.Transactions[0].Amount)
	}
	got := led.Packages[0]
	if got.CreditsRemaining != 2 || got.Status != enums.PackageStatusActive {
		t.Fatalf("refunded package should be active with 2 credits, got %s/%d", got.Status, got.CreditsRemaining)
	}
	if led.Record.AvailableCredits != 2 || led.Record.TotalUsed != 3 {
		t.Fatalf("counters off after refund: available %d, used %d",
			led.Record.AvailableCredits, led.Record.TotalUsed)
	}
}

func TestRefundCapsAtPackageHeadroom(t *testing.T) {
	led := testLedger()
	pkg := mustPurchase(t, led, testSnapshot(10, 0, 30), testNow)
	if _, err := led.Deduct(3, nil, testNow.Add(time.Hour)); err != nil {
		t.Fatalf("deduct failed: %v", err)
	}

	mut, err := led.Refund(5, nil, &pkg.ID, testNow.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("refund failed: %v", err)
	}
	if mut.Transactions[0].Amount != 3 {
		t.Fatalf("refund should cap at headroom 3, recorded %d", mut.Transactions[0].Amount)
	}
	if led.Packages[0].CreditsRemaining != 10 {
		t.Fatalf("package must never exceed its original size, got %d", led.Packages[0].CreditsRemaining)
	}
	if led.Record.TotalUsed != 0 {
		t.Fatalf("total used should move by the restored amount, got %d", led.Record.TotalUsed)
	}
}

func TestRefundFallsBackToLatestUnexpiredPackage(t *testing.T) {
	led := testLedger()
	expiredTarget := mustPurchase(t, led, testSnapshot(5, 0, 1), testNow)
	latest := mustPurchase(t, led, testSnapshot(5, 0, 60), testNow.Add(time.Hour))

	later := testNow.Add(48 * time.Hour)
	if _, err := led.ExpireSweep(later); err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if _, err := led.Deduct(2, nil, later); err != nil {
		t.Fatalf("deduct failed: %v", err)
	}

	mut, err := led.Refund(2, nil, &expiredTarget.ID, later.Add(time.Hour))
	if err != nil {
		t.Fatalf("refund failed: %v", err)
	}
	if *mut.Transactions[0].PackageID != latest.ID {
		t.Fatalf("refund should fall back to the latest unexpired package")
	}
	if led.Packages[0].CreditsRemaining != 0 {
		t.Fatalf("expired package must stay at zero")
	}
}

func TestRefundWithNothingRestorable(t *testing.T) {
	led := testLedger()
	mustPurchase(t, led, testSnapshot(5, 0, 1), testNow)

	later := testNow.Add(48 * time.Hour)
	if _, err := led.ExpireSweep(later); err != nil {
		t.Fatalf("sweep failed: %v", err)
	}

	if _, err := led.Refund(2, nil, nil, later); !errors.Is(err, ErrNothingToRefund) {
		t.Fatalf("expected ErrNothingToRefund, got %v", err)
	}

	led2 := testLedger()
	mustPurchase(t, led2, testSnapshot(5, 0, 30), testNow)
	if _, err := led2.Refund(2, nil, nil, testNow); !errors.Is(err, ErrNothingToRefund) {
		t.Fatalf("full package has no headroom: expected ErrNothingToRefund, got %v", err)
	}
}

func TestExpireSweepForfeitsAndIsIdempotent(t *testing.T) {
	led := testLedger()
	lapsing := mustPurchase(t, led, testSnapshot(8, 0, 1), testNow)
	mustPurchase(t, led, testSnapshot(5, 0, 60), testNow)

	later := testNow.Add(48 * time.Hour)
	mut, err := led.ExpireSweep(later)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}

	if len(mut.Transactions) != 1 {
		t.Fatalf("expected one expiry record, got %d", len(mut.Transactions))
	}
	txn := mut.Transactions[0]
	if txn.Type != enums.CreditTransactionTypeExpiry || txn.Amount != 8 || *txn.PackageID != lapsing.ID {
		t.Fatalf("unexpected expiry record %s/%d", txn.Type, txn.Amount)
	}
	if led.Packages[0].Status != enums.PackageStatusExpired || led.Packages[0].CreditsRemaining != 0 {
		t.Fatalf("lapsed package should be expired at zero")
	}
	if led.Record.AvailableCredits != 5 {
		t.Fatalf("expected 5 credits left after sweep, got %d", led.Record.AvailableCredits)
	}

	again, err := led.ExpireSweep(later)
	if err != nil {
		t.Fatalf("second sweep failed: %v", err)
	}
	if !again.empty() {
		t.Fatalf("second sweep must be a no-op")
	}
}

func TestExpiringWithinSortsSoonestFirst(t *testing.T) {
	led := testLedger()
	week := mustPurchase(t, led, testSnapshot(5, 0, 7), testNow)
	mustPurchase(t, led, testSnapshot(5, 0, 90), testNow)
	tomorrow := mustPurchase(t, led, testSnapshot(5, 0, 1), testNow)

	got := led.ExpiringWithin(10, testNow)
	if len(got) != 2 {
		t.Fatalf("expected 2 packages inside the window, got %d", len(got))
	}
	if got[0].ID != tomorrow.ID || got[1].ID != week.ID {
		t.Fatalf("packages should sort soonest expiry first")
	}
}

func TestCreditsForClassHonorsPlanFilter(t *testing.T) {
	led := testLedger()
	yogaClass := uuid.New()

	yogaOnly := testSnapshot(5, 0, 30)
	yogaOnly.ClassFilter = []uuid.UUID{yogaClass}
	anyClass := testSnapshot(3, 0, 30)
	otherOnly := testSnapshot(7, 0, 30)
	otherOnly.ClassFilter = []uuid.UUID{uuid.New()}

	snapshots := map[uuid.UUID]PlanSnapshot{}
	for _, plan := range []PlanSnapshot{yogaOnly, anyClass, otherOnly} {
		mustPurchase(t, led, plan, testNow)
		snapshots[plan.PlanID] = plan
	}
	lookup := func(planID uuid.UUID) (PlanSnapshot, bool) {
		plan, ok := snapshots[planID]
		return plan, ok
	}

	if got := led.CreditsForClass(yogaClass, lookup, testNow); got != 8 {
		t.Fatalf("expected 8 usable credits for the class, got %d", got)
	}
}

func TestCountersReconcileAcrossLifecycle(t *testing.T) {
	led := testLedger()
	mustPurchase(t, led, testSnapshot(10, 2, 30), testNow)
	mustPurchase(t, led, testSnapshot(5, 0, 1), testNow.Add(time.Minute))

	ref := "booking_77"
	if _, err := led.Deduct(13, &ref, testNow.Add(time.Hour)); err != nil {
		t.Fatalf("deduct failed: %v", err)
	}
	if _, err := led.Refund(2, &ref, nil, testNow.Add(2*time.Hour)); err != nil {
		t.Fatalf("refund failed: %v", err)
	}
	if _, err := led.ExpireSweep(testNow.Add(72 * time.Hour)); err != nil {
		t.Fatalf("sweep failed: %v", err)
	}

	sum := 0
	for _, pkg := range led.Packages {
		if pkg.Status == enums.PackageStatusActive {
			sum += pkg.CreditsRemaining
		}
	}
	if led.Record.AvailableCredits != sum {
		t.Fatalf("balance %d does not reconcile with packages %d", led.Record.AvailableCredits, sum)
	}
}

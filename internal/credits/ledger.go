package credits

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/velafit/velafit-backend/pkg/db/models"
	"github.com/velafit/velafit-backend/pkg/enums"
)

// Sentinel errors surfaced by aggregate operations. The service layer maps
// them onto API error codes.
var (
	ErrInvalidAmount       = errors.New("amount must be a positive number of credits")
	ErrInvalidPlanSnapshot = errors.New("invalid plan snapshot")
	ErrLedgerInactive      = errors.New("ledger is inactive")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrNothingToRefund     = errors.New("no package can absorb the refund")
	ErrInvariantViolated   = errors.New("ledger invariant violated")
)

// PlanLookup resolves the plan snapshot a package was purchased under.
// Used by class-eligibility checks; a false return skips the package.
type PlanLookup func(planID uuid.UUID) (PlanSnapshot, bool)

// Mutation is the durable diff produced by one aggregate operation. The
// repository persists it as a unit inside the caller's transaction.
type Mutation struct {
	Ledger          models.CreditLedger
	NewPackages     []models.CreditPackage
	UpdatedPackages []models.CreditPackage
	Transactions    []models.CreditTransaction
}

func (m Mutation) empty() bool {
	return len(m.NewPackages) == 0 && len(m.UpdatedPackages) == 0 && len(m.Transactions) == 0
}

// Ledger is the in-memory view of one (client, brand) credit ledger and its
// packages. Operations mutate the view and return the diff to persist; the
// ledger row itself holds the denormalized counters.
type Ledger struct {
	Record   models.CreditLedger
	Packages []models.CreditPackage
}

// Purchase adds a package priced from the given plan snapshot and credits the
// full amount immediately.
func (l *Ledger) Purchase(plan PlanSnapshot, paymentRef string, now time.Time) (Mutation, error) {
	if err := plan.validate(); err != nil {
		return Mutation{}, err
	}
	if l.Record.Status != enums.LedgerStatusActive {
		return Mutation{}, ErrLedgerInactive
	}

	total := plan.TotalCredits()
	pkg := models.CreditPackage{
		ID:               uuid.New(),
		LedgerID:         l.Record.ID,
		PlanID:           plan.PlanID,
		OriginalCredits:  total,
		CreditsRemaining: total,
		PurchasedAt:      now,
		ExpiresAt:        plan.ExpiryFrom(now),
		PaymentRef:       paymentRef,
		Status:           enums.PackageStatusActive,
	}
	l.Packages = append(l.Packages, pkg)
	l.Record.AvailableCredits += total
	l.Record.TotalEarned += total
	l.Record.LastActivityAt = now

	txn := models.CreditTransaction{
		ID:          uuid.New(),
		LedgerID:    l.Record.ID,
		Type:        enums.CreditTransactionTypePurchase,
		Amount:      total,
		Description: fmt.Sprintf("purchased %d credits (%s)", total, plan.Name),
		CreatedAt:   now,
	}
	if err := l.checkInvariants(); err != nil {
		return Mutation{}, err
	}

	return Mutation{
		Ledger:       l.Record,
		NewPackages:  []models.CreditPackage{pkg},
		Transactions: []models.CreditTransaction{txn},
	}, nil
}

// Deduct consumes credits across eligible packages oldest-first. A package is
// eligible when it is active, unexpired at the given time, and still holds
// credits. The whole deduction succeeds or nothing changes.
func (l *Ledger) Deduct(amount int, bookingRef *string, now time.Time) (Mutation, error) {
	if amount < 1 {
		return Mutation{}, ErrInvalidAmount
	}
	if l.Record.Status != enums.LedgerStatusActive {
		return Mutation{}, ErrLedgerInactive
	}

	eligible := l.consumableIndexes(now)
	available := 0
	for _, i := range eligible {
		available += l.Packages[i].CreditsRemaining
	}
	if available < amount {
		return Mutation{}, fmt.Errorf("%w: have %d, need %d", ErrInsufficientCredits, available, amount)
	}

	mut := Mutation{}
	remaining := amount
	for _, i := range eligible {
		if remaining == 0 {
			break
		}
		pkg := &l.Packages[i]
		take := pkg.CreditsRemaining
		if take > remaining {
			take = remaining
		}
		pkg.CreditsRemaining -= take
		if pkg.CreditsRemaining == 0 {
			pkg.Status = enums.PackageStatusConsumed
		}
		remaining -= take

		mut.UpdatedPackages = append(mut.UpdatedPackages, *pkg)
		mut.Transactions = append(mut.Transactions, models.CreditTransaction{
			ID:          uuid.New(),
			LedgerID:    l.Record.ID,
			PackageID:   &pkg.ID,
			Type:        enums.CreditTransactionTypeDeduction,
			Amount:      take,
			BookingRef:  bookingRef,
			Description: fmt.Sprintf("deducted %d credits", take),
			CreatedAt:   now,
		})
	}

	l.Record.AvailableCredits -= amount
	l.Record.TotalUsed += amount
	l.Record.LastActivityAt = now
	if err := l.checkInvariants(); err != nil {
		return Mutation{}, err
	}
	mut.Ledger = l.Record
	return mut, nil
}

// Refund restores credits to a single package. When targetPackageID is set
// and that package is still unexpired the refund lands there; otherwise it
// falls back to the most recently purchased unexpired package. The restored
// amount is capped at the target's headroom, so a refund never pushes a
// package past its original size.
func (l *Ledger) Refund(amount int, bookingRef *string, targetPackageID *uuid.UUID, now time.Time) (Mutation, error) {
	if amount < 1 {
		return Mutation{}, ErrInvalidAmount
	}
	if l.Record.Status != enums.LedgerStatusActive {
		return Mutation{}, ErrLedgerInactive
	}

	target := l.refundTarget(targetPackageID, now)
	if target == nil {
		return Mutation{}, ErrNothingToRefund
	}
	headroom := target.OriginalCredits - target.CreditsRemaining
	if headroom == 0 {
		return Mutation{}, fmt.Errorf("%w: package already at full balance", ErrNothingToRefund)
	}
	restored := amount
	if restored > headroom {
		restored = headroom
	}

	target.CreditsRemaining += restored
	if target.Status == enums.PackageStatusConsumed {
		target.Status = enums.PackageStatusActive
	}
	l.Record.AvailableCredits += restored
	l.Record.TotalUsed -= restored
	if l.Record.TotalUsed < 0 {
		l.Record.TotalUsed = 0
	}
	l.Record.LastActivityAt = now

	txn := models.CreditTransaction{
		ID:          uuid.New(),
		LedgerID:    l.Record.ID,
		PackageID:   &target.ID,
		Type:        enums.CreditTransactionTypeRefund,
		Amount:      restored,
		BookingRef:  bookingRef,
		Description: fmt.Sprintf("refunded %d credits", restored),
		CreatedAt:   now,
	}
	if err := l.checkInvariants(); err != nil {
		return Mutation{}, err
	}

	return Mutation{
		Ledger:          l.Record,
		UpdatedPackages: []models.CreditPackage{*target},
		Transactions:    []models.CreditTransaction{txn},
	}, nil
}

// ExpireSweep zeroes every active package whose expiry has passed and records
// one expiry transaction per package. Running it twice is a no-op the second
// time.
func (l *Ledger) ExpireSweep(now time.Time) (Mutation, error) {
	mut := Mutation{}
	for i := range l.Packages {
		pkg := &l.Packages[i]
		if pkg.Status != enums.PackageStatusActive || !pkg.Expired(now) {
			continue
		}
		forfeited := pkg.CreditsRemaining
		pkg.CreditsRemaining = 0
		pkg.Status = enums.PackageStatusExpired
		l.Record.AvailableCredits -= forfeited

		mut.UpdatedPackages = append(mut.UpdatedPackages, *pkg)
		mut.Transactions = append(mut.Transactions, models.CreditTransaction{
			ID:          uuid.New(),
			LedgerID:    l.Record.ID,
			PackageID:   &pkg.ID,
			Type:        enums.CreditTransactionTypeExpiry,
			Amount:      forfeited,
			Description: fmt.Sprintf("expired %d unused credits", forfeited),
			CreatedAt:   now,
		})
	}
	if mut.empty() {
		return mut, nil
	}
	if err := l.checkInvariants(); err != nil {
		return Mutation{}, err
	}
	mut.Ledger = l.Record
	return mut, nil
}

// ConsumableCredits is the number of credits a deduction could draw on right
// now, which may be lower than the stored balance when packages have lapsed
// but not yet been swept.
func (l *Ledger) ConsumableCredits(now time.Time) int {
	total := 0
	for _, i := range l.consumableIndexes(now) {
		total += l.Packages[i].CreditsRemaining
	}
	return total
}

// CreditsForClass sums the consumable credits whose plan covers the class.
func (l *Ledger) CreditsForClass(classID uuid.UUID, lookup PlanLookup, now time.Time) int {
	total := 0
	for _, i := range l.consumableIndexes(now) {
		plan, ok := lookup(l.Packages[i].PlanID)
		if !ok || !plan.IncludesClass(classID) {
			continue
		}
		total += l.Packages[i].CreditsRemaining
	}
	return total
}

// ExpiringWithin lists consumable packages whose expiry falls inside the next
// N days, soonest first.
func (l *Ledger) ExpiringWithin(days int, now time.Time) []models.CreditPackage {
	horizon := now.Add(time.Duration(days) * 24 * time.Hour)
	out := []models.CreditPackage{}
	for _, i := range l.consumableIndexes(now) {
		if l.Packages[i].ExpiresAt.After(horizon) {
			continue
		}
		out = append(out, l.Packages[i])
	}
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].ExpiresAt.Before(out[b].ExpiresAt)
	})
	return out
}

// consumableIndexes returns the positions of packages a deduction may draw
// from, ordered oldest purchase first. Ties keep load order, which the
// repository fixes as creation order.
func (l *Ledger) consumableIndexes(now time.Time) []int {
	idx := []int{}
	for i := range l.Packages {
		if l.Packages[i].Consumable(now) {
			idx = append(idx, i)
		}
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return l.Packages[idx[a]].PurchasedAt.Before(l.Packages[idx[b]].PurchasedAt)
	})
	return idx
}

func (l *Ledger) refundTarget(targetPackageID *uuid.UUID, now time.Time) *models.CreditPackage {
	if targetPackageID != nil {
		for i := range l.Packages {
			pkg := &l.Packages[i]
			if pkg.ID == *targetPackageID && pkg.Status != enums.PackageStatusExpired && !pkg.Expired(now) {
				return pkg
			}
		}
	}
	var latest *models.CreditPackage
	for i := range l.Packages {
		pkg := &l.Packages[i]
		if pkg.Status == enums.PackageStatusExpired || pkg.Expired(now) {
			continue
		}
		if latest == nil || pkg.PurchasedAt.After(latest.PurchasedAt) {
			latest = pkg
		}
	}
	return latest
}

// checkInvariants verifies the counters still reconcile with the packages
// before a mutation is allowed to persist.
func (l *Ledger) checkInvariants() error {
	sum := 0
	for i := range l.Packages {
		pkg := &l.Packages[i]
		if pkg.CreditsRemaining < 0 || pkg.CreditsRemaining > pkg.OriginalCredits {
			return fmt.Errorf("%w: package %s balance %d outside [0, %d]",
				ErrInvariantViolated, pkg.ID, pkg.CreditsRemaining, pkg.OriginalCredits)
		}
		if pkg.Status == enums.PackageStatusActive {
			sum += pkg.CreditsRemaining
		}
	}
	if l.Record.AvailableCredits != sum {
		return fmt.Errorf("%w: ledger balance %d but active packages hold %d",
			ErrInvariantViolated, l.Record.AvailableCredits, sum)
	}
	if l.Record.AvailableCredits < 0 || l.Record.TotalEarned < 0 || l.Record.TotalUsed < 0 {
		return fmt.Errorf("%w: negative counter", ErrInvariantViolated)
	}
	return nil
}

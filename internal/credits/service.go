package credits

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/velafit/velafit-backend/pkg/db"
	"github.com/velafit/velafit-backend/pkg/db/models"
	pkgerrors "github.com/velafit/velafit-backend/pkg/errors"
	"github.com/velafit/velafit-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// PlanReader resolves credit plans for purchase snapshots and eligibility
// checks. Implemented by the plans package.
type PlanReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.CreditPlan, error)
}

// Service exposes every operation the credit ledger supports. Mutations run
// inside one database transaction holding a row lock on the ledger; reads go
// straight to the store without locking.
type Service interface {
	Purchase(ctx context.Context, input PurchaseInput) (*PurchaseResult, error)
	Deduct(ctx context.Context, input DeductInput) (*DeductResult, error)
	Refund(ctx context.Context, input RefundInput) (*RefundResult, error)
	Balance(ctx context.Context, clientID, brandID uuid.UUID) (*models.CreditLedger, error)
	Eligibility(ctx context.Context, input EligibilityInput) (*EligibilityResult, error)
	ExpiringSoon(ctx context.Context, clientID, brandID uuid.UUID, days int) ([]models.CreditPackage, error)
	History(ctx context.Context, clientID, brandID uuid.UUID, page pagination.Page) ([]models.CreditTransaction, error)
	SweepLedger(ctx context.Context, clientID, brandID uuid.UUID) (*SweepResult, error)
	ListSweepCandidates(ctx context.Context, limit int) ([]LedgerKey, error)
}

type service struct {
	repo  Repository
	tx    txRunner
	plans PlanReader
	now   func() time.Time
}

// ServiceParams carries the dependencies a credits service requires.
type ServiceParams struct {
	Repo  Repository
	Tx    txRunner
	Plans PlanReader
	Now   func() time.Time
}

// NewService wires a credits service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("credits repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Plans == nil {
		return nil, fmt.Errorf("plan reader required")
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	return &service{
		repo:  params.Repo,
		tx:    params.Tx,
		plans: params.Plans,
		now:   params.Now,
	}, nil
}

// PurchaseInput identifies the buyer and the plan being bought.
type PurchaseInput struct {
	ClientID   uuid.UUID
	PlanID     uuid.UUID
	PaymentRef string
}

// PurchaseResult returns the package minted by the purchase alongside the
// ledger counters after the credit landed.
type PurchaseResult struct {
	Ledger      models.CreditLedger      `json:"ledger"`
	Package     models.CreditPackage     `json:"package"`
	Transaction models.CreditTransaction `json:"transaction"`
}

// DeductInput describes one booking-driven spend.
type DeductInput struct {
	ClientID   uuid.UUID
	BrandID    uuid.UUID
	Amount     int
	BookingRef *string
}

// DeductResult lists the per-package deduction records, oldest package first.
type DeductResult struct {
	Ledger       models.CreditLedger        `json:"ledger"`
	Transactions []models.CreditTransaction `json:"transactions"`
}

// RefundInput describes a booking-cancellation refund. BookingRef, when set,
// steers the refund back to the package the booking drew from.
type RefundInput struct {
	ClientID   uuid.UUID
	BrandID    uuid.UUID
	Amount     int
	BookingRef *string
}

// RefundResult reports the credits actually restored, which may be less than
// requested when the target package lacked headroom.
type RefundResult struct {
	Ledger      models.CreditLedger      `json:"ledger"`
	Restored    int                      `json:"restored"`
	Transaction models.CreditTransaction `json:"transaction"`
}

// EligibilityInput asks whether a client can pay for a class booking.
type EligibilityInput struct {
	ClientID uuid.UUID
	BrandID  uuid.UUID
	ClassID  uuid.UUID
	Amount   int
}

// EligibilityResult reports the decision plus the credits that counted
// toward it.
type EligibilityResult struct {
	Eligible         bool `json:"eligible"`
	UsableCredits    int  `json:"usable_credits"`
	RequestedCredits int  `json:"requested_credits"`
}

// SweepResult summarizes one ledger expiry sweep.
type SweepResult struct {
	PackagesExpired  int `json:"packages_expired"`
	CreditsForfeited int `json:"credits_forfeited"`
}

func (s *service) Purchase(ctx context.Context, input PurchaseInput) (*PurchaseResult, error) {
	if input.ClientID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "client id required")
	}
	if input.PlanID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "plan id required")
	}

	plan, err := s.plans.FindByID(ctx, input.PlanID)
	if err != nil {
		return nil, storeErr(err, "load plan")
	}
	if plan == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "credit plan not found")
	}
	if !plan.Purchasable() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "credit plan is no longer for sale")
	}
	snapshot := SnapshotFromPlan(*plan)

	var result PurchaseResult
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		led, err := repo.GetOrCreateForUpdate(ctx, input.ClientID, plan.BrandID)
		if err != nil {
			return storeErr(err, "lock ledger")
		}
		if led == nil {
			return pkgerrors.New(pkgerrors.CodeInternal, "ledger missing after upsert")
		}
		mut, err := led.Purchase(snapshot, input.PaymentRef, s.now())
		if err != nil {
			return domainErr(err)
		}
		if err := repo.Apply(ctx, mut); err != nil {
			return storeErr(err, "persist purchase")
		}
		result = PurchaseResult{
			Ledger:      mut.Ledger,
			Package:     mut.NewPackages[0],
			Transaction: mut.Transactions[0],
		}
		return nil
	})
	if err != nil {
		return nil, passThrough(err)
	}
	return &result, nil
}

func (s *service) Deduct(ctx context.Context, input DeductInput) (*DeductResult, error) {
	if err := requirePair(input.ClientID, input.BrandID); err != nil {
		return nil, err
	}
	if input.Amount < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be at least 1")
	}

	var result DeductResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		led, err := repo.FindForUpdate(ctx, input.ClientID, input.BrandID)
		if err != nil {
			return storeErr(err, "lock ledger")
		}
		if led == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "credit ledger not found")
		}

		// Settle lapsed packages first so the deduction only sees live
		// credits and the stored balance matches what is spendable.
		if err := s.sweepLocked(ctx, repo, led); err != nil {
			return err
		}
		mut, err := led.Deduct(input.Amount, input.BookingRef, s.now())
		if err != nil {
			return domainErr(err)
		}
		if err := repo.Apply(ctx, mut); err != nil {
			return storeErr(err, "persist deduction")
		}
		result = DeductResult{Ledger: mut.Ledger, Transactions: mut.Transactions}
		return nil
	})
	if err != nil {
		return nil, passThrough(err)
	}
	return &result, nil
}

func (s *service) Refund(ctx context.Context, input RefundInput) (*RefundResult, error) {
	if err := requirePair(input.ClientID, input.BrandID); err != nil {
		return nil, err
	}
	if input.Amount < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be at least 1")
	}

	var result RefundResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		led, err := repo.FindForUpdate(ctx, input.ClientID, input.BrandID)
		if err != nil {
			return storeErr(err, "lock ledger")
		}
		if led == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "credit ledger not found")
		}
		if err := s.sweepLocked(ctx, repo, led); err != nil {
			return err
		}

		var target *uuid.UUID
		if input.BookingRef != nil {
			deduction, err := repo.FindLatestDeduction(ctx, led.Record.ID, *input.BookingRef)
			if err != nil {
				return storeErr(err, "look up booking deduction")
			}
			if deduction != nil {
				target = deduction.PackageID
			}
		}

		mut, err := led.Refund(input.Amount, input.BookingRef, target, s.now())
		if err != nil {
			return domainErr(err)
		}
		if err := repo.Apply(ctx, mut); err != nil {
			return storeErr(err, "persist refund")
		}
		result = RefundResult{
			Ledger:      mut.Ledger,
			Restored:    mut.Transactions[0].Amount,
			Transaction: mut.Transactions[0],
		}
		return nil
	})
	if err != nil {
		return nil, passThrough(err)
	}
	return &result, nil
}

func (s *service) Balance(ctx context.Context, clientID, brandID uuid.UUID) (*models.CreditLedger, error) {
	if err := requirePair(clientID, brandID); err != nil {
		return nil, err
	}
	record, err := s.repo.FindRecord(ctx, clientID, brandID)
	if err != nil {
		return nil, storeErr(err, "load ledger")
	}
	if record == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "credit ledger not found")
	}
	return record, nil
}

// Eligibility answers without mutating: lapsed packages are simply ignored,
// so the decision matches what a deduction at the same moment would see.
func (s *service) Eligibility(ctx context.Context, input EligibilityInput) (*EligibilityResult, error) {
	if err := requirePair(input.ClientID, input.BrandID); err != nil {
		return nil, err
	}
	if input.ClassID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "class id required")
	}
	if input.Amount < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be at least 1")
	}

	led, err := s.repo.Find(ctx, input.ClientID, input.BrandID)
	if err != nil {
		return nil, storeErr(err, "load ledger")
	}
	if led == nil {
		return &EligibilityResult{Eligible: false, RequestedCredits: input.Amount}, nil
	}

	lookup, err := s.planLookup(ctx, led.Packages)
	if err != nil {
		return nil, err
	}
	usable := led.CreditsForClass(input.ClassID, lookup, s.now())
	return &EligibilityResult{
		Eligible:         usable >= input.Amount,
		UsableCredits:    usable,
		RequestedCredits: input.Amount,
	}, nil
}

func (s *service) ExpiringSoon(ctx context.Context, clientID, brandID uuid.UUID, days int) ([]models.CreditPackage, error) {
	if err := requirePair(clientID, brandID); err != nil {
		return nil, err
	}
	if days < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "days must be at least 1")
	}
	led, err := s.repo.Find(ctx, clientID, brandID)
	if err != nil {
		return nil, storeErr(err, "load ledger")
	}
	if led == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "credit ledger not found")
	}
	return led.ExpiringWithin(days, s.now()), nil
}

func (s *service) History(ctx context.Context, clientID, brandID uuid.UUID, page pagination.Page) ([]models.CreditTransaction, error) {
	if err := requirePair(clientID, brandID); err != nil {
		return nil, err
	}
	record, err := s.repo.FindRecord(ctx, clientID, brandID)
	if err != nil {
		return nil, storeErr(err, "load ledger")
	}
	if record == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "credit ledger not found")
	}
	txns, err := s.repo.ListTransactions(ctx, record.ID, page)
	if err != nil {
		return nil, storeErr(err, "list transactions")
	}
	return txns, nil
}

// SweepLedger expires lapsed packages for one ledger. Safe to call on a
// ledger with nothing to expire; the result reports zero.
func (s *service) SweepLedger(ctx context.Context, clientID, brandID uuid.UUID) (*SweepResult, error) {
	if err := requirePair(clientID, brandID); err != nil {
		return nil, err
	}
	var result SweepResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		led, err := repo.FindForUpdate(ctx, clientID, brandID)
		if err != nil {
			return storeErr(err, "lock ledger")
		}
		if led == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "credit ledger not found")
		}
		mut, err := led.ExpireSweep(s.now())
		if err != nil {
			return domainErr(err)
		}
		if mut.empty() {
			return nil
		}
		if err := repo.Apply(ctx, mut); err != nil {
			return storeErr(err, "persist sweep")
		}
		result.PackagesExpired = len(mut.UpdatedPackages)
		for _, txn := range mut.Transactions {
			result.CreditsForfeited += txn.Amount
		}
		return nil
	})
	if err != nil {
		return nil, passThrough(err)
	}
	return &result, nil
}

func (s *service) ListSweepCandidates(ctx context.Context, limit int) ([]LedgerKey, error) {
	if limit < 1 {
		limit = 100
	}
	keys, err := s.repo.ListLedgersWithLapsedPackages(ctx, s.now(), limit)
	if err != nil {
		return nil, storeErr(err, "list sweep candidates")
	}
	return keys, nil
}

// sweepLocked runs an expiry sweep against an already-locked ledger inside
// the caller's transaction.
func (s *service) sweepLocked(ctx context.Context, repo Repository, led *Ledger) error {
	mut, err := led.ExpireSweep(s.now())
	if err != nil {
		return domainErr(err)
	}
	if mut.empty() {
		return nil
	}
	if err := repo.Apply(ctx, mut); err != nil {
		return storeErr(err, "persist sweep")
	}
	return nil
}

// planLookup loads the distinct plans behind a ledger's packages and returns
// a snapshot resolver over them.
func (s *service) planLookup(ctx context.Context, packages []models.CreditPackage) (PlanLookup, error) {
	snapshots := map[uuid.UUID]PlanSnapshot{}
	for _, pkg := range packages {
		if _, ok := snapshots[pkg.PlanID]; ok {
			continue
		}
		plan, err := s.plans.FindByID(ctx, pkg.PlanID)
		if err != nil {
			return nil, storeErr(err, "load plan")
		}
		if plan == nil {
			continue
		}
		snapshots[pkg.PlanID] = SnapshotFromPlan(*plan)
	}
	return func(planID uuid.UUID) (PlanSnapshot, bool) {
		snapshot, ok := snapshots[planID]
		return snapshot, ok
	}, nil
}

func requirePair(clientID, brandID uuid.UUID) error {
	if clientID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "client id required")
	}
	if brandID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "brand id required")
	}
	return nil
}

// domainErr maps aggregate sentinels onto API error codes.
func domainErr(err error) error {
	switch {
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrInvalidPlanSnapshot):
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error())
	case errors.Is(err, ErrInsufficientCredits):
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, err.Error())
	case errors.Is(err, ErrLedgerInactive), errors.Is(err, ErrNothingToRefund):
		return pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, err.Error())
	default:
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "ledger operation failed")
	}
}

// storeErr classifies database failures: serialization aborts and lock
// timeouts surface as retryable, everything else is internal.
func storeErr(err error, action string) error {
	if db.IsRetryableTxError(err) {
		return pkgerrors.Wrap(pkgerrors.CodeTransient, err, "ledger busy, retry the request")
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, action+" failed")
}

// passThrough keeps already-coded errors intact and classifies anything the
// transaction wrapper itself produced, like a commit-time serialization
// failure.
func passThrough(err error) error {
	if coded := pkgerrors.As(err); coded != nil {
		return coded
	}
	return storeErr(err, "ledger transaction")
}

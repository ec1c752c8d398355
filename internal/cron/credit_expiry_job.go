package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"go.uber.org/multierr"

	"github.com/velafit/velafit-backend/internal/credits"
	pkgerrors "github.com/velafit/velafit-backend/pkg/errors"
	"github.com/velafit/velafit-backend/pkg/logger"
)

const (
	defaultLedgerBatch  = 500
	defaultSweepRetries = 3
	defaultSweepBackoff = 100 * time.Millisecond
)

// creditSweeper is the slice of the credits service the expiry job needs.
type creditSweeper interface {
	ListSweepCandidates(ctx context.Context, limit int) ([]credits.LedgerKey, error)
	SweepLedger(ctx context.Context, clientID, brandID uuid.UUID) (*credits.SweepResult, error)
}

// CreditExpiryJobParams configure the nightly credit expiry sweep.
type CreditExpiryJobParams struct {
	Logger      *logger.Logger
	Credits     creditSweeper
	LedgerBatch int
	Retries     uint64
	Backoff     time.Duration
}

// NewCreditExpiryJob builds the cron job that forfeits credits in packages
// whose validity window has passed.
func NewCreditExpiryJob(params CreditExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Credits == nil {
		return nil, fmt.Errorf("credits service required")
	}
	if params.LedgerBatch <= 0 {
		params.LedgerBatch = defaultLedgerBatch
	}
	if params.Retries == 0 {
		params.Retries = defaultSweepRetries
	}
	if params.Backoff <= 0 {
		params.Backoff = defaultSweepBackoff
	}
	return &creditExpiryJob{
		logg:    params.Logger,
		credits: params.Credits,
		batch:   params.LedgerBatch,
		retries: params.Retries,
		backoff: params.Backoff,
	}, nil
}

type creditExpiryJob struct {
	logg    *logger.Logger
	credits creditSweeper
	batch   int
	retries uint64
	backoff time.Duration
}

func (j *creditExpiryJob) Name() string { return "credit-expiry" }

// Run sweeps every ledger still holding lapsed packages. Each ledger is its
// own transaction, so one busy ledger never blocks the rest of the batch;
// failures are collected and the candidates show up again next cycle.
func (j *creditExpiryJob) Run(ctx context.Context) error {
	keys, err := j.credits.ListSweepCandidates(ctx, j.batch)
	if err != nil {
		return fmt.Errorf("list sweep candidates: %w", err)
	}
	if len(keys) == 0 {
		j.logg.Info(ctx, "no ledgers with lapsed packages")
		return nil
	}

	var errs []error
	swept, forfeited := 0, 0
	for _, key := range keys {
		result, err := j.sweepOne(ctx, key)
		if err != nil {
			errs = append(errs, fmt.Errorf("ledger %s: %w", key.LedgerID, err))
			continue
		}
		swept += result.PackagesExpired
		forfeited += result.CreditsForfeited
	}

	doneCtx := j.logg.WithFields(ctx, map[string]any{
		"ledgers":           len(keys),
		"packages_expired":  swept,
		"credits_forfeited": forfeited,
		"failures":          len(errs),
	})
	j.logg.Info(doneCtx, "credit expiry sweep finished")
	return multierr.Combine(errs...)
}

// sweepOne retries lock-contention and serialization aborts with a constant
// backoff; anything else fails the ledger immediately.
func (j *creditExpiryJob) sweepOne(ctx context.Context, key credits.LedgerKey) (*credits.SweepResult, error) {
	var result *credits.SweepResult
	backoff := retry.WithMaxRetries(j.retries, retry.NewConstant(j.backoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		swept, err := j.credits.SweepLedger(ctx, key.ClientID, key.BrandID)
		if err != nil {
			if pkgerrors.HasCode(err, pkgerrors.CodeTransient) {
				return retry.RetryableError(err)
			}
			return err
		}
		result = swept
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

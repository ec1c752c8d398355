package credits

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/velafit/velafit-backend/api/middleware"
	"github.com/velafit/velafit-backend/api/responses"
	"github.com/velafit/velafit-backend/api/validators"
	creditssvc "github.com/velafit/velafit-backend/internal/credits"
	"github.com/velafit/velafit-backend/pkg/db/models"
	"github.com/velafit/velafit-backend/pkg/enums"
	"github.com/velafit/velafit-backend/pkg/logger"
	"github.com/velafit/velafit-backend/pkg/pagination"
)

type purchaseRequest struct {
	PlanID     string `json:"plan_id" validate:"required,uuid"`
	PaymentRef string `json:"payment_ref" validate:"omitempty,max=120"`
}

type deductRequest struct {
	BrandID    string  `json:"brand_id" validate:"required,uuid"`
	Amount     int     `json:"amount" validate:"required,gte=1"`
	BookingRef *string `json:"booking_ref" validate:"omitempty,min=1,max=120"`
}

type refundRequest struct {
	BrandID    string  `json:"brand_id" validate:"required,uuid"`
	Amount     int     `json:"amount" validate:"required,gte=1"`
	BookingRef *string `json:"booking_ref" validate:"omitempty,min=1,max=120"`
}

type balanceResponse struct {
	BrandID          uuid.UUID          `json:"brand_id"`
	AvailableCredits int                `json:"available_credits"`
	TotalEarned      int                `json:"total_earned"`
	TotalUsed        int                `json:"total_used"`
	Status           enums.LedgerStatus `json:"status"`
	LastActivityAt   *time.Time         `json:"last_activity_at,omitempty"`
}

type packageResponse struct {
	ID               uuid.UUID           `json:"id"`
	PlanID           uuid.UUID           `json:"plan_id"`
	OriginalCredits  int                 `json:"original_credits"`
	CreditsRemaining int                 `json:"credits_remaining"`
	PurchasedAt      time.Time           `json:"purchased_at"`
	ExpiresAt        time.Time           `json:"expires_at"`
	Status           enums.PackageStatus `json:"status"`
}

type transactionResponse struct {
	ID          uuid.UUID                   `json:"id"`
	Type        enums.CreditTransactionType `json:"type"`
	Amount      int                         `json:"amount"`
	PackageID   *uuid.UUID                  `json:"package_id,omitempty"`
	BookingRef  *string                     `json:"booking_ref,omitempty"`
	Description string                      `json:"description"`
	CreatedAt   time.Time                   `json:"created_at"`
}

type purchaseResponse struct {
	Balance     balanceResponse     `json:"balance"`
	Package     packageResponse     `json:"package"`
	Transaction transactionResponse `json:"transaction"`
}

type deductResponse struct {
	Balance      balanceResponse       `json:"balance"`
	Transactions []transactionResponse `json:"transactions"`
}

type refundResponse struct {
	Balance     balanceResponse     `json:"balance"`
	Restored    int                 `json:"restored"`
	Transaction transactionResponse `json:"transaction"`
}

func CreditsPurchase(svc creditssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var body purchaseRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		planID, err := validators.ParsePathUUID("plan_id", body.PlanID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		result, err := svc.Purchase(ctx, creditssvc.PurchaseInput{
			ClientID:   middleware.ClientIDFromContext(ctx),
			PlanID:     planID,
			PaymentRef: body.PaymentRef,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, purchaseResponse{
			Balance:     toBalanceResponse(result.Ledger),
			Package:     toPackageResponse(result.Package),
			Transaction: toTransactionResponse(result.Transaction),
		})
	}
}

func CreditsDeduct(svc creditssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var body deductRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		brandID, err := validators.ParsePathUUID("brand_id", body.BrandID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		result, err := svc.Deduct(ctx, creditssvc.DeductInput{
			ClientID:   middleware.ClientIDFromContext(ctx),
			BrandID:    brandID,
			Amount:     body.Amount,
			BookingRef: body.BookingRef,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, deductResponse{
			Balance:      toBalanceResponse(result.Ledger),
			Transactions: toTransactionResponses(result.Transactions),
		})
	}
}

func CreditsRefund(svc creditssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var body refundRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		brandID, err := validators.ParsePathUUID("brand_id", body.BrandID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		result, err := svc.Refund(ctx, creditssvc.RefundInput{
			ClientID:   middleware.ClientIDFromContext(ctx),
			BrandID:    brandID,
			Amount:     body.Amount,
			BookingRef: body.BookingRef,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, refundResponse{
			Balance:     toBalanceResponse(result.Ledger),
			Restored:    result.Restored,
			Transaction: toTransactionResponse(result.Transaction),
		})
	}
}

func CreditsBalance(svc creditssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		record, err := svc.Balance(ctx, middleware.ClientIDFromContext(ctx), middleware.BrandIDFromContext(ctx))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, toBalanceResponse(*record))
	}
}

func CreditsEligibility(svc creditssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		classID, err := validators.ParseQueryUUID(r, "class_id")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		amount, err := validators.ParseQueryInt(r, "amount", 1, 1, 1000)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		result, err := svc.Eligibility(ctx, creditssvc.EligibilityInput{
			ClientID: middleware.ClientIDFromContext(ctx),
			BrandID:  middleware.BrandIDFromContext(ctx),
			ClassID:  classID,
			Amount:   amount,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func CreditsExpiring(svc creditssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		days, err := validators.ParseQueryInt(r, "days", 7, 1, 365)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		packages, err := svc.ExpiringSoon(ctx, middleware.ClientIDFromContext(ctx), middleware.BrandIDFromContext(ctx), days)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		out := make([]packageResponse, 0, len(packages))
		for _, pkg := range packages {
			out = append(out, toPackageResponse(pkg))
		}
		responses.WriteSuccess(w, map[string]any{"packages": out, "days": days})
	}
}

func CreditsHistory(svc creditssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		offset, err := validators.ParseQueryInt(r, "offset", 0, 0, 1<<30)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		txns, err := svc.History(ctx, middleware.ClientIDFromContext(ctx), middleware.BrandIDFromContext(ctx),
			pagination.Page{Limit: limit, Offset: offset})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"transactions": toTransactionResponses(txns),
			"limit":        limit,
			"offset":       offset,
		})
	}
}

func toBalanceResponse(record models.CreditLedger) balanceResponse {
	resp := balanceResponse{
		BrandID:          record.BrandID,
		AvailableCredits: record.AvailableCredits,
		TotalEarned:      record.TotalEarned,
		TotalUsed:        record.TotalUsed,
		Status:           record.Status,
	}
	if !record.LastActivityAt.IsZero() {
		at := record.LastActivityAt
		resp.LastActivityAt = &at
	}
	return resp
}

func toPackageResponse(pkg models.CreditPackage) packageResponse {
	return packageResponse{
		ID:               pkg.ID,
		PlanID:           pkg.PlanID,
		OriginalCredits:  pkg.OriginalCredits,
		CreditsRemaining: pkg.CreditsRemaining,
		PurchasedAt:      pkg.PurchasedAt,
		ExpiresAt:        pkg.ExpiresAt,
		Status:           pkg.Status,
	}
}

func toTransactionResponse(txn models.CreditTransaction) transactionResponse {
	return transactionResponse{
		ID:          txn.ID,
		Type:        txn.Type,
		Amount:      txn.Amount,
		PackageID:   txn.PackageID,
		BookingRef:  txn.BookingRef,
		Description: txn.Description,
		CreatedAt:   txn.CreatedAt,
	}
}

func toTransactionResponses(txns []models.CreditTransaction) []transactionResponse {
	out := make([]transactionResponse, 0, len(txns))
	for _, txn := range txns {
		out = append(out, toTransactionResponse(txn))
	}
	return out
}

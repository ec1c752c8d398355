package credits

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/velafit/velafit-backend/api/middleware"
	"github.com/velafit/velafit-backend/api/responses"
	"github.com/velafit/velafit-backend/api/validators"
	planssvc "github.com/velafit/velafit-backend/internal/plans"
	"github.com/velafit/velafit-backend/pkg/logger"
)

type planUpsertRequest struct {
	Name         string   `json:"name" validate:"required,min=1,max=120"`
	PriceCents   *int64   `json:"price_cents" validate:"omitempty,gte=0"`
	BaseCredits  *int     `json:"base_credits" validate:"omitempty,gte=1"`
	BonusCredits *int     `json:"bonus_credits" validate:"omitempty,gte=0"`
	ValidityDays *int     `json:"validity_days" validate:"omitempty,gte=1"`
	ClassFilter  []string `json:"class_filter" validate:"omitempty,dive,uuid"`
}

type planPatchRequest struct {
	Name         *string  `json:"name" validate:"omitempty,min=1,max=120"`
	PriceCents   *int64   `json:"price_cents" validate:"omitempty,gte=0"`
	BaseCredits  *int     `json:"base_credits" validate:"omitempty,gte=1"`
	BonusCredits *int     `json:"bonus_credits" validate:"omitempty,gte=0"`
	ValidityDays *int     `json:"validity_days" validate:"omitempty,gte=1"`
	ClassFilter  []string `json:"class_filter" validate:"omitempty,dive,uuid"`
}

type planListResponse struct {
	Plans []planssvc.PlanDTO `json:"plans"`
}

func BrandPlanCreate(svc planssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var body planUpsertRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		filter, err := parseClassFilter(body.ClassFilter)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		input := planssvc.CreatePlanInput{
			BrandID:     middleware.BrandIDFromContext(ctx),
			Name:        body.Name,
			ClassFilter: filter,
		}
		if body.PriceCents != nil {
			input.PriceCents = *body.PriceCents
		}
		if body.BaseCredits != nil {
			input.BaseCredits = *body.BaseCredits
		}
		if body.BonusCredits != nil {
			input.BonusCredits = *body.BonusCredits
		}
		if body.ValidityDays != nil {
			input.ValidityDays = *body.ValidityDays
		}

		plan, err := svc.Create(ctx, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, planssvc.ToDTO(plan))
	}
}

func BrandPlansList(svc planssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		includeRetired := validators.ParseQueryBool(r, "include_retired")

		plans, err := svc.List(ctx, middleware.BrandIDFromContext(ctx), includeRetired)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, planListResponse{Plans: planssvc.ToDTOs(plans)})
	}
}

func BrandPlanGet(svc planssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		planID, err := validators.ParsePathUUID("planID", chi.URLParam(r, "planID"))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		plan, err := svc.Get(ctx, middleware.BrandIDFromContext(ctx), planID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, planssvc.ToDTO(plan))
	}
}

func BrandPlanUpdate(svc planssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		planID, err := validators.ParsePathUUID("planID", chi.URLParam(r, "planID"))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var body planPatchRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		filter, err := parseClassFilter(body.ClassFilter)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		plan, err := svc.Update(ctx, planssvc.UpdatePlanInput{
			BrandID:      middleware.BrandIDFromContext(ctx),
			PlanID:       planID,
			Name:         body.Name,
			PriceCents:   body.PriceCents,
			BaseCredits:  body.BaseCredits,
			BonusCredits: body.BonusCredits,
			ValidityDays: body.ValidityDays,
			ClassFilter:  filter,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, planssvc.ToDTO(plan))
	}
}

func BrandPlanRetire(svc planssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		planID, err := validators.ParsePathUUID("planID", chi.URLParam(r, "planID"))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		plan, err := svc.Retire(ctx, middleware.BrandIDFromContext(ctx), planID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, planssvc.ToDTO(plan))
	}
}

func parseClassFilter(raw []string) ([]uuid.UUID, error) {
	if raw == nil {
		return nil, nil
	}
	filter := make([]uuid.UUID, 0, len(raw))
	for _, entry := range raw {
		id, err := validators.ParsePathUUID("class_filter", entry)
		if err != nil {
			return nil, err
		}
		filter = append(filter, id)
	}
	return filter, nil
}

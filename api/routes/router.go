package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/velafit/velafit-backend/api/controllers"
	creditcontrollers "github.com/velafit/velafit-backend/api/controllers/credits"
	"github.com/velafit/velafit-backend/api/middleware"
	creditssvc "github.com/velafit/velafit-backend/internal/credits"
	planssvc "github.com/velafit/velafit-backend/internal/plans"
	"github.com/velafit/velafit-backend/pkg/config"
	"github.com/velafit/velafit-backend/pkg/db"
	"github.com/velafit/velafit-backend/pkg/logger"
	"github.com/velafit/velafit-backend/pkg/redis"
)

// RouterParams carry everything the HTTP surface depends on.
type RouterParams struct {
	Config  *config.Config
	Logger  *logger.Logger
	DB      db.Pinger
	Redis   *redis.Client
	Plans   planssvc.Service
	Credits creditssvc.Service
}

// NewRouter assembles the API: brand-side plan management and client-side
// credit operations behind the X-Client-Id identity header.
func NewRouter(params RouterParams) http.Handler {
	cfg := params.Config
	logg := params.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, params.DB, params.Redis))
	})

	r.Route("/api/v1/brands/{brandID}/plans", func(r chi.Router) {
		r.Use(middleware.BrandScope(logg))
		r.Post("/", creditcontrollers.BrandPlanCreate(params.Plans, logg))
		r.Get("/", creditcontrollers.BrandPlansList(params.Plans, logg))
		r.Get("/{planID}", creditcontrollers.BrandPlanGet(params.Plans, logg))
		r.Patch("/{planID}", creditcontrollers.BrandPlanUpdate(params.Plans, logg))
		r.Delete("/{planID}", creditcontrollers.BrandPlanRetire(params.Plans, logg))
	})

	r.Route("/api/v1/credits", func(r chi.Router) {
		r.Use(middleware.RequireClient(logg))
		r.Use(middleware.Idempotency(params.Redis, logg))
		r.Post("/purchase", creditcontrollers.CreditsPurchase(params.Credits, logg))
		r.Post("/deduct", creditcontrollers.CreditsDeduct(params.Credits, logg))
		r.Post("/refund", creditcontrollers.CreditsRefund(params.Credits, logg))

		r.Route("/{brandID}", func(r chi.Router) {
			r.Use(middleware.BrandScope(logg))
			r.Get("/balance", creditcontrollers.CreditsBalance(params.Credits, logg))
			r.Get("/eligibility", creditcontrollers.CreditsEligibility(params.Credits, logg))
			r.Get("/expiring", creditcontrollers.CreditsExpiring(params.Credits, logg))
			r.Get("/history", creditcontrollers.CreditsHistory(params.Credits, logg))
		})
	})

	return r
}

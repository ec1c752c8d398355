package controllers

import (
	"context"
	"net/http"

	"github.com/velafit/velafit-backend/api/responses"
	"github.com/velafit/velafit-backend/pkg/config"
	pkgerrors "github.com/velafit/velafit-backend/pkg/errors"
	"github.com/velafit/velafit-backend/pkg/logger"
)

const envHeader = "X-Velafit-Env"

type pinger interface {
	Ping(context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports ready only when every backing store answers a ping.
func HealthReady(cfg *config.Config, logg *logger.Logger, db, redis pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)

		checks := map[string]pinger{
			"postgres": db,
			"redis":    redis,
		}
		for name, dep := range checks {
			if dep == nil {
				continue
			}
			if err := dep.Ping(r.Context()); err != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.Wrap(pkgerrors.CodeDependency, err, "dependency unavailable").
						WithDetails(map[string]string{"dependency": name}))
				return
			}
		}
		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}

package middleware

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/velafit/velafit-backend/api/responses"
	pkgerrors "github.com/velafit/velafit-backend/pkg/errors"
	"github.com/velafit/velafit-backend/pkg/logger"
)

const clientIDHeader = "X-Client-Id"

// RequireClient resolves the calling client from the X-Client-Id header the
// booking gateway sets after authentication, and rejects requests without
// one. The id also lands on the request logger.
func RequireClient(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get(clientIDHeader))
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "client identity missing"))
				return
			}
			clientID, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "client id must be a uuid"))
				return
			}

			ctx := WithClientID(r.Context(), clientID)
			if logg != nil {
				ctx = logg.WithClientID(ctx, clientID.String())
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BrandScope parses the {brandID} route parameter into the context so
// handlers below the route group share one brand resolution.
func BrandScope(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := chi.URLParam(r, "brandID")
			brandID, err := uuid.Parse(strings.TrimSpace(raw))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "brand id must be a uuid"))
				return
			}

			ctx := WithBrandID(r.Context(), brandID)
			if logg != nil {
				ctx = logg.WithBrandID(ctx, brandID.String())
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

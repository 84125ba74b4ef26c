package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/lucasmartins-br/fitgate/internal/http/response"
	"github.com/lucasmartins-br/fitgate/internal/lib/sl"
)

// Gate answers the entitlement question for a user.
type Gate interface {
	IsEntitled(ctx context.Context, userUID string) (bool, error)
}

// EntitlementMiddleware blocks gated content routes for users without an
// active subscription. A gate failure is treated as not entitled; the
// caller is redirected by the UI layer, this middleware only answers.
func EntitlementMiddleware(gate Gate, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.EntitlementMiddleware"

			userUID, ok := r.Context().Value(UserUID).(string)
			if !ok || userUID == "" {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("user identification missing"))
				return
			}

			entitled, err := gate.IsEntitled(r.Context(), userUID)
			if err != nil {
				log.Error("entitlement check failed",
					slog.String("op", op), slog.String("user_uid", userUID), sl.Err(err))
				render.Status(r, http.StatusForbidden)
				render.JSON(w, r, response.Error("subscription required"))
				return
			}
			if !entitled {
				render.Status(r, http.StatusForbidden)
				render.JSON(w, r, response.Error("subscription required"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Package profiles resolves the calling user. Authentication happens upstream;
// the X-User-ID header is trusted as-is.
package profiles

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"

	"github.com/bakehouse/ordering/internal/domain"
)

const HeaderUserID = "X-User-ID"

type Finder interface {
	GetByID(ctx context.Context, id string) (*domain.Profile, error)
}

type ctxKey struct{}

func NewContext(ctx context.Context, p domain.Profile) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

func FromContext(ctx context.Context) (domain.Profile, bool) {
	p, ok := ctx.Value(ctxKey{}).(domain.Profile)
	return p, ok
}

// Resolve loads the caller's profile into the request context.
func Resolve(finder Finder, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := r.Header.Get(HeaderUserID)
			if userID == "" {
				writeError(w, http.StatusUnauthorized, "missing user")
				return
			}

			profile, err := finder.GetByID(r.Context(), userID)
			if err != nil {
				logger.Error("failed to resolve profile", "error", err, "user_id", userID)
				writeError(w, http.StatusInternalServerError, "internal server error")
				return
			}
			if profile == nil {
				writeError(w, http.StatusUnauthorized, "unknown user")
				return
			}

			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), *profile)))
		})
	}
}

// RequireRole rejects callers whose role is not listed. It must run after Resolve.
func RequireRole(roles ...domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := FromContext(r.Context())
			if !ok || !slices.Contains(roles, p.Role) {
				writeError(w, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

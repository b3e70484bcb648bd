package auth

import (
	"context"
	"dwilive/domain"
	"dwilive/errors"
	"encoding/json"
	"log/slog"
	"net/http"
)

type contextKey string

const UserKey contextKey = "user"

// Middleware authenticates REST calls with the same resolver as the socket
// handshake and injects the user into the request context.
func Middleware(resolver *IdentityResolver, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := resolver.Resolve(r.Context(), r)
			if err != nil {
				status := errors.HTTPStatus(err)
				if status == http.StatusInternalServerError {
					log.Error("Identity resolution failed", "error", err)
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(status)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": errors.AckMessage(err)})
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

func WithUser(ctx context.Context, user domain.User) context.Context {
	return context.WithValue(ctx, UserKey, user)
}

func UserFromContext(ctx context.Context) (domain.User, bool) {
	user, ok := ctx.Value(UserKey).(domain.User)
	return user, ok
}

package middleware

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/imageupload/service/internal/auth"
	"github.com/imageupload/service/internal/response"
)

// contextKey is an unexported type for context keys in this package.
type contextKey string

// UserIDKey is the context key for the authenticated user's subject claim.
const UserIDKey contextKey = "userID"

// RequireAuth returns middleware that verifies the Bearer token with verifier
// and injects the caller's subject into the request context.
func RequireAuth(verifier auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				response.Unauthorized(w, "Not authenticated")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
				response.Unauthorized(w, "Invalid authorization header format")
				return
			}

			claims, err := verifier.Verify(r.Context(), strings.TrimSpace(parts[1]))
			if err != nil {
				log.Printf("auth: rejected token request_id=%s: %v", chiMiddleware.GetReqID(r.Context()), err)
				if errors.Is(err, auth.ErrKeyNotFound) {
					response.Unauthorized(w, "Unable to find appropriate key")
					return
				}
				response.Unauthorized(w, "Invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserID returns the authenticated subject stored by RequireAuth.
func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(UserIDKey).(string)
	return id, ok && id != ""
}


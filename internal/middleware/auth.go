package middleware

import (
	"context"
	"net/http"
	"strings"
)

type userContextKey struct{}

// UserKey stores the authenticated owner id in the request context.
var UserKey = userContextKey{}

// TokenVerifier turns an opaque bearer token into an owner id. The actual
// OAuth flow lives outside this service; handlers only consume the result.
type TokenVerifier func(token string) (ownerID string, err error)

// Auth rejects requests without a verifiable bearer token and stores the
// owner id in the context for handlers.
func Auth(verify TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
			if token == "" || verify == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			ownerID, err := verify(token)
			if err != nil || ownerID == "" {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), UserKey, ownerID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserIDFromContext returns the authenticated owner id, if any.
func UserIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(UserKey).(string); ok {
		return v
	}
	return ""
}

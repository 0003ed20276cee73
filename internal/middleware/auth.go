package middleware

import (
	"context"
	"net/http"
	"strings"

	"school-inventory-api/internal/model"
	"school-inventory-api/internal/service"
	"school-inventory-api/pkg/apierror"
)

// IdentityKey is the key for storing the caller identity in request context.
const IdentityKey contextKey = "identity"

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	TokenService *service.TokenService
}

// NewAuthMiddleware creates an authentication middleware with injected
// dependencies. Every request through it must carry a valid session token
// in X-Token or as an Authorization bearer token; the resolved identity is
// placed in the request context for handlers and the policy gate.
func NewAuthMiddleware(cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.TokenService == nil {
				writeError(w, apierror.ServiceUnavailable("authentication backend unavailable"))
				return
			}

			token := r.Header.Get("X-Token")
			if token == "" {
				auth := r.Header.Get("Authorization")
				if strings.HasPrefix(auth, "Bearer ") {
					token = strings.TrimPrefix(auth, "Bearer ")
				}
			}
			if token == "" {
				writeError(w, apierror.Unauthorized("Authentication required. Use X-Token or Authorization header."))
				return
			}

			identity, err := cfg.TokenService.ValidateToken(r.Context(), token)
			if err != nil {
				writeError(w, apierror.Unauthorized("Invalid or expired session"))
				return
			}

			ctx := context.WithValue(r.Context(), IdentityKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRoles returns a middleware rejecting callers whose role is not in
// the allowed set. It is a coarse route-level filter; the lifecycle engine
// still enforces the full policy table on every transition.
func RequireRoles(roles ...model.Role) func(http.Handler) http.Handler {
	allowed := make(map[model.Role]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := GetIdentity(r.Context())
			if identity == nil {
				writeError(w, apierror.Unauthorized(""))
				return
			}
			if !allowed[identity.Role] {
				writeError(w, apierror.Forbidden(""))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// writeError writes an API error response.
func writeError(w http.ResponseWriter, err *apierror.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.StatusCode)
	w.Write(err.ToJSON())
}

// GetIdentity retrieves the caller identity from request context.
func GetIdentity(ctx context.Context) *model.Identity {
	if identity, ok := ctx.Value(IdentityKey).(*model.Identity); ok {
		return identity
	}
	return nil
}

// WithIdentity returns a context carrying the given identity. Used by
// handler tests to inject a caller without the full auth stack.
func WithIdentity(ctx context.Context, identity *model.Identity) context.Context {
	return context.WithValue(ctx, IdentityKey, identity)
}

package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/example/ec-checkout/internal/auth"
	"github.com/example/ec-checkout/internal/domain/checkout"
)

// respondError writes a JSON error response
func respondError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// ExtractToken extracts JWT token from cookie or Authorization header
func ExtractToken(r *http.Request) string {
	// Try cookie first (for browser)
	if cookie, err := r.Cookie("access_token"); err == nil {
		return cookie.Value
	}
	// Fall back to Authorization header (for API clients)
	if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}

// TokenVerifier is satisfied by *auth.TokenService
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

type contextKey string

const (
	PrincipalContextKey contextKey = "principal"
)

// AuthMiddleware validates the shopper token and adds the principal to context.
// The raw token is kept on the principal so it can be forwarded to the backend.
func AuthMiddleware(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := ExtractToken(r)
			if tokenString == "" {
				respondError(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := verifier.Verify(tokenString)
			if err != nil {
				respondError(w, "invalid token", http.StatusUnauthorized)
				return
			}

			ctx := WithPrincipal(r.Context(), principalFromClaims(claims, tokenString))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func principalFromClaims(c *auth.Claims, token string) checkout.Principal {
	return checkout.Principal{
		Subject:    c.Subject,
		UserID:     c.UserID,
		ExternalID: c.ExternalID,
		Email:      c.Email,
		Name:       c.Name,
		Phone:      c.Phone,
		Token:      token,
	}
}

// WithPrincipal returns a copy of ctx carrying p
func WithPrincipal(ctx context.Context, p checkout.Principal) context.Context {
	return context.WithValue(ctx, PrincipalContextKey, p)
}

// PrincipalFromContext retrieves the principal from the request context
func PrincipalFromContext(ctx context.Context) (checkout.Principal, bool) {
	p, ok := ctx.Value(PrincipalContextKey).(checkout.Principal)
	return p, ok
}

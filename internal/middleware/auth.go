package middleware

import (
	"context"
	"net/http"
	"strings"

	"gamekey-market-api/internal/service"
	"gamekey-market-api/pkg/apierror"
)

// AccountKey is the context key for the authenticated account address.
const AccountKey contextKey = "account"

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	// TokenService resolves X-Token session tokens to accounts.
	TokenService *service.TokenService

	// AllowHeaderAccounts accepts a bare X-Account-Address header in
	// place of a token. Development only: it asserts, not proves,
	// identity.
	AllowHeaderAccounts bool
}

// NewAuthMiddleware creates an authentication middleware with injected
// dependencies. Every market operation acts on behalf of the resolved
// account, so requests without one are rejected.
func NewAuthMiddleware(cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Skip auth for health check endpoints
			if r.URL.Path == "/api/v1/health" || r.URL.Path == "/api/v1/ready" {
				next.ServeHTTP(w, r)
				return
			}

			// Skip auth for token generation
			if r.URL.Path == "/api/v1/auth/token" && r.Method == http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}

			// Admin stats are read-only and carry no account identity
			if strings.HasPrefix(r.URL.Path, "/api/v1/admin") {
				next.ServeHTTP(w, r)
				return
			}

			// Session tokens first
			token := r.Header.Get("X-Token")
			if token != "" && cfg.TokenService != nil {
				tokenData, err := cfg.TokenService.ValidateToken(r.Context(), token)
				if err != nil {
					writeError(w, apierror.Unauthorized("Invalid or expired token"))
					return
				}

				ctx := context.WithValue(r.Context(), AccountKey, tokenData.Account)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			// Development fallback
			if cfg.AllowHeaderAccounts {
				account := r.Header.Get("X-Account-Address")
				if account != "" {
					ctx := context.WithValue(r.Context(), AccountKey, account)
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
			}

			writeError(w, apierror.Unauthorized("Authentication required. Use X-Token header."))
		})
	}
}

// writeError writes an API error response.
func writeError(w http.ResponseWriter, err *apierror.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.StatusCode)
	w.Write(err.ToJSON())
}

// GetAccountFromContext retrieves the authenticated account address from
// request context.
func GetAccountFromContext(ctx context.Context) string {
	if account, ok := ctx.Value(AccountKey).(string); ok {
		return account
	}
	return ""
}

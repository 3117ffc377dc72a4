package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/hugh/poolparty/internal/auth"
	"github.com/hugh/poolparty/internal/database/models"
)

type contextKey string

const claimsKey contextKey = "claims"

// SessionCookie carries the JWT for browser clients.
const SessionCookie = "token"

// Auth rejects requests without a valid session.
func Auth(tokens auth.TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := claimsFromRequest(tokens, r)
			if claims == nil {
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// OptionalAuth attaches the session when one is present and valid, and
// lets anonymous requests through.
func OptionalAuth(tokens auth.TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if claims := claimsFromRequest(tokens, r); claims != nil {
				r = r.WithContext(WithClaims(r.Context(), claims))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// TokenHeader carries a session token for clients that cannot set Authorization.
const TokenHeader = "X-Auth-Token"

func claimsFromRequest(tokens auth.TokenService, r *http.Request) *auth.Claims {
	var token string

	// 1. Authorization header (API clients)
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		token = strings.TrimPrefix(h, "Bearer ")
	}

	// 2. Explicit token header
	if token == "" {
		token = r.Header.Get(TokenHeader)
	}

	// 3. Session cookie (browser)
	if token == "" {
		if cookie, err := r.Cookie(SessionCookie); err == nil {
			token = cookie.Value
		}
	}

	if token == "" {
		return nil
	}

	claims, err := tokens.ValidateToken(token)
	if err != nil {
		return nil
	}
	return claims
}

func WithClaims(ctx context.Context, claims *auth.Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// GetClaims returns the session of the request, or nil for anonymous ones.
func GetClaims(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsKey).(*auth.Claims)
	return claims
}

func GetUserID(ctx context.Context) uuid.UUID {
	if c := GetClaims(ctx); c != nil {
		return c.UserID
	}
	return uuid.Nil
}

func GetUserRole(ctx context.Context) models.Role {
	if c := GetClaims(ctx); c != nil {
		return c.Role
	}
	return ""
}

// RequireRole answers 403 unless the session holds one of roles. It must
// run after Auth.
func RequireRole(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch err := auth.RequireRole(GetClaims(r.Context()), roles...); err {
			case nil:
				next.ServeHTTP(w, r)
			case auth.ErrUnauthenticated:
				writeError(w, http.StatusUnauthorized, "Unauthorized")
			default:
				writeError(w, http.StatusForbidden, "Forbidden")
			}
		})
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: msg})
}

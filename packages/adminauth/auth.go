// Package adminauth is a narrow JWT bearer-token guard for the admin API
// (A4): two roles, admin and readonly, no row-level security, no table
// permission matrix. Grounded on packages/core/auth.go's Claims/
// GenerateToken/ValidateToken/Middleware, stripped of the Hasura-style
// per-table RBAC this bridge has no use for — the admin surface is four
// fixed endpoints, not a dynamic schema.
package adminauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Role is one of the two admin-surface roles.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleReadonly Role = "readonly"
)

// Claims is the JWT payload issued for an operator session.
type Claims struct {
	jwt.RegisteredClaims
	Role Role `json:"role"`
}

type contextKey string

const claimsContextKey contextKey = "admin_claims"

// ErrUnauthenticated is returned by FromContext when no valid claims were
// attached to the request.
var ErrUnauthenticated = errors.New("adminauth: no authenticated caller")

// Engine issues and validates admin bearer tokens.
type Engine struct {
	secret []byte
}

// New builds an Engine with the HMAC signing secret.
func New(secret string) *Engine {
	return &Engine{secret: []byte(secret)}
}

// GenerateToken issues a token for role, valid for 24 hours — matching the
// teacher's session lifetime for operator tooling.
func (e *Engine) GenerateToken(role Role) (string, error) {
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "sms-validation-bridge",
		},
		Role: role,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(e.secret)
}

// ValidateToken parses and verifies tokenString.
func (e *Engine) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return e.secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("adminauth: invalid token")
	}
	return claims, nil
}

// Middleware authenticates the Authorization: Bearer header and attaches
// the resulting claims to the request context. It does not itself enforce
// a role — RequireRole does that per-route.
func (e *Engine) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}

		claims, err := e.ValidateToken(parts[1])
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), claimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole wraps next, rejecting any caller whose role is not in allowed.
func RequireRole(next http.Handler, allowed ...Role) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := FromContext(r.Context())
		if err != nil {
			http.Error(w, "unauthenticated", http.StatusUnauthorized)
			return
		}
		for _, role := range allowed {
			if claims.Role == role {
				next.ServeHTTP(w, r)
				return
			}
		}
		http.Error(w, "forbidden", http.StatusForbidden)
	})
}

// FromContext returns the claims attached by Middleware.
func FromContext(ctx context.Context) (*Claims, error) {
	claims, ok := ctx.Value(claimsContextKey).(*Claims)
	if !ok || claims == nil {
		return nil, ErrUnauthenticated
	}
	return claims, nil
}

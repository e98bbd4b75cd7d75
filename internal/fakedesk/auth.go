package fakedesk

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/golang-jwt/jwt/v5"
)

// TokenTTL is the lifetime of issued session tokens.
const TokenTTL = 8 * time.Hour

type AuthConfig struct {
	JWTSecret string
	// HideIdentity omits id, name and role from login responses so clients
	// must read them from the token claims.
	HideIdentity bool
}

type principalKey struct{}

func withPrincipal(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, principalKey{}, u)
}

func principalFromContext(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(principalKey{}).(User)
	return u, ok
}

// caller returns the authenticated user or a 401.
func caller(ctx context.Context) (User, huma.StatusError) {
	if u, ok := principalFromContext(ctx); ok && u.ID != "" {
		return u, nil
	}
	return User{}, newAPIError(http.StatusUnauthorized, "authentication required", nil)
}

type sessionClaims struct {
	jwt.RegisteredClaims
	NameID     string `json:"nameid"`
	UniqueName string `json:"unique_name"`
	Email      string `json:"email"`
	Role       string `json:"role"`
}

func signToken(secret string, u User, now time.Time) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", errors.New("jwt secret not configured")
	}
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
		},
		NameID:     u.ID,
		UniqueName: u.Name,
		Email:      u.Email,
		Role:       string(u.Role),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func authenticateJWT(token, secret string) (string, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &sessionClaims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return "", err
	}
	if !parsed.Valid {
		return "", errors.New("invalid token")
	}
	if claims.NameID == "" {
		return "", errors.New("nameid claim required")
	}
	return claims.NameID, nil
}

func bearerToken(authz string) (string, bool) {
	parts := strings.Fields(authz)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

// newAuthMiddleware resolves a bearer token to its user. Requests without
// an Authorization header pass through anonymous; handlers that need a
// caller reject them.
func newAuthMiddleware(cfg AuthConfig, store *Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			authz := strings.TrimSpace(req.Header.Get("Authorization"))
			if authz == "" {
				next.ServeHTTP(w, req)
				return
			}
			token, ok := bearerToken(authz)
			if !ok {
				respondStatusError(w, newAPIError(http.StatusUnauthorized, "invalid credentials", nil))
				return
			}
			userID, err := authenticateJWT(token, cfg.JWTSecret)
			if err != nil {
				respondStatusError(w, newAPIError(http.StatusUnauthorized, "invalid credentials", nil))
				return
			}
			// roles are read from the store so promotions apply to live sessions
			u, err := store.User(userID)
			if err != nil {
				respondStatusError(w, newAPIError(http.StatusUnauthorized, "unknown user", nil))
				return
			}
			next.ServeHTTP(w, req.WithContext(withPrincipal(req.Context(), u)))
		})
	}
}

func respondStatusError(w http.ResponseWriter, err huma.StatusError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.GetStatus())
	_ = json.NewEncoder(w).Encode(err)
}

package desk

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Claim names used by ASP.NET style identity tokens in addition to the
// registered "sub" and plain "role" claims.
const (
	claimNameIdentifier = "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/nameidentifier"
	claimName           = "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/name"
	claimRole           = "http://schemas.microsoft.com/ws/2008/06/identity/claims/role"
)

// TokenIdentity is the identity carried by a session token.
type TokenIdentity struct {
	ID   string
	Name string
	Role string
}

// IdentityFromToken decodes the claims of a session token without verifying
// its signature.
func IdentityFromToken(token string) (TokenIdentity, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return TokenIdentity{}, fmt.Errorf("decode session token: %w", err)
	}
	return TokenIdentity{
		ID:   firstClaim(claims, "nameid", claimNameIdentifier, "sub", "id"),
		Name: firstClaim(claims, "unique_name", claimName, "name"),
		Role: firstClaim(claims, "role", claimRole),
	}, nil
}

func firstClaim(claims jwt.MapClaims, keys ...string) string {
	for _, k := range keys {
		switch v := claims[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return fmt.Sprintf("%.0f", v)
		case []any:
			if len(v) > 0 {
				if s, ok := v[0].(string); ok {
					return s
				}
			}
		}
	}
	return ""
}

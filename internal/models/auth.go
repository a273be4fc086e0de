package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims represents the JWT payload identifying a ledger caller.
type JWTClaims struct {
	Principal Principal `json:"principal"`
	jwt.RegisteredClaims
}

// Caller returns the principal, falling back to the token subject.
func (c *JWTClaims) Caller() Principal {
	if c == nil {
		return ""
	}
	if c.Principal != "" {
		return c.Principal
	}
	return Principal(c.Subject)
}

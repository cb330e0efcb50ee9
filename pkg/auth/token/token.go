// Package token inspects upstream OAuth access tokens.
//
// The gateway holds bearer tokens for the wrapped upstream channel but
// does not issue them, so it cannot verify signatures. What it needs is
// the expiry: a token that lapses mid-stream turns into an opaque 401
// halfway through a response. Inspect reads the registered claims
// without verification so the credential can be rotated ahead of time.
package token

import (
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// Claims holds the subset of JWT claims the gateway acts on.
type Claims struct {
	Subject   string
	Email     string
	ExpiresAt time.Time
}

// Inspect decodes the token without verifying its signature and returns
// its claims. Tokens without an exp claim report a zero ExpiresAt.
func Inspect(tokenStr string) (Claims, error) {
	parser := jwtlib.NewParser()
	token, _, err := parser.ParseUnverified(tokenStr, jwtlib.MapClaims{})
	if err != nil {
		return Claims{}, fmt.Errorf("decoding token: %w", err)
	}

	claims, ok := token.Claims.(jwtlib.MapClaims)
	if !ok {
		return Claims{}, fmt.Errorf("unexpected claims type %T", token.Claims)
	}

	out := Claims{}
	if sub, err := claims.GetSubject(); err == nil {
		out.Subject = sub
	}
	if email, ok := claims["email"].(string); ok {
		out.Email = email
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}
	return out, nil
}

// ExpiresWithin reports whether the token expires within d from now.
// Tokens without an expiry never report as expiring.
func (c Claims) ExpiresWithin(d time.Duration) bool {
	if c.ExpiresAt.IsZero() {
		return false
	}
	return time.Until(c.ExpiresAt) < d
}

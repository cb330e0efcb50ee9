package token

import (
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

func signedToken(t *testing.T, claims jwtlib.MapClaims) string {
	t.Helper()
	tok := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	s, err := tok.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return s
}

func TestInspect(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	tok := signedToken(t, jwtlib.MapClaims{
		"sub":   "user-123",
		"email": "dev@example.com",
		"exp":   exp.Unix(),
	})

	claims, err := Inspect(tok)
	if err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}
	if claims.Subject != "user-123" {
		t.Errorf("Subject = %q", claims.Subject)
	}
	if claims.Email != "dev@example.com" {
		t.Errorf("Email = %q", claims.Email)
	}
	if !claims.ExpiresAt.Equal(exp) {
		t.Errorf("ExpiresAt = %v, want %v", claims.ExpiresAt, exp)
	}
}

// Inspect must not require the signing key; it only reads claims.
func TestInspectIgnoresSignature(t *testing.T) {
	tok := signedToken(t, jwtlib.MapClaims{"sub": "x"})

	// Corrupt the signature segment.
	tampered := tok[:len(tok)-4] + "AAAA"

	claims, err := Inspect(tampered)
	if err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}
	if claims.Subject != "x" {
		t.Errorf("Subject = %q", claims.Subject)
	}
}

func TestInspectMalformed(t *testing.T) {
	if _, err := Inspect("not-a-jwt"); err == nil {
		t.Error("expected error for malformed token")
	}
}

func TestInspectNoExpiry(t *testing.T) {
	tok := signedToken(t, jwtlib.MapClaims{"sub": "x"})

	claims, err := Inspect(tok)
	if err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}
	if !claims.ExpiresAt.IsZero() {
		t.Errorf("ExpiresAt = %v, want zero", claims.ExpiresAt)
	}
	if claims.ExpiresWithin(24 * time.Hour) {
		t.Error("token without expiry reported as expiring")
	}
}

func TestExpiresWithin(t *testing.T) {
	tests := []struct {
		name   string
		expiry time.Duration
		window time.Duration
		want   bool
	}{
		{"well inside window", 5 * time.Minute, time.Hour, true},
		{"outside window", 2 * time.Hour, time.Hour, false},
		{"already expired", -time.Minute, time.Hour, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Claims{ExpiresAt: time.Now().Add(tt.expiry)}
			if got := c.ExpiresWithin(tt.window); got != tt.want {
				t.Errorf("ExpiresWithin(%v) = %v, want %v", tt.window, got, tt.want)
			}
		})
	}
}

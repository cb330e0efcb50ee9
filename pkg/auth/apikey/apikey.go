// Package apikey provides an API key authenticator that validates
// client keys against a static key store using SHA-256 hashing and
// constant-time comparison.
//
// Keys are accepted from either an "Authorization: Bearer" header or
// the "x-goog-api-key" header, since generateContent clients use both
// conventions.
package apikey

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/modelgate/modelgate/pkg/auth"
)

// keyEntry maps a key hash to an identity.
type keyEntry struct {
	hash     [32]byte
	identity auth.Identity
}

// Authenticator validates client keys against a static key store.
type Authenticator struct {
	keys []keyEntry
}

// Entry is the configuration format for API keys.
type Entry struct {
	Key      string
	Subject  string
	TenantID string
}

// New creates an API key authenticator. Keys are hashed immediately;
// plaintext keys are not retained.
func New(entries []Entry) *Authenticator {
	a := &Authenticator{}
	for _, e := range entries {
		a.keys = append(a.keys, keyEntry{
			hash:     sha256.Sum256([]byte(e.Key)),
			identity: auth.Identity{Subject: e.Subject, TenantID: e.TenantID},
		})
	}
	return a
}

// Authenticate extracts the client key and validates it.
// Returns Yes if valid, No if a key is present but invalid, Abstain if
// the request carries no recognizable key.
func (a *Authenticator) Authenticate(_ context.Context, r *http.Request) auth.Result {
	key := extractKey(r)
	if key == "" {
		return auth.Result{Decision: auth.Abstain}
	}

	keyHash := sha256.Sum256([]byte(key))
	for _, entry := range a.keys {
		if subtle.ConstantTimeCompare(keyHash[:], entry.hash[:]) == 1 {
			// Copy identity to avoid shared state.
			id := entry.identity
			return auth.Result{Decision: auth.Yes, Identity: &id}
		}
	}

	return auth.Result{Decision: auth.No, Err: auth.ErrUnauthenticated}
}

func extractKey(r *http.Request) string {
	if key := r.Header.Get("x-goog-api-key"); key != "" {
		return key
	}
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

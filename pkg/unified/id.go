package unified

import (
	"crypto/rand"
	"math/big"
)

const (
	callIDLength = 24
	idCharset    = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	callIDPrefix     = "call_"
	responseIDPrefix = "resp_"
)

// NewCallID generates a fallback tool-call identifier for calls that arrive
// from upstream without one. Callers must not rely on the id being stable
// across invocations.
func NewCallID() string {
	return callIDPrefix + randomAlphanumeric(callIDLength)
}

// NewResponseID generates an identifier for a synthesized response object.
func NewResponseID() string {
	return responseIDPrefix + randomAlphanumeric(callIDLength)
}

func randomAlphanumeric(n int) string {
	max := big.NewInt(int64(len(idCharset)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic("crypto/rand failed: " + err.Error())
		}
		b[i] = idCharset[idx.Int64()]
	}
	return string(b)
}

package unified

import (
	"errors"
	"fmt"
)

// ErrInvalidEnvelope is the sentinel matched by errors.Is for envelope
// failures. It is the only error class the translation core surfaces to
// callers; every other anomaly is repaired or dropped locally.
var ErrInvalidEnvelope = errors.New("invalid provider envelope")

// EnvelopeError reports a raw request or response that lacks the wrapper
// shape a provider adapter requires (provider id, model, inner body).
type EnvelopeError struct {
	Provider string
	Field    string
	Reason   string
}

// Error implements the error interface.
func (e *EnvelopeError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: invalid envelope: %s (field: %s)", e.Provider, e.Reason, e.Field)
	}
	return fmt.Sprintf("%s: invalid envelope: %s", e.Provider, e.Reason)
}

// Unwrap makes errors.Is(err, ErrInvalidEnvelope) hold for all EnvelopeErrors.
func (e *EnvelopeError) Unwrap() error {
	return ErrInvalidEnvelope
}

// NewEnvelopeError creates an EnvelopeError for the given provider and field.
func NewEnvelopeError(provider, field, reason string) *EnvelopeError {
	return &EnvelopeError{Provider: provider, Field: field, Reason: reason}
}

// Package storage defines the usage ledger that records per-request
// token consumption, plus utilities shared across ledger backends:
// sentinel errors and tenant context helpers.
//
// Two backends exist: memory (bounded ring, lost on restart) and
// postgres (durable, pgx/v5). Both scope queries by tenant when a
// tenant is present in the context.
package storage

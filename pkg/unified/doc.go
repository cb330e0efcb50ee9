// Package unified defines the canonical request, response, and stream-chunk
// model that every provider adapter reads and writes.
//
// The types here are provider-agnostic: adapters translate between this
// representation and their own wire formats in both directions. Values are
// built fresh per request and never mutated after being handed to a caller,
// so the same request can be transformed for multiple providers concurrently.
package unified

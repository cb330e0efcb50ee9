// Package transport holds the HTTP-level plumbing shared by the
// gateway's endpoints: middleware (recovery, request IDs, logging),
// error rendering in the generateContent wire shape, and the
// middleware chain helper.
//
// The gateway endpoints themselves live in pkg/transport/http.
package transport

// Package session owns the client side of the edge management exchange.
//
// Ownership boundary:
// - one UDP socket and one tag allocator per Session
// - the request/reply state machine (tag filtering, row collection,
//   deferred server errors, subscribe acknowledgment)
// - the long-lived event receive mode after a subscribe
//
// A Session serves one sequential caller. Timeouts surface as ErrTimeout
// and are never retried here; see internal/retry for caller-side policy.
package session

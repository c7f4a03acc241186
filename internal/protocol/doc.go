// Package protocol owns the management wire contract and parsing primitives.
//
// Ownership boundary:
// - request line encoding and parsing
// - reply datagram decoding into typed messages
// - ordered scalar records (rows and events)
// - per-session tag allocation
package protocol

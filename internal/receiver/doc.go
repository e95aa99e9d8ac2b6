// Package receiver owns the receiving side of the delay-insensitive handshake.
//
// Ownership boundary:
// - wait-valid / latch / ACK / push / wait-neutral / release sequencing
// - deadline-based polling against an injected Clock
// - backpressure policy (drop-on-full or stall-on-full)
// - handshake outcome counters
//
// Retry and recovery after a non-OK Status are left to the caller.
package receiver

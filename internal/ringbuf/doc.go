// Package ringbuf owns the lock-free hand-off between the handshake producer
// and the decode consumer.
//
// Ownership boundary:
// - head/tail index protocol and publish-after-write ordering
// - full/empty discrimination via the reserved slot
//
// The backing storage is allocated by the caller and never resized.
package ringbuf

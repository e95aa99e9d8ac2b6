// Package burst owns the burst-assembly protocol layer.
//
// Ownership boundary:
// - the ExpectRow / ExpectColOrTail state machine
// - the transient row + column buffer of one open burst
// - sticky protocol error and range warning flags
// - burst/event counters and synchronous event emission to a Sink
package burst

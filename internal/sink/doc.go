// Package sink holds the burst.Sink implementations used by the capture pipeline.
//
// Ownership boundary:
// - event forwarding into the AERS packet stream (records, HELLO, session id)
// - emitted / sent / failed counters and the runtime enable switch
// - in-memory collection and fan-out for tests and replay
package sink

// Package record owns the payload layouts carried inside event and marker packets.
//
// Ownership boundary:
// - versioned event record encode/decode (row, col, flags, optional ticks)
// - HELLO stream descriptor as TLV fields
package record

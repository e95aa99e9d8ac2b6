// Package statusblock publishes capture health as a fixed Modbus holding
// register block.
//
// Ownership boundary:
// - protocol-locked register layout and encoding
// - health derivation from capture and stream counters
// - delta writes with full re-assert after any failure
// - Modbus TCP delivery
package statusblock

// Package capture wires the receiver, ring, codec and burst assembler into a
// running two-goroutine pipeline.
//
// Ownership boundary:
// - producer loop (handshake service, idle probing, timeout logging)
// - consumer loop (ring drain, decode tallies, burst feeding)
// - cross-goroutine reset requests, honored by the owning loop
// - combined stats snapshots
package capture

// Package waveform records and replays DATA/ACK bus transitions off-target.
//
// Ownership boundary:
// - sample storage, text trace load/write
// - transmitter model that renders words as 4-phase handshakes
// - virtual receiver replay that latches on ACK rise
// - fault injectors applied per sample during replay
package waveform

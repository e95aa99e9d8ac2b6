// Package bus adapts pin-level access to the receiver's word/ACK view.
//
// Ownership boundary:
// - DATA field packing (shift, width) from a raw pin snapshot
// - ACK polarity
// - the simulated transmitter used by the sim source and end-to-end tests
//
// Real hardware backends implement Lines; nothing here talks to a device.
package bus

// Package geometry owns the fixed sensor/bus layout and its derived bit-widths.
//
// Ownership boundary:
// - rows/cols and index/pad/symbol/group widths
// - derived masks and the tail sentinel
// - validation of a layout before any core component is built from it
package geometry

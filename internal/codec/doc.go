// Package codec owns the bit-level translation between sampled bus words and payloads.
//
// Ownership boundary:
// - masking and out-of-range detection on raw words
// - 1-of-N group validation (neutral, zero-hot, multi-hot)
// - payload extraction, tail detection and pad-bit warnings
// - the inverse encoder used to generate valid words
//
// The codec is a pure function of its geometry; it never aborts and never logs.
package codec

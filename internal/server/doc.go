// Package server exposes the admin HTTP API of a capture process.
//
// Ownership boundary:
// - health and readiness probes
// - Prometheus scrape endpoint
// - stats snapshots and reset requests
// - runtime stream sink switch
package server

// Package metrics collects controller events into prometheus metrics.
// Producers push events onto a buffered channel with a non-blocking send;
// a single collector goroutine applies them, so metric updates never block
// the protocol dispatcher or the health probe loop.
package metrics

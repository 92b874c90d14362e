// Package prober implements out-of-band backend health probing. On a fixed
// interval it issues concurrent HTTP health checks with a bounded per-probe
// timeout, records round-trip latency and the backend-reported CPU/memory
// metrics on success, and marks backends unhealthy on any failure. It is the
// only writer of the registry's health and performance fields.
package prober

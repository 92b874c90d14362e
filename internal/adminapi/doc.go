// Package adminapi is the management surface: it exposes per-backend
// snapshots, aggregate request statistics, the active policy (read/write),
// the completed-request hook, the active-connection gauge, and the
// prometheus metrics endpoint.
package adminapi

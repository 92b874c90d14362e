package registry

import (
	"errors"
	"log/slog"
)

// ErrNoBackends is returned when construction yields an empty pool.
var ErrNoBackends = errors.New("no backends configured")

// Address is a validated backend endpoint used to build the registry.
type Address struct {
	Host string
	Port int
}

// Registry owns the fixed set of backend descriptors. The set is built once
// at startup; no entry is ever added or removed afterwards. Insertion order
// is preserved so round-robin selection is deterministic.
type Registry struct {
	servers []*Server
	index   map[string]*Server
}

// New builds a registry from the configured backend addresses. Duplicate
// entries are collapsed (first wins, logged). Fails only if the resulting
// set is empty.
func New(addrs []Address, log *slog.Logger) (*Registry, error) {
	r := &Registry{
		index: make(map[string]*Server, len(addrs)),
	}

	for _, addr := range addrs {
		srv := NewServer(addr.Host, addr.Port)

		if _, ok := r.index[srv.ID()]; ok {
			log.Warn("Skipping duplicate backend entry",
				slog.String("server", srv.ID()))
			continue
		}

		r.servers = append(r.servers, srv)
		r.index[srv.ID()] = srv
	}

	if len(r.servers) == 0 {
		return nil, ErrNoBackends
	}

	log.Info("Server registry initialized", slog.Int("backends", len(r.servers)))

	return r, nil
}

// Lookup returns the descriptor for the given server ID.
func (r *Registry) Lookup(id string) (*Server, bool) {
	srv, ok := r.index[id]
	return srv, ok
}

// Servers returns the descriptors in registry insertion order.
func (r *Registry) Servers() []*Server {
	out := make([]*Server, len(r.servers))
	copy(out, r.servers)
	return out
}

// Healthy returns the descriptors that passed their most recent probe,
// in registry insertion order.
func (r *Registry) Healthy() []*Server {
	healthy := make([]*Server, 0, len(r.servers))

	for _, srv := range r.servers {
		if srv.IsHealthy() {
			healthy = append(healthy, srv)
		}
	}

	return healthy
}

// Snapshots returns point-in-time copies of every descriptor,
// in registry insertion order.
func (r *Registry) Snapshots() []Snapshot {
	snaps := make([]Snapshot, 0, len(r.servers))

	for _, srv := range r.servers {
		snaps = append(snaps, srv.Snapshot())
	}

	return snaps
}

// Size returns the fixed number of configured backends.
func (r *Registry) Size() int {
	return len(r.servers)
}

// RecordRequest is the administrative hook for completed requests: it updates
// the named server's observed latency and request counter. Unknown server IDs
// are a no-op; the return value reports whether the ID was known.
func (r *Registry) RecordRequest(id string, latencyMs float64) bool {
	srv, ok := r.index[id]
	if !ok {
		return false
	}

	srv.RecordRequest(latencyMs)
	return true
}

// SetActiveConnections sets the connection gauge for the named server.
// Unknown server IDs are a no-op.
func (r *Registry) SetActiveConnections(id string, n int) bool {
	srv, ok := r.index[id]
	if !ok {
		return false
	}

	srv.SetActiveConnections(n)
	return true
}

// TotalRequests sums the routed-request counters across all backends.
func (r *Registry) TotalRequests() int64 {
	var total int64

	for _, srv := range r.servers {
		total += srv.Snapshot().TotalRequests
	}

	return total
}

package registry

import (
	"fmt"
	"sync"
	"time"
)

// Server holds the live state of a single backend. All multi-field updates
// happen under one lock so readers never observe a half-applied probe result.
type Server struct {
	mutex sync.Mutex

	id   string
	host string
	port int

	healthy           bool
	latencyMs         float64
	cpuPercent        float64
	memPercent        float64
	activeConnections int
	totalRequests     int64
	weight            float64
	lastHealthCheck   time.Time
}

// Snapshot is a consistent point-in-time copy of a Server's state.
type Snapshot struct {
	ID                string
	Host              string
	Port              int
	Healthy           bool
	LatencyMs         float64
	CPUPercent        float64
	MemoryPercent     float64
	ActiveConnections int
	TotalRequests     int64
	Weight            float64
	LastHealthCheck   time.Time
}

// NewServer creates a backend descriptor in the initial healthy state.
func NewServer(host string, port int) *Server {
	return &Server{
		id:      fmt.Sprintf("%s:%d", host, port),
		host:    host,
		port:    port,
		healthy: true,
		weight:  1.0,
	}
}

// ID returns the server's unique identity (host:port). Immutable.
func (s *Server) ID() string {
	return s.id
}

// Host returns the backend host. Immutable.
func (s *Server) Host() string {
	return s.host
}

// Port returns the backend port. Immutable.
func (s *Server) Port() int {
	return s.port
}

// Endpoint returns the backend's HTTP base URL.
func (s *Server) Endpoint() string {
	return fmt.Sprintf("http://%s:%d", s.host, s.port)
}

// IsHealthy returns true if the backend passed its most recent probe.
func (s *Server) IsHealthy() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.healthy
}

// Snapshot copies all live fields under one lock acquisition.
func (s *Server) Snapshot() Snapshot {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return Snapshot{
		ID:                s.id,
		Host:              s.host,
		Port:              s.port,
		Healthy:           s.healthy,
		LatencyMs:         s.latencyMs,
		CPUPercent:        s.cpuPercent,
		MemoryPercent:     s.memPercent,
		ActiveConnections: s.activeConnections,
		TotalRequests:     s.totalRequests,
		Weight:            s.weight,
		LastHealthCheck:   s.lastHealthCheck,
	}
}

// ApplyProbeSuccess records a successful probe: health, round-trip latency,
// and the backend-reported resource metrics, in one atomic update.
// Returns true if the health state changed.
func (s *Server) ApplyProbeSuccess(latencyMs, cpuPercent, memPercent float64, at time.Time) (changed bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	changed = !s.healthy
	s.healthy = true
	s.latencyMs = latencyMs
	s.cpuPercent = cpuPercent
	s.memPercent = memPercent
	s.lastHealthCheck = at

	return changed
}

// ApplyProbeFailure marks the backend unhealthy. Previously recorded latency
// and resource metrics are kept; stale-but-present is acceptable.
// Returns true if the health state changed.
func (s *Server) ApplyProbeFailure() (changed bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	changed = s.healthy
	s.healthy = false

	return changed
}

// RecordRequest records a completed request routed to this backend,
// updating the observed latency and the request counter.
func (s *Server) RecordRequest(latencyMs float64) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.latencyMs = latencyMs
	s.totalRequests++
}

// SetActiveConnections sets the connection gauge. The gauge is owned by the
// administrative surface; nothing in this process infers connection lifecycle.
func (s *Server) SetActiveConnections(n int) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if n < 0 {
		n = 0
	}
	s.activeConnections = n
}

// SetWeight stores the transient selection score computed by a policy.
// The value carries no meaning across selections; it is kept only so the
// stats surface can expose the most recent computation.
func (s *Server) SetWeight(w float64) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.weight = w
}

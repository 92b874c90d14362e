package adminapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/angeloszaimis/sdn-lb/internal/metrics"
	"github.com/angeloszaimis/sdn-lb/internal/registry"
	"github.com/angeloszaimis/sdn-lb/internal/selector"
	"github.com/angeloszaimis/sdn-lb/internal/strategy"
)

// API exposes registry state and policy control to operators.
type API struct {
	logger    *slog.Logger
	registry  *registry.Registry
	selector  *selector.Selector
	collector *metrics.Collector
}

type serverInfo struct {
	ServerID      string  `json:"server_id"`
	IP            string  `json:"ip"`
	Port          int     `json:"port"`
	Healthy       bool    `json:"healthy"`
	LatencyMs     float64 `json:"latency_ms"`
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
}

type serverStats struct {
	ServerID          string  `json:"server_id"`
	IP                string  `json:"ip"`
	Port              int     `json:"port"`
	Healthy           bool    `json:"healthy"`
	RequestCount      int64   `json:"request_count"`
	LatencyMs         float64 `json:"latency_ms"`
	CPUPercent        float64 `json:"cpu_percent"`
	MemoryPercent     float64 `json:"memory_percent"`
	ActiveConnections int     `json:"active_connections"`
	Weight            float64 `json:"weight"`
}

type statsResponse struct {
	Algorithm     string        `json:"algorithm"`
	Servers       []serverStats `json:"servers"`
	TotalRequests int64         `json:"total_requests"`
}

type algorithmRequest struct {
	Algorithm string `json:"algorithm"`
}

type recordRequest struct {
	ServerID  string  `json:"server_id"`
	LatencyMs float64 `json:"latency_ms"`
}

type connectionsRequest struct {
	ServerID          string `json:"server_id"`
	ActiveConnections int    `json:"active_connections"`
}

func New(logger *slog.Logger, reg *registry.Registry, sel *selector.Selector, collector *metrics.Collector) *API {
	return &API{
		logger:    logger,
		registry:  reg,
		selector:  sel,
		collector: collector,
	}
}

// Routes builds the management mux, including the metrics endpoint.
func (a *API) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/servers", a.listServers)
	mux.HandleFunc("/api/server-stats", a.serverStats)
	mux.HandleFunc("/api/algorithm", a.manageAlgorithm)
	mux.HandleFunc("/api/requests", a.recordCompletedRequest)
	mux.HandleFunc("/api/connections", a.setConnections)
	mux.Handle("/metrics", a.collector.Handler())

	return mux
}

func (a *API) listServers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snaps := a.registry.Snapshots()
	servers := make([]serverInfo, 0, len(snaps))

	for _, snap := range snaps {
		servers = append(servers, serverInfo{
			ServerID:      snap.ID,
			IP:            snap.Host,
			Port:          snap.Port,
			Healthy:       snap.Healthy,
			LatencyMs:     round2(snap.LatencyMs),
			CPUPercent:    round2(snap.CPUPercent),
			MemoryPercent: round2(snap.MemoryPercent),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"servers": servers})
}

func (a *API) serverStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snaps := a.registry.Snapshots()

	resp := statsResponse{
		Algorithm: a.selector.Policy(),
		Servers:   make([]serverStats, 0, len(snaps)),
	}

	for _, snap := range snaps {
		resp.TotalRequests += snap.TotalRequests
		resp.Servers = append(resp.Servers, serverStats{
			ServerID:          snap.ID,
			IP:                snap.Host,
			Port:              snap.Port,
			Healthy:           snap.Healthy,
			RequestCount:      snap.TotalRequests,
			LatencyMs:         round2(snap.LatencyMs),
			CPUPercent:        round2(snap.CPUPercent),
			MemoryPercent:     round2(snap.MemoryPercent),
			ActiveConnections: snap.ActiveConnections,
			Weight:            round3(snap.Weight),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

func (a *API) manageAlgorithm(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]string{"algorithm": a.selector.Policy()})

	case http.MethodPost:
		var req algorithmRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		if err := a.selector.SetPolicy(req.Algorithm); err != nil {
			if errors.Is(err, strategy.ErrUnknownPolicy) {
				writeJSON(w, http.StatusBadRequest, map[string]string{
					"error": "invalid algorithm: " + req.Algorithm,
				})
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		a.collector.Emit(metrics.Event{
			Type:      metrics.EventPolicyChanged,
			Timestamp: time.Now(),
			Algorithm: req.Algorithm,
		})

		a.logger.Info("Load balancing algorithm changed",
			slog.String("algorithm", req.Algorithm))

		writeJSON(w, http.StatusOK, map[string]string{
			"algorithm": req.Algorithm,
			"status":    "updated",
		})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// recordCompletedRequest is the per-flow hook for the external collaborator
// that observes completed requests: it updates the named server's latency
// and request counter outside the probe cycle.
func (a *API) recordCompletedRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req recordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if !a.registry.RecordRequest(req.ServerID, req.LatencyMs) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "unknown server: " + req.ServerID,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}

// setConnections updates the active-connection gauge. Connection lifecycle
// is tracked by an external collaborator, never inferred here.
func (a *API) setConnections(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req connectionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if !a.registry.SetActiveConnections(req.ServerID, req.ActiveConnections) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "unknown server: " + req.ServerID,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

package prober

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/angeloszaimis/sdn-lb/internal/metrics"
	"github.com/angeloszaimis/sdn-lb/internal/registry"
)

// healthPayload is the expected body of a backend's /health response.
type healthPayload struct {
	Metrics struct {
		CPUPercent    float64 `json:"cpu_percent"`
		MemoryPercent float64 `json:"memory_percent"`
	} `json:"metrics"`
}

// Prober periodically probes every backend out-of-band and is the sole
// writer of the registry's health and performance fields.
type Prober struct {
	registry  *registry.Registry
	interval  time.Duration
	client    *http.Client
	logger    *slog.Logger
	collector *metrics.Collector
}

// New creates a prober. The timeout bounds each individual probe so one
// unreachable backend cannot stall a cycle beyond its own deadline.
func New(reg *registry.Registry, interval, timeout time.Duration, logger *slog.Logger, collector *metrics.Collector) *Prober {
	return &Prober{
		registry: reg,
		interval: interval,
		client: &http.Client{
			Timeout: timeout,
		},
		logger:    logger,
		collector: collector,
	}
}

// Run probes all backends on every tick until the context is cancelled.
// Individual probe failures never stop the loop.
func (p *Prober) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info("Health prober started",
		slog.Duration("interval", p.interval),
		slog.Int("backends", p.registry.Size()))

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Health prober stopped")
			return

		case <-ticker.C:
			p.probeCycle(ctx)
		}
	}
}

// probeCycle probes every backend concurrently and waits for the slowest.
// A panic anywhere in the cycle is recovered and followed by a short pause
// so a persistent fault cannot turn into a tight error loop.
func (p *Prober) probeCycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Health probe cycle panicked", slog.Any("panic", r))
			time.Sleep(time.Second)
		}
	}()

	var wg sync.WaitGroup

	for _, srv := range p.registry.Servers() {
		wg.Add(1)
		go func(srv *registry.Server) {
			defer wg.Done()
			p.probe(ctx, srv)
		}(srv)
	}

	wg.Wait()
}

// probe issues one health check. Any failure (transport, non-2xx, malformed
// body) marks the backend unhealthy; previously recorded latency and resource
// metrics stay in place.
func (p *Prober) probe(ctx context.Context, srv *registry.Server) {
	healthURL := srv.Endpoint() + "/health"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, healthURL, nil)
	if err != nil {
		p.markUnhealthy(srv, err)
		return
	}

	start := time.Now()
	res, err := p.client.Do(req)
	if err != nil {
		p.markUnhealthy(srv, err)
		return
	}
	defer res.Body.Close()

	latencyMs := float64(time.Since(start)) / float64(time.Millisecond)

	if res.StatusCode < 200 || res.StatusCode > 299 {
		p.logger.Warn("Backend returned unhealthy status",
			slog.String("server", srv.ID()),
			slog.Int("status", res.StatusCode))
		p.applyFailure(srv)
		return
	}

	var payload healthPayload
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		p.markUnhealthy(srv, err)
		return
	}

	changed := srv.ApplyProbeSuccess(latencyMs, payload.Metrics.CPUPercent, payload.Metrics.MemoryPercent, time.Now())
	if changed {
		p.logger.Info("Server is back up", slog.String("server", srv.ID()))
	}
	p.emitHealth(srv.ID(), true)

	p.logger.Debug("Probe succeeded",
		slog.String("server", srv.ID()),
		slog.Float64("latency_ms", latencyMs))
}

func (p *Prober) markUnhealthy(srv *registry.Server, err error) {
	p.logger.Warn("Health check failed",
		slog.String("server", srv.ID()),
		slog.Any("err", err))
	p.applyFailure(srv)
}

func (p *Prober) applyFailure(srv *registry.Server) {
	changed := srv.ApplyProbeFailure()
	if changed {
		p.logger.Warn("Server is down", slog.String("server", srv.ID()))
	}
	p.emitHealth(srv.ID(), false)
}

func (p *Prober) emitHealth(serverID string, healthy bool) {
	if p.collector == nil {
		return
	}

	p.collector.Emit(metrics.Event{
		Type:      metrics.EventHealthChanged,
		Timestamp: time.Now(),
		ServerID:  serverID,
		Healthy:   healthy,
	})
}

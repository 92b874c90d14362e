package metrics

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type EventType string

const (
	EventRequestRouted EventType = "request_routed"
	EventHealthChanged EventType = "health_changed"
	EventPolicyChanged EventType = "policy_changed"
)

type Event struct {
	Type      EventType
	Timestamp time.Time
	ServerID  string
	Algorithm string
	Healthy   bool
}

// Collector consumes metric events off a buffered channel and updates the
// prometheus collectors. Producers emit without blocking; under pressure
// events are dropped rather than stalling the protocol dispatcher.
type Collector struct {
	eventCh chan Event
	logger  *slog.Logger

	registry         *prometheus.Registry
	requestsTotal    *prometheus.CounterVec
	serverHealth     *prometheus.GaugeVec
	algorithmCurrent *prometheus.GaugeVec
}

func NewCollector(bufferSize int, logger *slog.Logger) *Collector {
	reg := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lb_requests_total",
		Help: "Total load balancer requests",
	}, []string{"server_id", "algorithm"})

	serverHealth := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "lb_server_health",
		Help: "Server health status (1=healthy, 0=unhealthy)",
	}, []string{"server_id"})

	algorithmCurrent := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "lb_algorithm_current",
		Help: "Current load balancing algorithm",
	}, []string{"algorithm"})

	reg.MustRegister(requestsTotal, serverHealth, algorithmCurrent)

	return &Collector{
		eventCh:          make(chan Event, bufferSize),
		logger:           logger,
		registry:         reg,
		requestsTotal:    requestsTotal,
		serverHealth:     serverHealth,
		algorithmCurrent: algorithmCurrent,
	}
}

// EventChannel exposes the send side for producers.
func (c *Collector) EventChannel() chan<- Event {
	return c.eventCh
}

// Emit sends an event without blocking; the event is dropped when the
// buffer is full.
func (c *Collector) Emit(event Event) {
	select {
	case c.eventCh <- event:
	default:
	}
}

func (c *Collector) Start(ctx context.Context) {
	go c.run(ctx)
}

func (c *Collector) run(ctx context.Context) {
	c.logger.Info("Metrics collector started")
	defer c.logger.Info("Metrics collector stopped")

	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		case <-ctx.Done():
			// Drain remaining events before shutdown
			c.drain()
			return
		}
	}
}

func (c *Collector) processEvent(event Event) {
	switch event.Type {
	case EventRequestRouted:
		c.requestsTotal.WithLabelValues(event.ServerID, event.Algorithm).Inc()

	case EventHealthChanged:
		value := 0.0
		if event.Healthy {
			value = 1.0
		}
		c.serverHealth.WithLabelValues(event.ServerID).Set(value)

	case EventPolicyChanged:
		// One-hot: the active algorithm is 1, everything else disappears.
		c.algorithmCurrent.Reset()
		c.algorithmCurrent.WithLabelValues(event.Algorithm).Set(1)
	}
}

func (c *Collector) drain() {
	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		default:
			return
		}
	}
}

// Handler serves the prometheus exposition endpoint.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Gather exposes the underlying registry for tests.
func (c *Collector) Gatherer() prometheus.Gatherer {
	return c.registry
}

package strategy

import (
	"github.com/angeloszaimis/sdn-lb/internal/registry"
)

// latencyWeightedStrategy scores each backend by inverse probe latency and
// picks the highest score, i.e. the lowest observed latency. Backends with no
// recorded latency score 1.0. Scores are written back to the descriptors so
// the stats surface can expose them.
type latencyWeightedStrategy struct{}

func (l *latencyWeightedStrategy) SelectBackend(servers []*registry.Server) *registry.Server {
	if len(servers) == 0 {
		return nil
	}

	var chosen *registry.Server
	var best float64

	for _, srv := range servers {
		latency := srv.Snapshot().LatencyMs

		weight := 1.0
		if latency > 0 {
			weight = 1.0 / latency
		}
		srv.SetWeight(weight)

		if chosen == nil || weight > best {
			chosen = srv
			best = weight
		}
	}

	return chosen
}

func NewLatencyWeightedStrategy() Strategy {
	return &latencyWeightedStrategy{}
}

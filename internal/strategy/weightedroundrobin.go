package strategy

import (
	"github.com/angeloszaimis/sdn-lb/internal/registry"
)

// weightedRoundRobinStrategy scores each backend by its reported CPU and
// memory headroom and picks the highest score, i.e. the lowest combined
// resource usage. Each dimension is floored at 0.1 so a saturated backend
// still carries a nonzero score.
type weightedRoundRobinStrategy struct{}

func (w *weightedRoundRobinStrategy) SelectBackend(servers []*registry.Server) *registry.Server {
	if len(servers) == 0 {
		return nil
	}

	var chosen *registry.Server
	var best float64

	for _, srv := range servers {
		snap := srv.Snapshot()

		cpuWeight := max(0.1, 1.0-snap.CPUPercent/100.0)
		memWeight := max(0.1, 1.0-snap.MemoryPercent/100.0)
		weight := (cpuWeight + memWeight) / 2.0
		srv.SetWeight(weight)

		if chosen == nil || weight > best {
			chosen = srv
			best = weight
		}
	}

	return chosen
}

func NewWeightedRoundRobinStrategy() Strategy {
	return &weightedRoundRobinStrategy{}
}

package strategy

import (
	"sync/atomic"

	"github.com/angeloszaimis/sdn-lb/internal/registry"
)

// roundRobinStrategy cycles through the healthy list in registry insertion
// order. The cursor is taken modulo the current healthy-list length, so the
// cycle period shrinks and grows as backends flap.
type roundRobinStrategy struct {
	current uint64
}

func (rr *roundRobinStrategy) SelectBackend(servers []*registry.Server) *registry.Server {
	if len(servers) == 0 {
		return nil
	}

	n := atomic.AddUint64(&rr.current, 1)

	index := (n - 1) % uint64(len(servers))

	return servers[index]
}

func NewRoundRobinStrategy() Strategy {
	return &roundRobinStrategy{
		current: 0,
	}
}

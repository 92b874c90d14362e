package strategy

import (
	"math"

	"github.com/angeloszaimis/sdn-lb/internal/registry"
)

type leastConnectionsStrategy struct {
}

func (l *leastConnectionsStrategy) SelectBackend(servers []*registry.Server) *registry.Server {
	if len(servers) == 0 {
		return nil
	}

	var chosen *registry.Server
	bestConns := math.MaxInt32

	for _, srv := range servers {
		activeConns := srv.Snapshot().ActiveConnections
		if activeConns < bestConns {
			bestConns = activeConns
			chosen = srv
		}
	}

	return chosen
}

func NewLeastConnectionsStrategy() Strategy {
	return &leastConnectionsStrategy{}
}

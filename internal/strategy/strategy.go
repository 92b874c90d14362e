package strategy

import (
	"errors"

	"github.com/angeloszaimis/sdn-lb/internal/registry"
)

// Policy names form the closed set accepted on the wire and the admin API.
const (
	NameRoundRobin         = "round_robin"
	NameLeastConnections   = "least_connections"
	NameLatencyWeighted    = "latency_weighted"
	NameWeightedRoundRobin = "weighted_round_robin"
)

// ErrUnknownPolicy is returned when a policy name outside the closed set
// is requested.
var ErrUnknownPolicy = errors.New("unknown load balancing policy")

// Strategy selects one backend from a healthy snapshot.
// Implementations return nil when the snapshot is empty and are otherwise
// deterministic for a given input (first encountered wins on ties).
type Strategy interface {
	SelectBackend(servers []*registry.Server) *registry.Server
}

// New builds the strategy for the given policy name.
func New(name string) (Strategy, error) {
	switch name {
	case NameRoundRobin:
		return NewRoundRobinStrategy(), nil
	case NameLeastConnections:
		return NewLeastConnectionsStrategy(), nil
	case NameLatencyWeighted:
		return NewLatencyWeightedStrategy(), nil
	case NameWeightedRoundRobin:
		return NewWeightedRoundRobinStrategy(), nil
	default:
		return nil, ErrUnknownPolicy
	}
}

// Names returns the accepted policy names.
func Names() []string {
	return []string{
		NameRoundRobin,
		NameLeastConnections,
		NameLatencyWeighted,
		NameWeightedRoundRobin,
	}
}

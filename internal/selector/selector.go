package selector

import (
	"errors"
	"sync"

	"github.com/angeloszaimis/sdn-lb/internal/registry"
	"github.com/angeloszaimis/sdn-lb/internal/strategy"
)

// ErrNoHealthyBackend signals that the healthy snapshot was empty at
// selection time. Callers handle it by skipping rule installation and
// letting the triggering packet flood.
var ErrNoHealthyBackend = errors.New("no healthy backend available")

// Selector picks one backend per new flow using the policy active at call
// time. The policy is hot-swappable through SetPolicy.
type Selector struct {
	registry *registry.Registry

	mutex      sync.Mutex
	policyName string
	strategy   strategy.Strategy
}

// New creates a selector with the given initial policy.
func New(reg *registry.Registry, policyName string) (*Selector, error) {
	strat, err := strategy.New(policyName)
	if err != nil {
		return nil, err
	}

	return &Selector{
		registry:   reg,
		policyName: policyName,
		strategy:   strat,
	}, nil
}

// Select snapshots the current healthy set and delegates to the active
// policy. Returns ErrNoHealthyBackend when the snapshot is empty.
func (s *Selector) Select() (*registry.Server, error) {
	s.mutex.Lock()
	strat := s.strategy
	s.mutex.Unlock()

	healthy := s.registry.Healthy()
	if len(healthy) == 0 {
		return nil, ErrNoHealthyBackend
	}

	chosen := strat.SelectBackend(healthy)
	if chosen == nil {
		return nil, ErrNoHealthyBackend
	}

	return chosen, nil
}

// SetPolicy swaps the active policy. Unknown names are rejected with
// strategy.ErrUnknownPolicy and leave the current policy untouched.
func (s *Selector) SetPolicy(name string) error {
	strat, err := strategy.New(name)
	if err != nil {
		return err
	}

	s.mutex.Lock()
	s.policyName = name
	s.strategy = strat
	s.mutex.Unlock()

	return nil
}

// Policy returns the name of the active policy.
func (s *Selector) Policy() string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.policyName
}

package pipeline

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/sirosfoundation/go-soapmep/pkg/message"
)

var (
	ErrUnknownPhase = errors.New("unknown phase")
	ErrPhaseExists  = errors.New("phase already registered")
)

// FlowSource describes the flows of an operation by phase identifier
type FlowSource interface {
	Flows() []message.Direction
	PhaseList(direction message.Direction) []string
}

// Registry resolves phase identifiers to phases
type Registry struct {
	mu     sync.RWMutex
	phases map[string]Phase
}

// NewRegistry creates a registry holding the given phases
func NewRegistry(phases ...Phase) (*Registry, error) {
	r := &Registry{phases: make(map[string]Phase)}
	for _, p := range phases {
		if err := r.Register(p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a phase under its name
func (r *Registry) Register(p Phase) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.phases[p.Name()]; exists {
		return fmt.Errorf("%w: %s", ErrPhaseExists, p.Name())
	}
	r.phases[p.Name()] = p
	return nil
}

// Get returns the phase registered under name
func (r *Registry) Get(name string) (Phase, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.phases[name]
	return p, ok
}

// Names returns the registered phase names in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.phases))
	for name := range r.phases {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve builds a pipeline from phase identifiers
func (r *Registry) Resolve(ids []string) (*Pipeline, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	phases := make([]Phase, 0, len(ids))
	for _, id := range ids {
		p, ok := r.phases[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownPhase, id)
		}
		phases = append(phases, p)
	}
	return New(phases...), nil
}

// Build resolves every flow of src into Flows
func (r *Registry) Build(src FlowSource) (*Flows, error) {
	pipelines := make(map[message.Direction]*Pipeline)
	for _, d := range src.Flows() {
		p, err := r.Resolve(src.PhaseList(d))
		if err != nil {
			return nil, fmt.Errorf("flow %s: %w", d, err)
		}
		pipelines[d] = p
	}
	return NewFlows(pipelines), nil
}

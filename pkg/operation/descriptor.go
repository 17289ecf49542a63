package operation

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sirosfoundation/go-soapmep/pkg/mep"
	"github.com/sirosfoundation/go-soapmep/pkg/message"
)

var (
	ErrUnsupportedFlow = errors.New("flow not supported by operation")
	ErrDescriptorInUse = errors.New("operation descriptor in use")
)

// Descriptor is the static description of an operation
type Descriptor struct {
	name     string
	pattern  *mep.Pattern
	actions  []string
	endpoint string

	mu     sync.RWMutex
	phases map[message.Direction][]string
	bound  int
	err    error
}

// Option configures a Descriptor
type Option func(*Descriptor)

// WithAction adds WS-Addressing actions that select the operation
func WithAction(actions ...string) Option {
	return func(d *Descriptor) {
		d.actions = append(d.actions, actions...)
	}
}

// WithPhases sets the phase identifiers for a flow
func WithPhases(direction message.Direction, ids ...string) Option {
	return func(d *Descriptor) {
		if !d.pattern.HasFlow(direction) {
			d.err = fmt.Errorf("%w: %s for %s", ErrUnsupportedFlow, direction, d.pattern.Variant())
			return
		}
		d.phases[direction] = append([]string(nil), ids...)
	}
}

// WithEndpoint sets the default destination for outbound messages
func WithEndpoint(url string) Option {
	return func(d *Descriptor) {
		d.endpoint = url
	}
}

// New creates a descriptor for an operation following variant
func New(name string, variant mep.Variant, opts ...Option) (*Descriptor, error) {
	if name == "" {
		return nil, errors.New("operation name is required")
	}
	pattern := mep.Lookup(variant)
	if pattern == nil {
		return nil, fmt.Errorf("%w: %d", mep.ErrUnknownVariant, variant)
	}

	d := &Descriptor{
		name:    name,
		pattern: pattern,
		phases:  make(map[message.Direction][]string),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.err != nil {
		return nil, d.err
	}
	return d, nil
}

// Name returns the operation name
func (d *Descriptor) Name() string { return d.name }

// Variant returns the MEP variant
func (d *Descriptor) Variant() mep.Variant { return d.pattern.Variant() }

// Pattern returns the legality table of the variant
func (d *Descriptor) Pattern() *mep.Pattern { return d.pattern }

// Actions returns the actions that select this operation
func (d *Descriptor) Actions() []string {
	return append([]string(nil), d.actions...)
}

// Endpoint returns the default destination address
func (d *Descriptor) Endpoint() string { return d.endpoint }

// Flows returns the flow directions the variant supports
func (d *Descriptor) Flows() []message.Direction {
	return d.pattern.Flows()
}

// PhaseList returns a copy of the phase identifiers for a flow
func (d *Descriptor) PhaseList(direction message.Direction) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]string(nil), d.phases[direction]...)
}

// SetPhaseList replaces the phase identifiers for a flow
func (d *Descriptor) SetPhaseList(direction message.Direction, ids []string) error {
	if !d.pattern.HasFlow(direction) {
		return fmt.Errorf("%w: %s for %s", ErrUnsupportedFlow, direction, d.pattern.Variant())
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.bound > 0 {
		return fmt.Errorf("%w: %s has %d live exchanges", ErrDescriptorInUse, d.name, d.bound)
	}
	d.phases[direction] = append([]string(nil), ids...)
	return nil
}

// Acquire records an exchange bound to the descriptor
func (d *Descriptor) Acquire() {
	d.mu.Lock()
	d.bound++
	d.mu.Unlock()
}

// Release undoes one Acquire
func (d *Descriptor) Release() {
	d.mu.Lock()
	if d.bound > 0 {
		d.bound--
	}
	d.mu.Unlock()
}

// InUse reports the number of bound exchanges
func (d *Descriptor) InUse() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.bound
}

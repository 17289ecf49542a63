package operation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/sirosfoundation/go-soapmep/pkg/message"
)

var (
	ErrOperationNotFound = errors.New("operation not found")
	ErrOperationExists   = errors.New("operation already registered")
)

// Resolver finds the descriptor governing a message
type Resolver interface {
	Resolve(ctx context.Context, msg *message.Message) (*Descriptor, error)
	Get(name string) (*Descriptor, error)
}

// Registry holds descriptors by name and action
type Registry struct {
	mu       sync.RWMutex
	byName   map[string]*Descriptor
	byAction map[string]*Descriptor
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		byName:   make(map[string]*Descriptor),
		byAction: make(map[string]*Descriptor),
	}
}

// Register adds a descriptor. Names and actions must be unique.
func (r *Registry) Register(d *Descriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[d.Name()]; exists {
		return fmt.Errorf("%w: %s", ErrOperationExists, d.Name())
	}
	for _, action := range d.actions {
		if other, exists := r.byAction[action]; exists {
			return fmt.Errorf("%w: action %s bound to %s", ErrOperationExists, action, other.Name())
		}
	}

	r.byName[d.Name()] = d
	for _, action := range d.actions {
		r.byAction[action] = d
	}
	return nil
}

// Get returns the descriptor registered under name
func (r *Registry) Get(name string) (*Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOperationNotFound, name)
	}
	return d, nil
}

// Remove unregisters the named descriptor
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.byName[name]
	if !ok {
		return
	}
	delete(r.byName, name)
	for _, action := range d.actions {
		delete(r.byAction, action)
	}
}

// List returns all descriptors sorted by name
func (r *Registry) List() []*Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Descriptor, 0, len(r.byName))
	for _, d := range r.byName {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Resolve matches msg by action, then by the last path segment of To
func (r *Registry) Resolve(ctx context.Context, msg *message.Message) (*Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if msg.Action != "" {
		if d, ok := r.byAction[msg.Action]; ok {
			return d, nil
		}
	}

	if msg.To != "" {
		to := strings.TrimRight(msg.To, "/")
		if i := strings.LastIndexAny(to, "/#:"); i >= 0 {
			to = to[i+1:]
		}
		if d, ok := r.byName[to]; ok {
			return d, nil
		}
	}

	return nil, fmt.Errorf("%w: action=%q to=%q", ErrOperationNotFound, msg.Action, msg.To)
}

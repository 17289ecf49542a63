package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrEndpointNotFound is returned when no endpoint can be resolved
var ErrEndpointNotFound = errors.New("endpoint not found")

// EndpointInfo describes where a destination address is served
type EndpointInfo struct {
	URL        string
	Address    string
	Action     string
	Properties map[string]string
}

// EndpointResolver maps a logical destination address to an endpoint.
// Static tables and directory lookups both implement it.
type EndpointResolver interface {
	ResolveEndpoint(ctx context.Context, address, action string) (*EndpointInfo, error)
	CacheEndpoint(key string, info *EndpointInfo) error
	InvalidateCache(key string) error
}

// StaticEndpointResolver serves a fixed address table
type StaticEndpointResolver struct {
	mu        sync.RWMutex
	endpoints map[string]*EndpointInfo
}

// NewStaticEndpointResolver creates a new static resolver
func NewStaticEndpointResolver() *StaticEndpointResolver {
	return &StaticEndpointResolver{
		endpoints: make(map[string]*EndpointInfo),
	}
}

// RegisterEndpoint registers a static endpoint mapping
func (r *StaticEndpointResolver) RegisterEndpoint(address string, info *EndpointInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endpoints[address] = info
}

// ResolveEndpoint implements EndpointResolver
func (r *StaticEndpointResolver) ResolveEndpoint(ctx context.Context, address, action string) (*EndpointInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, ok := r.endpoints[address]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEndpointNotFound, address)
	}
	return info, nil
}

// CacheEndpoint implements EndpointResolver
func (r *StaticEndpointResolver) CacheEndpoint(address string, info *EndpointInfo) error {
	r.RegisterEndpoint(address, info)
	return nil
}

// InvalidateCache implements EndpointResolver
func (r *StaticEndpointResolver) InvalidateCache(address string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.endpoints, address)
	return nil
}

// EndpointLookupFunc performs the actual lookup of a dynamic resolver
type EndpointLookupFunc func(ctx context.Context, address, action string) (*EndpointInfo, error)

type cachedEndpoint struct {
	info      *EndpointInfo
	expiresAt time.Time
}

// DynamicEndpointResolver caches the results of a lookup function
type DynamicEndpointResolver struct {
	mu     sync.RWMutex
	cache  map[string]*cachedEndpoint
	lookup EndpointLookupFunc
	ttl    time.Duration
	now    func() time.Time
}

// NewDynamicEndpointResolver creates a resolver with dynamic lookup capability
func NewDynamicEndpointResolver(lookup EndpointLookupFunc, ttl time.Duration) *DynamicEndpointResolver {
	return &DynamicEndpointResolver{
		cache:  make(map[string]*cachedEndpoint),
		lookup: lookup,
		ttl:    ttl,
		now:    time.Now,
	}
}

func cacheKey(address, action string) string {
	return address + "|" + action
}

// ResolveEndpoint implements EndpointResolver with caching
func (r *DynamicEndpointResolver) ResolveEndpoint(ctx context.Context, address, action string) (*EndpointInfo, error) {
	key := cacheKey(address, action)

	r.mu.RLock()
	cached, ok := r.cache[key]
	r.mu.RUnlock()

	if ok && r.now().Before(cached.expiresAt) {
		return cached.info, nil
	}

	if r.lookup == nil {
		return nil, fmt.Errorf("%w: no lookup function configured", ErrEndpointNotFound)
	}

	info, err := r.lookup(ctx, address, action)
	if err != nil {
		return nil, err
	}
	_ = r.CacheEndpoint(key, info)
	return info, nil
}

// CacheEndpoint implements EndpointResolver
func (r *DynamicEndpointResolver) CacheEndpoint(key string, info *EndpointInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache[key] = &cachedEndpoint{
		info:      info,
		expiresAt: r.now().Add(r.ttl),
	}
	return nil
}

// InvalidateCache implements EndpointResolver
func (r *DynamicEndpointResolver) InvalidateCache(key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cache, key)
	return nil
}

// MultiEndpointResolver tries multiple resolvers in order
type MultiEndpointResolver struct {
	resolvers []EndpointResolver
}

// NewMultiResolver creates a resolver that tries multiple resolvers in order
func NewMultiResolver(resolvers ...EndpointResolver) *MultiEndpointResolver {
	return &MultiEndpointResolver{resolvers: resolvers}
}

// ResolveEndpoint implements EndpointResolver by trying each resolver in order
func (r *MultiEndpointResolver) ResolveEndpoint(ctx context.Context, address, action string) (*EndpointInfo, error) {
	for _, resolver := range r.resolvers {
		info, err := resolver.ResolveEndpoint(ctx, address, action)
		if err == nil {
			return info, nil
		}
	}
	return nil, fmt.Errorf("%w: %s (tried %d resolvers)", ErrEndpointNotFound, address, len(r.resolvers))
}

// CacheEndpoint implements EndpointResolver by caching in the first resolver
func (r *MultiEndpointResolver) CacheEndpoint(key string, info *EndpointInfo) error {
	if len(r.resolvers) == 0 {
		return errors.New("no resolvers configured")
	}
	return r.resolvers[0].CacheEndpoint(key, info)
}

// InvalidateCache implements EndpointResolver by invalidating in all resolvers
func (r *MultiEndpointResolver) InvalidateCache(key string) error {
	for _, resolver := range r.resolvers {
		_ = resolver.InvalidateCache(key)
	}
	return nil
}

package exchange

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirosfoundation/go-soapmep/pkg/operation"
)

// Table maps correlation keys to live exchanges
type Table struct {
	mu        sync.RWMutex
	exchanges map[string]*Context
}

// NewTable creates an empty table
func NewTable() *Table {
	return &Table{exchanges: make(map[string]*Context)}
}

// Create registers a new exchange under key
func (t *Table) Create(key string, desc *operation.Descriptor) (*Context, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.exchanges[key]; exists {
		return nil, fmt.Errorf("%w: %s", ErrExchangeExists, key)
	}
	c := NewContext(key, desc)
	t.exchanges[key] = c
	return c, nil
}

// Get returns the exchange registered under key
func (t *Table) Get(key string) (*Context, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	c, ok := t.exchanges[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownExchange, key)
	}
	return c, nil
}

// Remove unregisters key and returns the exchange it held
func (t *Table) Remove(key string) (*Context, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	c, ok := t.exchanges[key]
	if ok {
		delete(t.exchanges, key)
	}
	return c, ok
}

// RemoveIf unregisters key only while it still maps to c. It reports
// whether c was removed.
func (t *Table) RemoveIf(key string, c *Context) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.exchanges[key] != c {
		return false
	}
	delete(t.exchanges, key)
	return true
}

// Len returns the number of registered exchanges
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.exchanges)
}

// Range calls fn for each exchange until fn returns false. fn runs
// without the table lock held.
func (t *Table) Range(fn func(key string, c *Context) bool) {
	t.mu.RLock()
	keys := make([]string, 0, len(t.exchanges))
	ctxs := make([]*Context, 0, len(t.exchanges))
	for k, c := range t.exchanges {
		keys = append(keys, k)
		ctxs = append(ctxs, c)
	}
	t.mu.RUnlock()

	for i := range keys {
		if !fn(keys[i], ctxs[i]) {
			return
		}
	}
}

// Expired returns the keys of exchanges created more than ttl before now
func (t *Table) Expired(now time.Time, ttl time.Duration) []string {
	cutoff := now.Add(-ttl)

	t.mu.RLock()
	defer t.mu.RUnlock()

	var keys []string
	for k, c := range t.exchanges {
		if c.createdAt.Before(cutoff) {
			keys = append(keys, k)
		}
	}
	return keys
}

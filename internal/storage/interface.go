// Package storage provides the exchange archive.
//
// Finished and reaped exchanges are archived as [exchange.Record] values so
// they can be inspected after the engine has released them.
//
// # Implementations
//
// [MemoryStore] keeps records in process and is used when no database is
// configured. The mongodb sub-package provides the MongoDB implementation.
//
// # Concurrency
//
// All store implementations must be safe for concurrent use from multiple
// goroutines.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/sirosfoundation/go-soapmep/pkg/exchange"
)

// ErrNotFound is returned when no record matches
var ErrNotFound = errors.New("record not found")

// Store archives exchange records
type Store interface {
	// Archive stores or replaces the record of an exchange
	Archive(ctx context.Context, record exchange.Record) error

	// GetExchange retrieves a record by exchange ID
	GetExchange(ctx context.Context, id string) (*exchange.Record, error)

	// ListExchanges returns records, newest first
	ListExchanges(ctx context.Context, filter *ExchangeFilter) ([]*exchange.Record, error)

	// CountExchanges returns the number of matching records
	CountExchanges(ctx context.Context, filter *ExchangeFilter) (int64, error)

	// Close releases storage resources
	Close(ctx context.Context) error

	// Ping checks database connectivity
	Ping(ctx context.Context) error
}

// ExchangeFilter selects archived records
type ExchangeFilter struct {
	Operation string
	State     string
	Since     *time.Time
	Limit     int
	Offset    int
}

// Matches reports whether r passes the filter
func (f *ExchangeFilter) Matches(r *exchange.Record) bool {
	if f == nil {
		return true
	}
	if f.Operation != "" && r.Operation != f.Operation {
		return false
	}
	if f.State != "" && r.State != f.State {
		return false
	}
	if f.Since != nil && r.CreatedAt.Before(*f.Since) {
		return false
	}
	return true
}

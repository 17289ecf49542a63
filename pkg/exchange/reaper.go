package exchange

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// ReaperConfig configures a Reaper
type ReaperConfig struct {
	// TTL is the maximum age of an exchange
	TTL time.Duration

	// Interval between sweeps
	Interval time.Duration

	// OnReap is called for every discarded exchange after it was removed
	// from the table
	OnReap func(key string, c *Context)

	Logger *slog.Logger
}

// DefaultReaperConfig returns the default reaper settings
func DefaultReaperConfig() ReaperConfig {
	return ReaperConfig{
		TTL:      5 * time.Minute,
		Interval: time.Minute,
	}
}

// Reaper periodically discards exchanges that outlived their TTL
type Reaper struct {
	table    *Table
	ttl      time.Duration
	interval time.Duration
	onReap   func(key string, c *Context)
	logger   *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewReaper creates a reaper for table
func NewReaper(table *Table, cfg ReaperConfig) *Reaper {
	def := DefaultReaperConfig()
	if cfg.TTL <= 0 {
		cfg.TTL = def.TTL
	}
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Reaper{
		table:    table,
		ttl:      cfg.TTL,
		interval: cfg.Interval,
		onReap:   cfg.OnReap,
		logger:   cfg.Logger,
	}
}

// Start begins periodic sweeping until ctx ends or Stop is called
func (r *Reaper) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	r.wg.Add(1)
	go r.run(ctx)
	r.logger.Debug("exchange reaper started", "ttl", r.ttl, "interval", r.interval)
}

// Stop ends sweeping and waits for a running sweep to finish
func (r *Reaper) Stop() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	r.wg.Wait()
	r.cancel = nil
}

func (r *Reaper) run(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			r.Sweep(now)
		}
	}
}

// Sweep discards every exchange older than the TTL at now and returns
// how many were removed
func (r *Reaper) Sweep(now time.Time) int {
	reaped := 0
	for _, key := range r.table.Expired(now, r.ttl) {
		c, err := r.table.Get(key)
		if err != nil || !r.table.RemoveIf(key, c) {
			continue
		}
		state := c.State()
		c.Discard()
		reaped++

		r.logger.Debug("exchange reaped",
			slog.String("exchange_id", key),
			slog.String("operation", c.Descriptor().Name()),
			slog.String("state", state.String()))

		if r.onReap != nil {
			r.onReap(key, c)
		}
	}
	return reaped
}

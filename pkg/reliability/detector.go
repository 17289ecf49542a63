package reliability

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/sirosfoundation/go-soapmep/pkg/message"
)

// KeyFunc derives the duplicate detection key of a message
type KeyFunc func(msg *message.Message) string

// IDKey keys messages by ID
func IDKey(msg *message.Message) string {
	return msg.ID
}

// ContentKey keys byte payloads by content digest and other payloads by ID
func ContentKey(msg *message.Message) string {
	if b, ok := message.AsBytes(msg); ok {
		return ComputeMessageHash(b.Data)
	}
	return msg.ID
}

// Option configures a Detector
type Option func(*Detector)

// WithKeyFunc sets the key derivation
func WithKeyFunc(fn KeyFunc) Option {
	return func(d *Detector) {
		d.key = fn
	}
}

// WithSweepInterval sets how often expired keys are dropped
func WithSweepInterval(interval time.Duration) Option {
	return func(d *Detector) {
		d.interval = interval
	}
}

// Detector remembers received messages within a window
type Detector struct {
	mu       sync.Mutex
	received map[string]time.Time
	window   time.Duration
	interval time.Duration
	key      KeyFunc

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewDetector creates a detector with the given duplicate window
func NewDetector(window time.Duration, opts ...Option) *Detector {
	d := &Detector{
		received: make(map[string]time.Time),
		window:   window,
		interval: time.Hour,
		key:      IDKey,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Key returns the detection key of msg
func (d *Detector) Key(msg *message.Message) string {
	return d.key(msg)
}

// Check records key as received at now and reports whether it was
// already received within the window
func (d *Detector) Check(key string, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if at, ok := d.received[key]; ok && now.Sub(at) < d.window {
		return true
	}
	d.received[key] = now
	return false
}

// IsDuplicate reports whether key was received within the window
func (d *Detector) IsDuplicate(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	at, ok := d.received[key]
	return ok && time.Since(at) < d.window
}

// Forget drops key, allowing it to be received again
func (d *Detector) Forget(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.received, key)
}

// Len returns the number of remembered keys
func (d *Detector) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.received)
}

// Sweep drops keys older than the window at now
func (d *Detector) Sweep(now time.Time) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	removed := 0
	for key, at := range d.received {
		if now.Sub(at) > d.window {
			delete(d.received, key)
			removed++
		}
	}
	return removed
}

// Start sweeps expired keys periodically until ctx ends or Stop is called
func (d *Detector) Start(ctx context.Context) {
	ctx, d.cancel = context.WithCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ticker := time.NewTicker(d.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				d.Sweep(now)
			}
		}
	}()
}

// Stop ends periodic sweeping
func (d *Detector) Stop() {
	if d.cancel == nil {
		return
	}
	d.cancel()
	d.wg.Wait()
	d.cancel = nil
}

// ComputeMessageHash computes a hash of message content for duplicate detection
func ComputeMessageHash(content []byte) string {
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:])
}

package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sirosfoundation/go-soapmep/pkg/exchange"
	"github.com/sirosfoundation/go-soapmep/pkg/message"
	"github.com/sirosfoundation/go-soapmep/pkg/operation"
	"github.com/sirosfoundation/go-soapmep/pkg/pipeline"
)

var (
	// ErrEngineNotStarted is returned when operations are attempted on a stopped engine
	ErrEngineNotStarted = errors.New("engine not started")
	// ErrEngineAlreadyStarted is returned when Start is called on a running engine
	ErrEngineAlreadyStarted = errors.New("engine already started")
	// ErrUnhandledFault wraps a phase fault that no fault flow processed
	ErrUnhandledFault = errors.New("unhandled fault")
	// ErrInvalidMessage is returned for messages the engine cannot dispatch
	ErrInvalidMessage = errors.New("invalid message")
	// ErrNoTransport is returned when sending without a transport
	ErrNoTransport = errors.New("no transport configured")
	// ErrNoReceiver is returned when no receiver handles an inbound operation
	ErrNoReceiver = errors.New("no receiver for operation")
)

// Transport delivers processed outbound messages. A transport that obtains
// a reply synchronously hands it to the Sink it was bound to.
type Transport interface {
	Send(ctx context.Context, msg *message.Message) error
}

// Sink accepts inbound messages. The returned message, if any, is the
// synchronous reply for the transport to deliver.
type Sink interface {
	Receive(ctx context.Context, msg *message.Message) (*message.Message, error)
}

// Binder is implemented by transports that deliver replies to a Sink
type Binder interface {
	Bind(sink Sink)
}

// PhaseResolver builds the flows of an operation from its phase identifiers
type PhaseResolver interface {
	Build(src pipeline.FlowSource) (*pipeline.Flows, error)
}

// Archiver stores the record of finished exchanges
type Archiver interface {
	Archive(ctx context.Context, record exchange.Record) error
}

// Config holds configuration for the engine
type Config struct {
	Resolver  operation.Resolver
	Phases    PhaseResolver
	Transport Transport

	Table    *exchange.Table
	Logger   *slog.Logger
	Observer Observer
	Archiver Archiver

	// DefaultTimeout bounds blocking sends without an explicit timeout
	DefaultTimeout time.Duration
	// ExchangeTTL is the age after which live exchanges are discarded
	ExchangeTTL time.Duration
	// ReapInterval is the period between reaper sweeps
	ReapInterval time.Duration
}

// Engine is the dispatcher of message exchanges
type Engine struct {
	resolver  operation.Resolver
	phases    PhaseResolver
	transport Transport
	table     *exchange.Table
	reaper    *exchange.Reaper
	logger    *slog.Logger
	observer  Observer
	archiver  Archiver

	defaultTimeout time.Duration

	mu        sync.RWMutex
	running   bool
	receivers map[string]Receiver
	callbacks map[string]Callback

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an engine with the provided configuration
func New(cfg Config) (*Engine, error) {
	if cfg.Resolver == nil {
		return nil, errors.New("resolver is required")
	}
	if cfg.Phases == nil {
		return nil, errors.New("phase resolver is required")
	}

	if cfg.Table == nil {
		cfg.Table = exchange.NewTable()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Observer == nil {
		cfg.Observer = nopObserver{}
	}
	if cfg.DefaultTimeout == 0 {
		cfg.DefaultTimeout = 30 * time.Second
	}
	if cfg.ExchangeTTL == 0 {
		cfg.ExchangeTTL = 5 * time.Minute
	}
	if cfg.ReapInterval == 0 {
		cfg.ReapInterval = time.Minute
	}

	e := &Engine{
		resolver:       cfg.Resolver,
		phases:         cfg.Phases,
		transport:      cfg.Transport,
		table:          cfg.Table,
		logger:         cfg.Logger.With("component", "engine"),
		observer:       cfg.Observer,
		archiver:       cfg.Archiver,
		defaultTimeout: cfg.DefaultTimeout,
		receivers:      make(map[string]Receiver),
		callbacks:      make(map[string]Callback),
	}
	e.reaper = exchange.NewReaper(cfg.Table, exchange.ReaperConfig{
		TTL:      cfg.ExchangeTTL,
		Interval: cfg.ReapInterval,
		OnReap:   e.reaped,
		Logger:   e.logger,
	})

	if b, ok := cfg.Transport.(Binder); ok {
		b.Bind(e)
	}
	return e, nil
}

// Start begins reaping expired exchanges
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return ErrEngineAlreadyStarted
	}

	ctx, e.cancel = context.WithCancel(ctx)
	e.running = true
	e.reaper.Start(ctx)

	e.logger.Info("engine started", "default_timeout", e.defaultTimeout)
	return nil
}

// Stop halts the reaper and waits for in-flight transport hand-offs
func (e *Engine) Stop() error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return ErrEngineNotStarted
	}
	e.running = false
	e.cancel()
	e.mu.Unlock()

	e.reaper.Stop()
	e.wg.Wait()

	e.logger.Info("engine stopped", "live_exchanges", e.table.Len())
	return nil
}

// Handle registers the receiver for inbound exchanges of an operation
func (e *Engine) Handle(operationName string, r Receiver) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.receivers[operationName] = r
}

// Exchange returns the live exchange registered under key
func (e *Engine) Exchange(key string) (*exchange.Context, error) {
	return e.table.Get(key)
}

// Exchanges returns records of all live exchanges
func (e *Engine) Exchanges() []exchange.Record {
	var records []exchange.Record
	e.table.Range(func(key string, c *exchange.Context) bool {
		records = append(records, c.Snapshot())
		return true
	})
	return records
}

// Len returns the number of live exchanges
func (e *Engine) Len() int {
	return e.table.Len()
}

// Running reports whether the engine accepts messages
func (e *Engine) Running() bool {
	return e.isRunning()
}

func (e *Engine) isRunning() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

func (e *Engine) receiver(operationName string) (Receiver, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	r, ok := e.receivers[operationName]
	return r, ok
}

func (e *Engine) flows(desc *operation.Descriptor) (*pipeline.Flows, error) {
	flows, err := e.phases.Build(desc)
	if err != nil {
		return nil, fmt.Errorf("operation %s: %w", desc.Name(), err)
	}
	return flows, nil
}

// finish releases an exchange that needs no further processing
func (e *Engine) finish(ctx context.Context, c *exchange.Context) {
	state := c.State()
	if state == exchange.Complete {
		if err := c.Cleanup(); err != nil {
			e.logger.Debug("cleanup skipped", exchangeAttr(c.ID()), errAttr(err))
		}
	} else {
		c.Discard()
	}
	e.table.RemoveIf(c.ID(), c)

	desc := c.Descriptor()
	e.observer.ExchangeFinished(desc.Name(), desc.Variant(), state, time.Since(c.CreatedAt()))
	e.archive(ctx, c)
}

func (e *Engine) archive(ctx context.Context, c *exchange.Context) {
	if e.archiver == nil {
		return
	}
	if err := e.archiver.Archive(context.WithoutCancel(ctx), c.Snapshot()); err != nil {
		e.logger.Warn("failed to archive exchange", exchangeAttr(c.ID()), errAttr(err))
	}
}

// reaped is invoked by the reaper for each discarded exchange
func (e *Engine) reaped(key string, c *exchange.Context) {
	desc := c.Descriptor()
	e.observer.ExchangeReaped(desc.Name())
	e.logger.Warn("exchange expired", exchangeAttr(key), operationAttr(desc.Name()))

	if cb, ok := e.popCallback(key); ok {
		cb.OnError(fmt.Errorf("%w: %s expired", exchange.ErrExchangeClosed, key))
	}
	e.archive(context.Background(), c)
}

func (e *Engine) rejected(desc *operation.Descriptor, key string, err error) {
	e.observer.TransitionRejected(desc.Name(), err)
	e.logger.Warn("message rejected", exchangeAttr(key), operationAttr(desc.Name()), errAttr(err))
}

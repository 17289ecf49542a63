// Package metrics provides exchange metrics collection.
// The Collector implements engine.Observer and exposes Prometheus
// collectors for exchange lifecycle, rejected transitions and phase faults.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sirosfoundation/go-soapmep/pkg/engine"
	"github.com/sirosfoundation/go-soapmep/pkg/exchange"
	"github.com/sirosfoundation/go-soapmep/pkg/mep"
	"github.com/sirosfoundation/go-soapmep/pkg/message"
)

// Collector provides exchange metrics collection.
type Collector struct {
	registry *prometheus.Registry

	exchangesStarted  *prometheus.CounterVec
	exchangesFinished *prometheus.CounterVec
	exchangesActive   *prometheus.GaugeVec
	exchangeDuration  *prometheus.HistogramVec
	exchangeTimeouts  *prometheus.CounterVec
	exchangesReaped   *prometheus.CounterVec

	transitionsRejected *prometheus.CounterVec
	phaseFaults         *prometheus.CounterVec

	uptime    prometheus.Gauge
	startTime time.Time
}

var _ engine.Observer = (*Collector)(nil)

// NewCollector creates a new exchange metrics collector.
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "soapmep"
	}

	c := &Collector{
		registry:  prometheus.NewRegistry(),
		startTime: time.Now(),
	}

	c.exchangesStarted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "exchange",
			Name:      "started_total",
			Help:      "Total number of exchanges started",
		},
		[]string{"operation", "mep"},
	)

	c.exchangesFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "exchange",
			Name:      "finished_total",
			Help:      "Total number of exchanges finished, by final state",
		},
		[]string{"operation", "mep", "state"},
	)

	c.exchangesActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "exchange",
			Name:      "active",
			Help:      "Exchanges currently held in the correlation table",
		},
		[]string{"operation"},
	)

	c.exchangeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "exchange",
			Name:      "duration_seconds",
			Help:      "Time from exchange creation to completion",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 16), // 1ms to ~30s
		},
		[]string{"operation", "mep"},
	)

	c.exchangeTimeouts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "exchange",
			Name:      "timeouts_total",
			Help:      "Total number of blocking waits that timed out",
		},
		[]string{"operation"},
	)

	c.exchangesReaped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "exchange",
			Name:      "reaped_total",
			Help:      "Total number of abandoned exchanges discarded by the reaper",
		},
		[]string{"operation"},
	)

	c.transitionsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "exchange",
			Name:      "rejected_total",
			Help:      "Total number of rejected slot transitions",
		},
		[]string{"operation", "reason"},
	)

	c.phaseFaults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "faults_total",
			Help:      "Total number of faults raised by phases",
		},
		[]string{"operation", "flow", "phase"},
	)

	c.uptime = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Engine uptime in seconds",
		},
	)

	c.registry.MustRegister(
		c.exchangesStarted,
		c.exchangesFinished,
		c.exchangesActive,
		c.exchangeDuration,
		c.exchangeTimeouts,
		c.exchangesReaped,
		c.transitionsRejected,
		c.phaseFaults,
		c.uptime,
	)

	return c
}

// Registry returns the Prometheus registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ExchangeStarted implements engine.Observer
func (c *Collector) ExchangeStarted(operation string, variant mep.Variant) {
	c.exchangesStarted.WithLabelValues(operation, variant.String()).Inc()
	c.exchangesActive.WithLabelValues(operation).Inc()
}

// ExchangeFinished implements engine.Observer
func (c *Collector) ExchangeFinished(operation string, variant mep.Variant, state exchange.State, elapsed time.Duration) {
	c.exchangesFinished.WithLabelValues(operation, variant.String(), state.String()).Inc()
	c.exchangesActive.WithLabelValues(operation).Dec()
	if state == exchange.Complete || state == exchange.CleanedUp {
		c.exchangeDuration.WithLabelValues(operation, variant.String()).Observe(elapsed.Seconds())
	}
}

// ExchangeTimedOut implements engine.Observer
func (c *Collector) ExchangeTimedOut(operation string) {
	c.exchangeTimeouts.WithLabelValues(operation).Inc()
}

// ExchangeReaped implements engine.Observer
func (c *Collector) ExchangeReaped(operation string) {
	c.exchangesReaped.WithLabelValues(operation).Inc()
	c.exchangesActive.WithLabelValues(operation).Dec()
}

// TransitionRejected implements engine.Observer
func (c *Collector) TransitionRejected(operation string, err error) {
	c.transitionsRejected.WithLabelValues(operation, Reason(err)).Inc()
}

// PhaseFault implements engine.Observer
func (c *Collector) PhaseFault(operation string, flow message.Direction, phase string) {
	c.phaseFaults.WithLabelValues(operation, flow.String(), phase).Inc()
}

// UpdateUptime updates the uptime gauge.
func (c *Collector) UpdateUptime() {
	c.uptime.Set(time.Since(c.startTime).Seconds())
}

// Reason maps a transition error to a bounded label value
func Reason(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, mep.ErrUnsupportedSlot):
		return "unsupported_slot"
	case errors.Is(err, exchange.ErrExchangeComplete):
		return "complete"
	case errors.Is(err, exchange.ErrExchangeClosed):
		return "closed"
	case errors.Is(err, exchange.ErrOutOfOrder):
		return "out_of_order"
	case errors.Is(err, exchange.ErrSlotFilled):
		return "slot_filled"
	case errors.Is(err, exchange.ErrExchangeExists):
		return "duplicate"
	default:
		return "other"
	}
}

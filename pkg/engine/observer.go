package engine

import (
	"time"

	"github.com/sirosfoundation/go-soapmep/pkg/exchange"
	"github.com/sirosfoundation/go-soapmep/pkg/mep"
	"github.com/sirosfoundation/go-soapmep/pkg/message"
)

// Observer receives engine events, typically for metrics
type Observer interface {
	ExchangeStarted(operation string, variant mep.Variant)
	ExchangeFinished(operation string, variant mep.Variant, state exchange.State, elapsed time.Duration)
	ExchangeTimedOut(operation string)
	ExchangeReaped(operation string)
	TransitionRejected(operation string, err error)
	PhaseFault(operation string, flow message.Direction, phase string)
}

type nopObserver struct{}

func (nopObserver) ExchangeStarted(string, mep.Variant) {}

func (nopObserver) ExchangeFinished(string, mep.Variant, exchange.State, time.Duration) {}

func (nopObserver) ExchangeTimedOut(string) {}

func (nopObserver) ExchangeReaped(string) {}

func (nopObserver) TransitionRejected(string, error) {}

func (nopObserver) PhaseFault(string, message.Direction, string) {}

package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirosfoundation/go-soapmep/pkg/exchange"
	"github.com/sirosfoundation/go-soapmep/pkg/mep"
	"github.com/sirosfoundation/go-soapmep/pkg/message"
	"github.com/sirosfoundation/go-soapmep/pkg/operation"
	"github.com/sirosfoundation/go-soapmep/pkg/pipeline"
)

// Send starts a client-side exchange with msg, which must have direction
// out. An empty To is filled from the operation endpoint.
func (e *Engine) Send(ctx context.Context, msg *message.Message, opts SendOptions) (*Result, error) {
	if !e.isRunning() {
		return nil, ErrEngineNotStarted
	}
	if msg == nil || msg.Direction() != message.Out {
		return nil, fmt.Errorf("%w: outbound message must have direction out", ErrInvalidMessage)
	}

	desc, err := e.resolve(ctx, msg, opts.Operation)
	if err != nil {
		return nil, err
	}
	if desc.Pattern().Initiator() != mep.Out {
		return nil, fmt.Errorf("%w: operation %s (%s) is not initiated by an outbound message",
			ErrInvalidMessage, desc.Name(), desc.Variant())
	}
	if e.transport == nil {
		return nil, ErrNoTransport
	}
	if msg.To == "" {
		msg.To = desc.Endpoint()
	}

	c, err := e.table.Create(msg.ID, desc)
	if err != nil {
		return nil, err
	}
	e.observer.ExchangeStarted(desc.Name(), desc.Variant())
	logger := e.logger.With(exchangeAttr(c.ID()), operationAttr(desc.Name()))

	// the exchange holds the descriptor, so its phase lists are fixed from here
	flows, err := e.flows(desc)
	if err != nil {
		e.finish(ctx, c)
		return nil, err
	}
	claim, err := c.Claim(mep.Out)
	if err != nil {
		e.finish(ctx, c)
		return nil, err
	}

	outcome := flows.Run(ctx, message.Out, msg)
	if outcome.Kind == pipeline.Faulted {
		return e.outboundFault(ctx, c, claim, outcome)
	}
	if err := claim.Commit(outcome.Message); err != nil {
		e.finish(ctx, c)
		return nil, err
	}
	out := outcome.Message

	if opts.Callback != nil {
		e.registerCallback(c.ID(), opts.Callback)
		e.wg.Add(1)
		go e.handOff(context.WithoutCancel(ctx), c, out, e.timeout(opts))

		logger.Debug("exchange handed off")
		return &Result{ExchangeID: c.ID(), Operation: desc.Name(), State: c.State()}, nil
	}

	if err := e.transport.Send(ctx, out); err != nil {
		logger.Warn("transport send failed", errAttr(err))
		e.finish(ctx, c)
		return nil, fmt.Errorf("send %s: %w", c.ID(), err)
	}

	if desc.Pattern().Terminal(mep.Out) {
		res := e.result(c)
		e.finish(ctx, c)
		return res, nil
	}

	timeout := e.timeout(opts)
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := c.Wait(waitCtx); err != nil {
		if errors.Is(err, exchange.ErrExchangeTimeout) {
			e.observer.ExchangeTimedOut(desc.Name())
			logger.Warn("exchange timed out",
				"timeout", timeout,
				"state", c.State().String())
		}
		return nil, err
	}
	return e.collect(ctx, c)
}

func (e *Engine) resolve(ctx context.Context, msg *message.Message, name string) (*operation.Descriptor, error) {
	if name != "" {
		return e.resolver.Get(name)
	}
	return e.resolver.Resolve(ctx, msg)
}

func (e *Engine) timeout(opts SendOptions) time.Duration {
	if opts.Timeout > 0 {
		return opts.Timeout
	}
	return e.defaultTimeout
}

// handOff runs the transport send of a non-blocking exchange
func (e *Engine) handOff(ctx context.Context, c *exchange.Context, out *message.Message, timeout time.Duration) {
	defer e.wg.Done()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := e.transport.Send(ctx, out); err != nil {
		e.logger.Warn("transport send failed", exchangeAttr(c.ID()), errAttr(err))
		if cb, ok := e.popCallback(c.ID()); ok {
			e.finish(ctx, c)
			cb.OnError(fmt.Errorf("send %s: %w", c.ID(), err))
		}
		return
	}

	if c.Descriptor().Pattern().Terminal(mep.Out) {
		if cb, ok := e.popCallback(c.ID()); ok {
			res := e.result(c)
			e.finish(ctx, c)
			cb.OnComplete(res)
		}
	}
}

// outboundFault finishes an exchange whose out flow faulted
func (e *Engine) outboundFault(ctx context.Context, c *exchange.Context, claim *exchange.Claim, outcome pipeline.Outcome) (*Result, error) {
	desc := c.Descriptor()
	e.observer.PhaseFault(desc.Name(), message.Out, outcome.Fault.Phase)
	recErr := e.recordFault(c, claim, mep.OutFault, outcome.Message)

	res := e.result(c)
	if res.Fault == nil {
		res.Fault = outcome.Message
	}
	e.finish(ctx, c)

	if recErr != nil {
		return res, recErr
	}
	if !outcome.Handled {
		return res, fmt.Errorf("%w: %w", ErrUnhandledFault, outcome.Fault)
	}
	return res, nil
}

// collect builds the result of a completed blocking exchange
func (e *Engine) collect(ctx context.Context, c *exchange.Context) (*Result, error) {
	res := e.result(c)
	e.finish(ctx, c)
	if res.Fault != nil {
		return res, newReplyFault(c.ID(), res.Fault)
	}
	return res, nil
}

func (e *Engine) result(c *exchange.Context) *Result {
	res := &Result{
		ExchangeID: c.ID(),
		Operation:  c.Descriptor().Name(),
		State:      c.State(),
	}
	if msg, ok := c.Message(mep.In); ok && c.Descriptor().Pattern().Initiator() == mep.Out {
		res.Reply = msg
	}
	for _, slot := range []mep.Slot{mep.InFault, mep.OutFault} {
		if msg, ok := c.Message(slot); ok {
			res.Fault = msg
		}
	}
	return res
}

// recordFault settles claim with the fault message of a faulted flow.
// Patterns without the fault slot drop the claim and record nothing.
func (e *Engine) recordFault(c *exchange.Context, claim *exchange.Claim, slot mep.Slot, msg *message.Message) error {
	if !c.Descriptor().Pattern().Legal(slot) {
		claim.Abandon()
		return nil
	}
	if err := claim.Fault(slot, msg); err != nil {
		e.rejected(c.Descriptor(), c.ID(), err)
		return err
	}
	return nil
}

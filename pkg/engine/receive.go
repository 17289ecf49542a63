package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirosfoundation/go-soapmep/pkg/exchange"
	"github.com/sirosfoundation/go-soapmep/pkg/mep"
	"github.com/sirosfoundation/go-soapmep/pkg/message"
	"github.com/sirosfoundation/go-soapmep/pkg/pipeline"
)

// Receive dispatches an inbound message. Messages with RelatesTo complete
// the exchange they correlate to; other messages start a server-side
// exchange. The returned message is the synchronous reply, if any.
func (e *Engine) Receive(ctx context.Context, msg *message.Message) (*message.Message, error) {
	if !e.isRunning() {
		return nil, ErrEngineNotStarted
	}
	if msg == nil {
		return nil, fmt.Errorf("%w: nil message", ErrInvalidMessage)
	}
	if d := msg.Direction(); d != message.In && d != message.InFault {
		return nil, fmt.Errorf("%w: inbound message has direction %s", ErrInvalidMessage, d)
	}

	if msg.RelatesTo != "" {
		return nil, e.correlate(ctx, msg)
	}
	if msg.Direction().IsFault() {
		return nil, fmt.Errorf("%w: fault %s does not relate to an exchange", ErrInvalidMessage, msg.ID)
	}
	return e.serve(ctx, msg)
}

// correlate delivers a reply to the client-side exchange it relates to.
// The reply claims its slot before any phase runs, so a racing reply is
// rejected without being processed.
func (e *Engine) correlate(ctx context.Context, msg *message.Message) error {
	c, err := e.table.Get(msg.RelatesTo)
	if err != nil {
		e.logger.Warn("reply for unknown exchange discarded",
			exchangeAttr(msg.RelatesTo),
			"message_id", msg.ID)
		return err
	}
	desc := c.Descriptor()

	claim, err := c.Claim(mep.SlotFor(msg.Direction()))
	if err != nil {
		e.rejected(desc, c.ID(), err)
		return err
	}
	flows, err := e.flows(desc)
	if err != nil {
		claim.Abandon()
		return err
	}

	var runErr error
	outcome := flows.Run(ctx, msg.Direction(), msg)
	if outcome.Kind == pipeline.Delivered {
		if err := claim.Commit(outcome.Message); err != nil {
			e.rejected(desc, c.ID(), err)
			return err
		}
	} else {
		e.observer.PhaseFault(desc.Name(), msg.Direction(), outcome.Fault.Phase)
		if err := e.recordFault(c, claim, mep.SlotFor(msg.Direction().FaultFlow()), outcome.Message); err != nil {
			return err
		}
		if !outcome.Handled {
			runErr = fmt.Errorf("%w: %w", ErrUnhandledFault, outcome.Fault)
		}
	}

	e.notify(ctx, c)
	return runErr
}

// notify invokes the callback of a completed non-blocking exchange.
// Blocking exchanges are collected by the waiting sender.
func (e *Engine) notify(ctx context.Context, c *exchange.Context) {
	if c.State() != exchange.Complete {
		return
	}
	cb, ok := e.popCallback(c.ID())
	if !ok {
		return
	}

	res := e.result(c)
	e.finish(ctx, c)
	if res.Fault != nil {
		cb.OnError(newReplyFault(c.ID(), res.Fault))
		return
	}
	cb.OnComplete(res)
}

// serve runs a server-side exchange started by msg
func (e *Engine) serve(ctx context.Context, msg *message.Message) (*message.Message, error) {
	desc, err := e.resolver.Resolve(ctx, msg)
	if err != nil {
		return nil, err
	}
	pattern := desc.Pattern()
	if pattern.Initiator() != mep.In {
		return nil, fmt.Errorf("%w: operation %s (%s) is not initiated by an inbound message",
			ErrInvalidMessage, desc.Name(), desc.Variant())
	}
	recv, ok := e.receiver(desc.Name())
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoReceiver, desc.Name())
	}

	c, err := e.table.Create(msg.ID, desc)
	if err != nil {
		e.rejected(desc, msg.ID, err)
		return nil, err
	}
	e.observer.ExchangeStarted(desc.Name(), desc.Variant())
	defer e.finish(ctx, c)

	// the exchange holds the descriptor, so its phase lists are fixed from here
	flows, err := e.flows(desc)
	if err != nil {
		return nil, err
	}
	claim, err := c.Claim(mep.In)
	if err != nil {
		e.rejected(desc, c.ID(), err)
		return nil, err
	}

	outcome := flows.Run(ctx, message.In, msg)
	if outcome.Kind == pipeline.Faulted {
		e.observer.PhaseFault(desc.Name(), message.In, outcome.Fault.Phase)
		if err := e.recordFault(c, claim, mep.InFault, outcome.Message); err != nil {
			return nil, err
		}
		if !outcome.Handled {
			return nil, fmt.Errorf("%w: %w", ErrUnhandledFault, outcome.Fault)
		}
		return outcome.Message, nil
	}
	in := outcome.Message

	// one-way requests stay claimed until the receiver accepted them, so a
	// robust-in-only fault can take the exclusive slot instead
	if pattern.Terminal(mep.In) {
		_, rerr := recv.Receive(ctx, in)
		if rerr != nil && pattern.Legal(mep.InFault) {
			return e.replyFault(ctx, c, claim, flows, in, mep.InFault, rerr)
		}
		if err := claim.Commit(in); err != nil {
			e.rejected(desc, c.ID(), err)
			return nil, err
		}
		if rerr != nil {
			return e.senderFault(ctx, c, flows, in, rerr)
		}
		return nil, nil
	}

	if err := claim.Commit(in); err != nil {
		e.rejected(desc, c.ID(), err)
		return nil, err
	}
	resp, rerr := recv.Receive(ctx, in)
	if rerr == nil && resp == nil {
		rerr = errors.New("receiver returned no response")
	}
	if rerr == nil && resp.Direction() != message.Out {
		rerr = fmt.Errorf("%w: response has direction %s", ErrInvalidMessage, resp.Direction())
	}
	if rerr != nil {
		return e.replyFault(ctx, c, nil, flows, in, mep.OutFault, rerr)
	}
	return e.reply(ctx, c, flows, in, resp)
}

// reply records and processes the response of an in-out exchange
func (e *Engine) reply(ctx context.Context, c *exchange.Context, flows *pipeline.Flows, in, resp *message.Message) (*message.Message, error) {
	if resp.RelatesTo == "" {
		resp.RelatesTo = in.ID
	}
	if err := c.AddMessage(mep.Out, resp); err != nil {
		e.rejected(c.Descriptor(), c.ID(), err)
		return nil, err
	}

	outcome := flows.Run(ctx, message.Out, resp)
	if outcome.Kind == pipeline.Faulted {
		e.observer.PhaseFault(c.Descriptor().Name(), message.Out, outcome.Fault.Phase)
		if !outcome.Handled {
			return nil, fmt.Errorf("%w: %w", ErrUnhandledFault, outcome.Fault)
		}
	}
	return outcome.Message, nil
}

// replyFault turns a receiver error into a fault message in slot. A held
// claim is converted into the fault, otherwise the fault slot is added.
func (e *Engine) replyFault(ctx context.Context, c *exchange.Context, held *exchange.Claim, flows *pipeline.Flows, in *message.Message, slot mep.Slot, cause error) (*message.Message, error) {
	fm := in.Reply(slot.Direction(), e.receiverFault(c, slot.Direction(), cause))
	var err error
	if held != nil {
		err = held.Fault(slot, fm)
	} else {
		err = c.AddFaultMessage(slot, fm)
	}
	if err != nil {
		e.rejected(c.Descriptor(), c.ID(), err)
		return nil, err
	}

	return e.runFault(ctx, c, flows, slot.Direction(), fm)
}

// senderFault reports the receiver error of an in-only exchange. The fault
// passes through the outFault flow but takes no slot: the request stays
// recorded as received.
func (e *Engine) senderFault(ctx context.Context, c *exchange.Context, flows *pipeline.Flows, in *message.Message, cause error) (*message.Message, error) {
	fm := in.Reply(message.OutFault, e.receiverFault(c, message.OutFault, cause))
	return e.runFault(ctx, c, flows, message.OutFault, fm)
}

func (e *Engine) runFault(ctx context.Context, c *exchange.Context, flows *pipeline.Flows, dir message.Direction, fm *message.Message) (*message.Message, error) {
	outcome := flows.Run(ctx, dir, fm)
	if outcome.Kind == pipeline.Faulted {
		e.observer.PhaseFault(c.Descriptor().Name(), dir, outcome.Fault.Phase)
		return nil, fmt.Errorf("%w: %w", ErrUnhandledFault, outcome.Fault)
	}
	return outcome.Message, nil
}

func (e *Engine) receiverFault(c *exchange.Context, dir message.Direction, cause error) *pipeline.Fault {
	f, ok := pipeline.AsFault(cause)
	if !ok {
		f = &pipeline.Fault{Code: pipeline.CodeReceiver, Reason: cause.Error(), Err: cause}
	}
	e.logger.Info("receiver fault",
		exchangeAttr(c.ID()),
		operationAttr(c.Descriptor().Name()),
		slotAttr(mep.SlotFor(dir)),
		errAttr(cause))
	return f
}

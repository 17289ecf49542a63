package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/sirosfoundation/go-soapmep/pkg/exchange"
	"github.com/sirosfoundation/go-soapmep/pkg/message"
	"github.com/sirosfoundation/go-soapmep/pkg/pipeline"
)

// Receiver is application code handling inbound-initiated exchanges.
// For in-out operations the returned message is the response.
type Receiver interface {
	Receive(ctx context.Context, msg *message.Message) (*message.Message, error)
}

// ReceiverFunc adapts a function to Receiver
type ReceiverFunc func(ctx context.Context, msg *message.Message) (*message.Message, error)

// Receive implements Receiver
func (f ReceiverFunc) Receive(ctx context.Context, msg *message.Message) (*message.Message, error) {
	return f(ctx, msg)
}

// Callback is notified when a non-blocking exchange finishes
type Callback interface {
	OnComplete(res *Result)
	OnError(err error)
}

// CallbackFuncs adapts a pair of functions to Callback
type CallbackFuncs struct {
	Complete func(res *Result)
	Error    func(err error)
}

// OnComplete implements Callback
func (c CallbackFuncs) OnComplete(res *Result) {
	if c.Complete != nil {
		c.Complete(res)
	}
}

// OnError implements Callback
func (c CallbackFuncs) OnError(err error) {
	if c.Error != nil {
		c.Error(err)
	}
}

// SendOptions controls a single Send
type SendOptions struct {
	// Operation selects the descriptor by name. When empty the message is
	// resolved by action and address.
	Operation string

	// Timeout bounds a blocking send; zero uses the engine default
	Timeout time.Duration

	// Callback switches the send to non-blocking mode
	Callback Callback
}

// Result describes the outcome of an exchange
type Result struct {
	ExchangeID string
	Operation  string
	State      exchange.State

	// Reply is the inbound response of an out-in exchange
	Reply *message.Message

	// Fault is the fault message when the exchange ended in a fault
	Fault *message.Message
}

// ReplyFault reports a fault reply received for an exchange
type ReplyFault struct {
	ExchangeID string
	Code       string
	Reason     string
	Message    *message.Message
}

func newReplyFault(exchangeID string, msg *message.Message) *ReplyFault {
	rf := &ReplyFault{ExchangeID: exchangeID, Message: msg, Code: pipeline.CodeReceiver}
	if f, ok := msg.Payload.(*pipeline.Fault); ok {
		rf.Code = f.Code
		rf.Reason = f.Reason
	}
	return rf
}

// Error implements error
func (f *ReplyFault) Error() string {
	return fmt.Sprintf("fault reply for exchange %s: %s: %s", f.ExchangeID, f.Code, f.Reason)
}

// Unwrap returns the phase fault carried by the fault message, if any
func (f *ReplyFault) Unwrap() error {
	if f.Message == nil {
		return nil
	}
	if pf, ok := f.Message.Payload.(*pipeline.Fault); ok {
		return pf
	}
	return nil
}

func (e *Engine) registerCallback(key string, cb Callback) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.callbacks[key] = cb
}

func (e *Engine) popCallback(key string) (Callback, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cb, ok := e.callbacks[key]
	if ok {
		delete(e.callbacks, key)
	}
	return cb, ok
}

func (e *Engine) hasCallback(key string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.callbacks[key]
	return ok
}

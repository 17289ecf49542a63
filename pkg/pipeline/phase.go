package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirosfoundation/go-soapmep/pkg/message"
)

// SOAP 1.2 fault codes used by the engine
const (
	CodeSender   = "Sender"
	CodeReceiver = "Receiver"
)

// Phase is a single processing stage
type Phase interface {
	// Name identifies the phase in operation configuration
	Name() string

	// Invoke processes msg. Returning a nil message keeps msg unchanged;
	// returning an error faults the flow.
	Invoke(ctx context.Context, msg *message.Message) (*message.Message, error)
}

// PhaseFunc is the processing step of a function phase
type PhaseFunc func(ctx context.Context, msg *message.Message) (*message.Message, error)

type funcPhase struct {
	name string
	fn   PhaseFunc
}

// NewPhase creates a phase from a function
func NewPhase(name string, fn PhaseFunc) Phase {
	return &funcPhase{name: name, fn: fn}
}

func (p *funcPhase) Name() string { return p.name }

func (p *funcPhase) Invoke(ctx context.Context, msg *message.Message) (*message.Message, error) {
	return p.fn(ctx, msg)
}

// Fault is raised by a phase to divert a message into the fault flow
type Fault struct {
	Phase  string
	Code   string
	Reason string

	// Message is the fault message routed through the fault flow.
	// It is built from the faulting message when the phase leaves it nil.
	Message *message.Message

	Err error
}

// NewFault creates a fault with a SOAP fault code and reason
func NewFault(code, reason string) *Fault {
	return &Fault{Code: code, Reason: reason}
}

// Error implements error
func (f *Fault) Error() string {
	msg := f.Reason
	if msg == "" && f.Err != nil {
		msg = f.Err.Error()
	}
	if f.Phase != "" {
		return fmt.Sprintf("fault in phase %s: %s: %s", f.Phase, f.Code, msg)
	}
	return fmt.Sprintf("fault: %s: %s", f.Code, msg)
}

// Unwrap returns the underlying cause
func (f *Fault) Unwrap() error {
	return f.Err
}

// AsFault extracts a *Fault from an error chain
func AsFault(err error) (*Fault, bool) {
	var f *Fault
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// toFault normalises a phase error into a fault owned by phase
func toFault(err error, phase string) *Fault {
	if f, ok := AsFault(err); ok {
		out := *f
		if out.Phase == "" {
			out.Phase = phase
		}
		if out.Code == "" {
			out.Code = CodeReceiver
		}
		return &out
	}
	return &Fault{
		Phase:  phase,
		Code:   CodeReceiver,
		Reason: err.Error(),
		Err:    err,
	}
}

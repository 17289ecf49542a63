package pipeline

import (
	"context"

	"github.com/sirosfoundation/go-soapmep/pkg/message"
)

// Pipeline is an ordered, immutable list of phases
type Pipeline struct {
	phases []Phase
}

// New creates a pipeline running phases in the given order
func New(phases ...Phase) *Pipeline {
	return &Pipeline{phases: append([]Phase(nil), phases...)}
}

// Names returns the phase names in execution order
func (p *Pipeline) Names() []string {
	if p == nil {
		return nil
	}
	names := make([]string, len(p.phases))
	for i, ph := range p.phases {
		names[i] = ph.Name()
	}
	return names
}

// Len returns the number of phases
func (p *Pipeline) Len() int {
	if p == nil {
		return 0
	}
	return len(p.phases)
}

// Run invokes each phase in order. It stops at the first phase that
// returns an error and reports it as a *Fault; later phases are not invoked.
func (p *Pipeline) Run(ctx context.Context, msg *message.Message) (*message.Message, error) {
	if p == nil {
		return msg, nil
	}

	cur := msg
	for _, ph := range p.phases {
		if err := ctx.Err(); err != nil {
			return cur, toFault(err, ph.Name())
		}
		next, err := ph.Invoke(ctx, cur)
		if err != nil {
			return cur, toFault(err, ph.Name())
		}
		if next != nil {
			cur = next
		}
	}
	return cur, nil
}

// Kind classifies the result of running a flow
type Kind int

const (
	// Delivered means the message passed every phase of its flow
	Delivered Kind = iota
	// Faulted means a phase raised a fault
	Faulted
)

func (k Kind) String() string {
	if k == Faulted {
		return "faulted"
	}
	return "delivered"
}

// Outcome is the result of Flows.Run
type Outcome struct {
	Kind Kind

	// Message is the processed message when delivered, otherwise the fault
	// message as left by the fault flow.
	Message *message.Message

	Fault *Fault

	// Handled reports whether a fault flow processed the fault
	Handled bool
}

// Flows holds the pipelines of one operation keyed by direction
type Flows struct {
	pipelines map[message.Direction]*Pipeline
}

// NewFlows creates flows from per-direction pipelines. Directions without
// a pipeline pass messages through unchanged; a missing fault pipeline
// leaves faults unhandled.
func NewFlows(pipelines map[message.Direction]*Pipeline) *Flows {
	f := &Flows{pipelines: make(map[message.Direction]*Pipeline, len(pipelines))}
	for d, p := range pipelines {
		if p != nil && p.Len() > 0 {
			f.pipelines[d] = p
		}
	}
	return f
}

// Pipeline returns the pipeline configured for direction
func (f *Flows) Pipeline(direction message.Direction) (*Pipeline, bool) {
	p, ok := f.pipelines[direction]
	return p, ok
}

// Run processes msg through the flow for direction. A fault in a normal
// flow diverts the fault message into the corresponding fault flow; a fault
// raised inside a fault flow is not re-routed.
func (f *Flows) Run(ctx context.Context, direction message.Direction, msg *message.Message) Outcome {
	out, err := f.pipelines[direction].Run(ctx, msg)
	if err == nil {
		return Outcome{Kind: Delivered, Message: out}
	}

	fault := toFault(err, "")
	faultDir := direction.FaultFlow()
	if fault.Message == nil {
		fault.Message = out.Reply(faultDir, fault)
	}

	if direction.IsFault() {
		return Outcome{Kind: Faulted, Message: fault.Message, Fault: fault}
	}

	fp, ok := f.pipelines[faultDir]
	if !ok {
		return Outcome{Kind: Faulted, Message: fault.Message, Fault: fault}
	}

	handled, ferr := fp.Run(ctx, fault.Message)
	if ferr != nil {
		inner := toFault(ferr, "")
		inner.Message = handled
		return Outcome{Kind: Faulted, Message: handled, Fault: inner}
	}
	return Outcome{Kind: Faulted, Message: handled, Fault: fault, Handled: true}
}

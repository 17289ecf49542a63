package mep

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sirosfoundation/go-soapmep/pkg/message"
)

var (
	// ErrUnsupportedSlot is returned when a slot is not legal for a pattern
	ErrUnsupportedSlot = errors.New("unsupported slot")
	// ErrUnknownVariant is returned for unrecognised MEP identifiers
	ErrUnknownVariant = errors.New("unknown MEP variant")
)

// Slot names a message position within an exchange
type Slot int

const (
	// In holds a message received by this side
	In Slot = iota
	// Out holds a message sent by this side
	Out
	// InFault holds a fault received by this side
	InFault
	// OutFault holds a fault sent by this side
	OutFault
)

var allSlots = []Slot{In, Out, InFault, OutFault}

// String returns the slot label
func (s Slot) String() string {
	return s.Direction().String()
}

// IsFault reports whether s is a fault slot
func (s Slot) IsFault() bool {
	return s == InFault || s == OutFault
}

// Direction returns the message direction that fills s
func (s Slot) Direction() message.Direction {
	switch s {
	case In:
		return message.In
	case Out:
		return message.Out
	case InFault:
		return message.InFault
	case OutFault:
		return message.OutFault
	default:
		return message.Direction(-1)
	}
}

// SlotFor returns the slot a message of direction d fills
func SlotFor(d message.Direction) Slot {
	switch d {
	case message.In:
		return In
	case message.Out:
		return Out
	case message.InFault:
		return InFault
	case message.OutFault:
		return OutFault
	default:
		return Slot(-1)
	}
}

// ParseSlot parses a slot label
func ParseSlot(label string) (Slot, error) {
	d, ok := message.ParseDirection(label)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedSlot, label)
	}
	return SlotFor(d), nil
}

type slotSet uint8

func setOf(slots ...Slot) slotSet {
	var s slotSet
	for _, slot := range slots {
		s |= 1 << uint(slot)
	}
	return s
}

func (s slotSet) has(slot Slot) bool {
	if slot < In || slot > OutFault {
		return false
	}
	return s&(1<<uint(slot)) != 0
}

// Variant enumerates the supported exchange patterns
type Variant int

const (
	// InOnly receives one message and never replies
	InOnly Variant = iota
	// RobustInOnly receives one message and may answer it with a fault
	RobustInOnly
	// InOut receives a request and replies with a response or a fault
	InOut
	// OutOnly sends one message and expects nothing back
	OutOnly
	// RobustOutOnly sends one message and may receive a fault
	RobustOutOnly
	// OutIn sends a request and waits for a response or a fault
	OutIn
)

// Variants lists every supported pattern
var Variants = []Variant{InOnly, RobustInOnly, InOut, OutOnly, RobustOutOnly, OutIn}

var variantNames = map[Variant]string{
	InOnly:        "in-only",
	RobustInOnly:  "robust-in-only",
	InOut:         "in-out",
	OutOnly:       "out-only",
	RobustOutOnly: "robust-out-only",
	OutIn:         "out-in",
}

// String returns the short name of the variant
func (v Variant) String() string {
	if name, ok := variantNames[v]; ok {
		return name
	}
	return "unknown"
}

// URI returns the WSDL 2.0 MEP URI of the variant
func (v Variant) URI() string {
	return WSDL20Namespace + v.String()
}

// Pattern is one row of the MEP table
type Pattern struct {
	variant   Variant
	legal     slotSet
	terminal  slotSet
	requires  map[Slot]Slot
	initiator Slot

	// fault flows configurable although their slot is not legal
	faultFlows slotSet
}

var table = map[Variant]*Pattern{
	InOnly: {
		variant:    InOnly,
		legal:      setOf(In),
		terminal:   setOf(In),
		faultFlows: setOf(OutFault),
		initiator:  In,
	},
	RobustInOnly: {
		variant:   RobustInOnly,
		legal:     setOf(In, InFault),
		terminal:  setOf(In, InFault),
		initiator: In,
	},
	InOut: {
		variant:   InOut,
		legal:     setOf(In, Out, InFault, OutFault),
		terminal:  setOf(Out, InFault, OutFault),
		requires:  map[Slot]Slot{Out: In, OutFault: In},
		initiator: In,
	},
	OutOnly: {
		variant:   OutOnly,
		legal:     setOf(Out),
		terminal:  setOf(Out),
		initiator: Out,
	},
	RobustOutOnly: {
		variant:   RobustOutOnly,
		legal:     setOf(Out, OutFault),
		terminal:  setOf(Out, OutFault),
		initiator: Out,
	},
	OutIn: {
		variant:   OutIn,
		legal:     setOf(Out, In, OutFault, InFault),
		terminal:  setOf(In, InFault, OutFault),
		requires:  map[Slot]Slot{In: Out, InFault: Out},
		initiator: Out,
	},
}

// Lookup returns the pattern for v, or nil for an unknown variant
func Lookup(v Variant) *Pattern {
	return table[v]
}

// Variant returns the variant the pattern describes
func (p *Pattern) Variant() Variant {
	return p.variant
}

// Legal reports whether slot may ever be filled
func (p *Pattern) Legal(slot Slot) bool {
	return p.legal.has(slot)
}

// Terminal reports whether filling slot completes the exchange
func (p *Pattern) Terminal(slot Slot) bool {
	return p.terminal.has(slot)
}

// Prerequisite returns the slot that must be filled before slot
func (p *Pattern) Prerequisite(slot Slot) (Slot, bool) {
	req, ok := p.requires[slot]
	return req, ok
}

// Initiator returns the slot that opens an exchange
func (p *Pattern) Initiator() Slot {
	return p.initiator
}

// Slots returns the legal slots in table order
func (p *Pattern) Slots() []Slot {
	var slots []Slot
	for _, s := range allSlots {
		if p.legal.has(s) {
			slots = append(slots, s)
		}
	}
	return slots
}

// Flows returns the directions a pipeline may be configured for: every
// legal slot plus the fault flow of each legal normal slot. In-only also
// carries an outFault flow for receiver faults reported to the sender
// outside the exchange.
func (p *Pattern) Flows() []message.Direction {
	flows := p.faultFlows
	for _, s := range allSlots {
		if !p.legal.has(s) {
			continue
		}
		flows |= setOf(s)
		if !s.IsFault() {
			flows |= setOf(SlotFor(s.Direction().FaultFlow()))
		}
	}

	var dirs []message.Direction
	for _, s := range allSlots {
		if flows.has(s) {
			dirs = append(dirs, s.Direction())
		}
	}
	return dirs
}

// HasFlow reports whether d is one of the pattern's flows
func (p *Pattern) HasFlow(d message.Direction) bool {
	for _, f := range p.Flows() {
		if f == d {
			return true
		}
	}
	return false
}

// Check returns ErrUnsupportedSlot if slot is not legal
func (p *Pattern) Check(slot Slot) error {
	if !p.Legal(slot) {
		return fmt.Errorf("%w: %s is not legal for %s", ErrUnsupportedSlot, slot, p.variant)
	}
	return nil
}

// MEP identifier namespaces
const (
	WSDL20Namespace = "http://www.w3.org/ns/wsdl/"
	WSDL04Namespace = "http://www.w3.org/2004/08/wsdl/"
)

// ParseURI resolves a WSDL 2.0 URI, a 2004 WSDL URI or a short name
func ParseURI(uri string) (Variant, error) {
	name := strings.TrimSpace(uri)
	name = strings.TrimPrefix(name, WSDL20Namespace)
	name = strings.TrimPrefix(name, WSDL04Namespace)
	name = strings.ToLower(name)

	for v, n := range variantNames {
		if n == name {
			return v, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownVariant, uri)
}

// MEPType is an ebMS 3.0 MEP URI
type MEPType string

const (
	// OneWay is the ebMS one-way MEP
	OneWay MEPType = "http://docs.oasis-open.org/ebxml-msg/ebms/v3.0/ns/core/200704/oneWay"

	// TwoWay is the ebMS two-way MEP
	TwoWay MEPType = "http://docs.oasis-open.org/ebxml-msg/ebms/v3.0/ns/core/200704/twoWay"
)

// MEPBinding is an ebMS 3.0 MEP binding URI
type MEPBinding string

const (
	// Push binding
	Push MEPBinding = "http://docs.oasis-open.org/ebxml-msg/ebms/v3.0/ns/core/200704/push"

	// Pull binding
	Pull MEPBinding = "http://docs.oasis-open.org/ebxml-msg/ebms/v3.0/ns/core/200704/pull"

	// PushAndPush binding for two-way
	PushAndPush MEPBinding = "http://docs.oasis-open.org/ebxml-msg/ebms/v3.0/ns/core/200704/pushAndPush"

	// PushAndPull binding
	PushAndPull MEPBinding = "http://docs.oasis-open.org/ebxml-msg/ebms/v3.0/ns/core/200704/pushAndPull"

	// PullAndPush binding
	PullAndPush MEPBinding = "http://docs.oasis-open.org/ebxml-msg/ebms/v3.0/ns/core/200704/pullAndPush"
)

// FromEBMS maps an ebMS MEP and binding onto the variant table.
// initiator is true on the side that sends the first user message.
func FromEBMS(mepType MEPType, binding MEPBinding, initiator bool) (Variant, error) {
	switch mepType {
	case OneWay:
		if binding != Push && binding != Pull {
			return 0, fmt.Errorf("%w: binding %s for one-way", ErrUnknownVariant, binding)
		}
		if initiator {
			return OutOnly, nil
		}
		return InOnly, nil
	case TwoWay:
		switch binding {
		case PushAndPush, PushAndPull, PullAndPush:
		default:
			return 0, fmt.Errorf("%w: binding %s for two-way", ErrUnknownVariant, binding)
		}
		if initiator {
			return OutIn, nil
		}
		return InOut, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnknownVariant, mepType)
	}
}

package message

import (
	"time"

	"github.com/google/uuid"
)

// Direction tags a message with the flow it travels in
type Direction int

const (
	// In is a message arriving at the local node
	In Direction = iota
	// Out is a message leaving the local node
	Out
	// InFault is a fault arriving at the local node
	InFault
	// OutFault is a fault leaving the local node
	OutFault
)

// Directions lists every direction in flow order
var Directions = []Direction{In, Out, InFault, OutFault}

// String returns the flow label of the direction
func (d Direction) String() string {
	switch d {
	case In:
		return "in"
	case Out:
		return "out"
	case InFault:
		return "inFault"
	case OutFault:
		return "outFault"
	default:
		return "unknown"
	}
}

// IsFault reports whether the direction is a fault flow
func (d Direction) IsFault() bool {
	return d == InFault || d == OutFault
}

// FaultFlow returns the fault flow that handles faults raised in d.
// Fault directions map to themselves.
func (d Direction) FaultFlow() Direction {
	switch d {
	case In:
		return InFault
	case Out:
		return OutFault
	default:
		return d
	}
}

// ParseDirection parses a flow label ("in", "out", "inFault", "outFault")
func ParseDirection(label string) (Direction, bool) {
	for _, d := range Directions {
		if d.String() == label {
			return d, true
		}
	}
	return 0, false
}

// Message is a single unit handed to the engine.
// The direction is fixed at construction.
type Message struct {
	ID         string
	RelatesTo  string
	Action     string
	To         string
	ReplyTo    string
	Timestamp  time.Time
	Properties map[string]string
	Payload    any

	direction Direction
}

// Option represents a functional option for New
type Option func(*Message)

// New creates a message travelling in the given direction
func New(direction Direction, payload any, opts ...Option) *Message {
	msg := &Message{
		Timestamp:  time.Now().UTC(),
		Properties: make(map[string]string),
		Payload:    payload,
		direction:  direction,
	}

	for _, opt := range opts {
		opt(msg)
	}

	if msg.ID == "" {
		msg.ID = GenerateID()
	}

	return msg
}

// WithID sets the message ID
func WithID(id string) Option {
	return func(m *Message) {
		m.ID = id
	}
}

// WithRelatesTo sets the ID of the message this one replies to
func WithRelatesTo(id string) Option {
	return func(m *Message) {
		m.RelatesTo = id
	}
}

// WithAction sets the action
func WithAction(action string) Option {
	return func(m *Message) {
		m.Action = action
	}
}

// WithTo sets the destination address
func WithTo(to string) Option {
	return func(m *Message) {
		m.To = to
	}
}

// WithReplyTo sets the address replies should be sent to
func WithReplyTo(replyTo string) Option {
	return func(m *Message) {
		m.ReplyTo = replyTo
	}
}

// WithProperty adds a message property
func WithProperty(name, value string) Option {
	return func(m *Message) {
		m.Properties[name] = value
	}
}

// Direction returns the direction the message was created with
func (m *Message) Direction() Direction {
	return m.direction
}

// Property returns a message property
func (m *Message) Property(name string) string {
	if m.Properties == nil {
		return ""
	}
	return m.Properties[name]
}

// WithPayload returns a copy of the message carrying a different payload
func (m *Message) WithPayload(payload any) *Message {
	c := m.clone()
	c.Payload = payload
	return c
}

// Reply builds a message correlated to m
func (m *Message) Reply(direction Direction, payload any) *Message {
	return New(direction, payload,
		WithRelatesTo(m.ID),
		WithAction(m.Action),
		WithTo(m.ReplyTo),
	)
}

func (m *Message) clone() *Message {
	c := *m
	c.Properties = make(map[string]string, len(m.Properties))
	for k, v := range m.Properties {
		c.Properties[k] = v
	}
	return &c
}

// GenerateID creates a unique message identifier
func GenerateID() string {
	return "urn:uuid:" + uuid.New().String()
}

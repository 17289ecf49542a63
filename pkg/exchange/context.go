package exchange

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirosfoundation/go-soapmep/pkg/mep"
	"github.com/sirosfoundation/go-soapmep/pkg/message"
	"github.com/sirosfoundation/go-soapmep/pkg/operation"
)

// State is the lifecycle state of an exchange
type State int

const (
	Pending State = iota
	Partial
	Complete
	CleanedUp
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Partial:
		return "partial"
	case Complete:
		return "complete"
	case CleanedUp:
		return "cleanedUp"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Context is the runtime state of one message exchange
type Context struct {
	id        string
	desc      *operation.Descriptor
	pattern   *mep.Pattern
	createdAt time.Time

	mu          sync.Mutex
	state       State
	slots       map[mep.Slot]*message.Message
	ids         map[mep.Slot]string
	claimed     map[mep.Slot]bool
	completedAt time.Time
	closedAt    time.Time

	done   chan struct{}
	closed chan struct{}
}

// NewContext creates a pending exchange bound to desc
func NewContext(id string, desc *operation.Descriptor) *Context {
	desc.Acquire()
	return &Context{
		id:        id,
		desc:      desc,
		pattern:   desc.Pattern(),
		createdAt: time.Now(),
		state:     Pending,
		slots:     make(map[mep.Slot]*message.Message, 4),
		ids:       make(map[mep.Slot]string, 4),
		claimed:   make(map[mep.Slot]bool, 1),
		done:      make(chan struct{}),
		closed:    make(chan struct{}),
	}
}

// ID returns the exchange identifier
func (c *Context) ID() string { return c.id }

// Descriptor returns the operation governing the exchange
func (c *Context) Descriptor() *operation.Descriptor { return c.desc }

// CreatedAt returns the creation time
func (c *Context) CreatedAt() time.Time { return c.createdAt }

// Done is closed when the exchange completes
func (c *Context) Done() <-chan struct{} { return c.done }

// State returns the current state
func (c *Context) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Message returns the message held in slot
func (c *Context) Message(slot mep.Slot) (*message.Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	msg, ok := c.slots[slot]
	return msg, ok
}

// AddMessage fills a normal (in or out) slot
func (c *Context) AddMessage(slot mep.Slot, msg *message.Message) error {
	return c.add(slot, msg, false)
}

// AddFaultMessage fills a fault (inFault or outFault) slot
func (c *Context) AddFaultMessage(slot mep.Slot, msg *message.Message) error {
	return c.add(slot, msg, true)
}

func (c *Context) add(slot mep.Slot, msg *message.Message, fault bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkLocked(slot, fault); err != nil {
		return err
	}
	c.fillLocked(slot, msg)
	return nil
}

func (c *Context) fillLocked(slot mep.Slot, msg *message.Message) {
	c.slots[slot] = msg
	if msg != nil {
		c.ids[slot] = msg.ID
	}

	if slot.IsFault() || c.pattern.Terminal(slot) {
		c.state = Complete
		c.completedAt = time.Now()
		close(c.done)
	} else {
		c.state = Partial
	}
}

// Check reports the error adding a message to slot would return, without
// changing the exchange
func (c *Context) Check(slot mep.Slot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.checkLocked(slot, slot.IsFault())
}

func (c *Context) stateErrLocked() error {
	switch c.state {
	case CleanedUp:
		if !c.completedAt.IsZero() {
			return fmt.Errorf("%w: %s", ErrExchangeComplete, c.id)
		}
		return fmt.Errorf("%w: %s", ErrExchangeClosed, c.id)
	case Complete:
		return fmt.Errorf("%w: %s", ErrExchangeComplete, c.id)
	}
	return nil
}

func (c *Context) checkLocked(slot mep.Slot, fault bool) error {
	if err := c.stateErrLocked(); err != nil {
		return err
	}

	if slot.IsFault() != fault {
		return fmt.Errorf("%w: %s via wrong add operation", mep.ErrUnsupportedSlot, slot)
	}
	if err := c.pattern.Check(slot); err != nil {
		return err
	}
	for held := range c.claimed {
		if held.IsFault() || c.pattern.Terminal(held) {
			return fmt.Errorf("%w: %s is completing via %s", ErrExchangeComplete, c.id, held)
		}
	}
	if req, ok := c.pattern.Prerequisite(slot); ok {
		if _, filled := c.slots[req]; !filled {
			return fmt.Errorf("%w: %s requires %s", ErrOutOfOrder, slot, req)
		}
	}
	if _, filled := c.slots[slot]; filled || c.claimed[slot] {
		return fmt.Errorf("%w: %s", ErrSlotFilled, slot)
	}
	return nil
}

// Claim reserves slot for a message that is still being processed. While
// the claim is held, competing adds and claims see the slot as filled, or
// the exchange as complete when slot would complete it. A claim is settled
// exactly once with Commit, Fault or Abandon.
func (c *Context) Claim(slot mep.Slot) (*Claim, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkLocked(slot, slot.IsFault()); err != nil {
		return nil, err
	}
	c.claimed[slot] = true
	return &Claim{c: c, slot: slot}, nil
}

// Claim is a slot reservation held by one writer
type Claim struct {
	c       *Context
	slot    mep.Slot
	settled bool
}

// Slot returns the reserved slot
func (cl *Claim) Slot() mep.Slot { return cl.slot }

// Commit fills the reserved slot with msg
func (cl *Claim) Commit(msg *message.Message) error {
	c := cl.c
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := cl.releaseLocked(); err != nil {
		return err
	}
	if err := c.stateErrLocked(); err != nil {
		return err
	}
	c.fillLocked(cl.slot, msg)
	return nil
}

// Fault gives up the reservation and fills the fault slot with msg in one
// step. slot may differ from the reserved slot, as when a robust-in-only
// receiver rejects the request it was handed.
func (cl *Claim) Fault(slot mep.Slot, msg *message.Message) error {
	c := cl.c
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := cl.releaseLocked(); err != nil {
		return err
	}
	if err := c.checkLocked(slot, true); err != nil {
		return err
	}
	c.fillLocked(slot, msg)
	return nil
}

// Abandon gives up the reservation without filling any slot. It is a no-op
// on a settled claim.
func (cl *Claim) Abandon() {
	c := cl.c
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = cl.releaseLocked()
}

func (cl *Claim) releaseLocked() error {
	if cl.settled {
		return fmt.Errorf("%w: %s", ErrClaimSettled, cl.slot)
	}
	cl.settled = true
	delete(cl.c.claimed, cl.slot)
	return nil
}

// Wait blocks until the exchange completes. It returns ErrExchangeTimeout
// when ctx reaches its deadline and ErrExchangeClosed when the exchange is
// discarded first. Waiting does not change the exchange state.
func (c *Context) Wait(ctx context.Context) error {
	select {
	case <-c.done:
		return nil
	case <-c.closed:
		select {
		case <-c.done:
			return nil
		default:
		}
		return fmt.Errorf("%w: %s", ErrExchangeClosed, c.id)
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("%w: %s: %w", ErrExchangeTimeout, c.id, ctx.Err())
		}
		return ctx.Err()
	}
}

// WaitTimeout waits at most d for completion
func (c *Context) WaitTimeout(d time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return c.Wait(ctx)
}

// Cleanup releases a completed exchange
func (c *Context) Cleanup() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case CleanedUp:
		return fmt.Errorf("%w: %s", ErrExchangeClosed, c.id)
	case Complete:
	default:
		return fmt.Errorf("%w: %s is %s", ErrExchangeIncomplete, c.id, c.state)
	}
	c.closeLocked()
	return nil
}

// Discard releases the exchange regardless of state. It reports false if
// the exchange was already cleaned up.
func (c *Context) Discard() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == CleanedUp {
		return false
	}
	c.closeLocked()
	return true
}

func (c *Context) closeLocked() {
	c.state = CleanedUp
	c.closedAt = time.Now()
	clear(c.slots)
	clear(c.claimed)
	close(c.closed)
	c.desc.Release()
}

// Record is a serialisable view of an exchange
type Record struct {
	ID          string            `json:"id" bson:"_id"`
	Operation   string            `json:"operation" bson:"operation"`
	MEP         string            `json:"mep" bson:"mep"`
	State       string            `json:"state" bson:"state"`
	Messages    map[string]string `json:"messages" bson:"messages"`
	CreatedAt   time.Time         `json:"createdAt" bson:"created_at"`
	CompletedAt *time.Time        `json:"completedAt,omitempty" bson:"completed_at,omitempty"`
	ClosedAt    *time.Time        `json:"closedAt,omitempty" bson:"closed_at,omitempty"`
}

// Snapshot returns the current record of the exchange. Message IDs remain
// available after cleanup.
func (c *Context) Snapshot() Record {
	c.mu.Lock()
	defer c.mu.Unlock()

	r := Record{
		ID:        c.id,
		Operation: c.desc.Name(),
		MEP:       c.pattern.Variant().String(),
		State:     c.state.String(),
		Messages:  make(map[string]string, len(c.ids)),
		CreatedAt: c.createdAt,
	}
	for slot, id := range c.ids {
		r.Messages[slot.String()] = id
	}
	if !c.completedAt.IsZero() {
		t := c.completedAt
		r.CompletedAt = &t
	}
	if !c.closedAt.IsZero() {
		t := c.closedAt
		r.ClosedAt = &t
	}
	return r
}

package client

import (
	"context"
	"errors"
	"time"

	"github.com/sirosfoundation/go-soapmep/pkg/engine"
	"github.com/sirosfoundation/go-soapmep/pkg/mep"
	"github.com/sirosfoundation/go-soapmep/pkg/message"
	"github.com/sirosfoundation/go-soapmep/pkg/operation"
)

// Names of the anonymous operations used when no operation is configured
const (
	AnonOutOnly       = "anonOutonlyOp"
	AnonRobustOutOnly = "anonRobustOp"
	AnonOutIn         = "anonOutInOp"
)

// Sender starts client-side exchanges; *engine.Engine implements it
type Sender interface {
	Send(ctx context.Context, msg *message.Message, opts engine.SendOptions) (*engine.Result, error)
}

// Options configures a ServiceClient
type Options struct {
	// Operation names the descriptor for every call. Empty selects the
	// anonymous operation of each call's pattern.
	Operation string

	To      string
	Action  string
	ReplyTo string

	// Timeout bounds blocking calls; zero uses the engine default
	Timeout time.Duration

	// Properties are copied onto every outbound message
	Properties map[string]string
}

// ServiceClient sends payloads to one service
type ServiceClient struct {
	sender Sender
	opts   Options
}

// New creates a ServiceClient
func New(sender Sender, opts Options) (*ServiceClient, error) {
	if sender == nil {
		return nil, errors.New("sender is required")
	}
	return &ServiceClient{sender: sender, opts: opts}, nil
}

// Options returns the client options
func (c *ServiceClient) Options() Options {
	return c.opts
}

// FireAndForget sends payload over an out-only exchange
func (c *ServiceClient) FireAndForget(ctx context.Context, payload any) error {
	_, err := c.send(ctx, payload, AnonOutOnly, nil)
	return err
}

// SendRobust sends payload over a robust-out-only exchange and returns
// the fault reported by the transport, if any
func (c *ServiceClient) SendRobust(ctx context.Context, payload any) error {
	_, err := c.send(ctx, payload, AnonRobustOutOnly, nil)
	return err
}

// SendReceive sends payload over an out-in exchange and waits for the reply
func (c *ServiceClient) SendReceive(ctx context.Context, payload any) (*message.Message, error) {
	res, err := c.send(ctx, payload, AnonOutIn, nil)
	if err != nil {
		return nil, err
	}
	return res.Reply, nil
}

// SendReceiveNonBlocking sends payload over an out-in exchange and returns
// the exchange ID immediately. cb is invoked when the reply arrives.
func (c *ServiceClient) SendReceiveNonBlocking(ctx context.Context, payload any, cb engine.Callback) (string, error) {
	if cb == nil {
		return "", errors.New("callback is required")
	}
	res, err := c.send(ctx, payload, AnonOutIn, cb)
	if err != nil {
		return "", err
	}
	return res.ExchangeID, nil
}

func (c *ServiceClient) send(ctx context.Context, payload any, anon string, cb engine.Callback) (*engine.Result, error) {
	name := c.opts.Operation
	if name == "" {
		name = anon
	}
	return c.sender.Send(ctx, c.message(payload), engine.SendOptions{
		Operation: name,
		Timeout:   c.opts.Timeout,
		Callback:  cb,
	})
}

func (c *ServiceClient) message(payload any) *message.Message {
	opts := []message.Option{
		message.WithTo(c.opts.To),
		message.WithAction(c.opts.Action),
		message.WithReplyTo(c.opts.ReplyTo),
	}
	for k, v := range c.opts.Properties {
		opts = append(opts, message.WithProperty(k, v))
	}
	return message.New(message.Out, payload, opts...)
}

// AnonymousOperations returns descriptors for the anonymous operations.
// phases maps each flow to the phase identifiers it runs; flows a
// pattern does not support are skipped.
func AnonymousOperations(endpoint string, phases map[message.Direction][]string) ([]*operation.Descriptor, error) {
	anon := []struct {
		name    string
		variant mep.Variant
	}{
		{AnonOutOnly, mep.OutOnly},
		{AnonRobustOutOnly, mep.RobustOutOnly},
		{AnonOutIn, mep.OutIn},
	}

	descs := make([]*operation.Descriptor, 0, len(anon))
	for _, a := range anon {
		opts := []operation.Option{operation.WithEndpoint(endpoint)}
		pattern := mep.Lookup(a.variant)
		for dir, ids := range phases {
			if pattern.HasFlow(dir) {
				opts = append(opts, operation.WithPhases(dir, ids...))
			}
		}
		d, err := operation.New(a.name, a.variant, opts...)
		if err != nil {
			return nil, err
		}
		descs = append(descs, d)
	}
	return descs, nil
}

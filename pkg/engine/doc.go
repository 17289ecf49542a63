// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package engine dispatches messages between application code, the phase
pipelines of an operation and a transport.

The Engine owns the table of live exchanges. Outbound messages start a
client-side exchange with Send; inbound messages arrive through Receive and
either correlate to an existing exchange (RelatesTo) or start a
server-side exchange handled by a registered Receiver.

# Sending

	res, err := eng.Send(ctx, msg, engine.SendOptions{Timeout: 5 * time.Second})

Without a Callback, Send blocks until the reply arrives or the timeout
elapses. A timed-out exchange stays in the table so a late reply can
still complete it; the reaper discards it after the exchange TTL.

With a Callback, Send returns immediately and the transport hand-off runs
on its own goroutine. The callback is invoked on the goroutine that
delivers the reply.

# Receiving

	eng.Handle("getQuote", engine.ReceiverFunc(func(ctx context.Context, in *message.Message) (*message.Message, error) {
	    return in.Reply(message.Out, quote), nil
	}))

For in-out operations the receiver's response runs through the out flow
and is returned to the transport as the synchronous reply. A receiver
error becomes a fault message in the fault slot of the exchange.

# Faults

A phase fault diverts the message into the fault flow of its direction.
When no fault flow is configured the fault is returned wrapped in
ErrUnhandledFault. Fault replies from the peer are reported to the caller
as *ReplyFault.
*/
package engine

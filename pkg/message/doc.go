// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package message defines the abstract message unit handled by the engine.

A Message carries a direction, a set of addressing headers used for
correlation and operation resolution, and an opaque payload. The engine
and its pipelines never inspect the payload; adapters such as the soap
package attach whatever representation they need.

# Directions

	In        - a message arriving at the node that owns the exchange
	Out       - a message leaving that node
	InFault   - a fault travelling inwards
	OutFault  - a fault travelling outwards

# Building Messages

Use the functional options to construct messages:

	msg := message.New(message.Out, payload,
	    message.WithAction("urn:example:echo"),
	    message.WithTo("https://service.example.com/soap"),
	)

Replies are correlated to their request through RelatesTo:

	reply := request.Reply(message.Out, responsePayload)

# Payloads

Payload is typed as any. Byte-oriented phases (compression, for example)
operate on *Bytes payloads and leave every other payload untouched.
*/
package message

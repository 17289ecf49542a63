// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package operation describes service operations: the MEP variant they follow
and the ordered phase identifiers configured for each flow.

A Descriptor is created once, shared by every exchange of the operation and
treated as read-only while exchanges are live:

	desc, err := operation.New("getQuote", mep.InOut,
	    operation.WithAction("urn:example:getQuote"),
	    operation.WithPhases(message.In, "decode", "validate"),
	    operation.WithPhases(message.Out, "encode"),
	)

Exchange contexts bind to a descriptor with Acquire and unbind with
Release. Replacing a phase list with SetPhaseList is rejected while any
exchange is bound.

# Resolution

The Registry maps inbound messages to descriptors, first by WS-Addressing
action and then by the trailing path segment of the To address:

	reg := operation.NewRegistry()
	reg.Register(desc)
	desc, err := reg.Resolve(ctx, msg)
*/
package operation

// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package client provides ServiceClient, a convenience API over the engine for
the common client-initiated exchanges:

	sc, err := client.New(eng, client.Options{
	    To:     "http://localhost:8080/soap/echo",
	    Action: "urn:example:echo",
	})

	err = sc.FireAndForget(ctx, payload)          // out-only
	err = sc.SendRobust(ctx, payload)             // robust-out-only
	reply, err := sc.SendReceive(ctx, payload)    // out-in, blocking
	id, err := sc.SendReceiveNonBlocking(ctx, payload, callback)

When Options.Operation is empty each call uses an anonymous operation of
the matching pattern. AnonymousOperations returns the descriptors to
register for them.
*/
package client

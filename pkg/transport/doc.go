// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package transport binds the engine to HTTP.

Outbound messages are encoded as SOAP 1.2 envelopes and posted to the
destination endpoint. A reply returned on the HTTP back-channel is decoded
and handed to the engine, which correlates it with the waiting exchange.
Inbound requests are served by Handler, which decodes the envelope and
writes the synchronous reply produced by the engine.

# TLS Configuration

TLS 1.3 is preferred with fallback to TLS 1.2:

	config := transport.DefaultHTTPSConfig()
	// MinTLSVersion: TLS 1.2
	// MaxTLSVersion: TLS 1.3

# Client Usage

	client := transport.NewHTTPSClient(nil,
	    transport.WithResolver(resolver))
	eng, err := engine.New(engine.Config{
	    Resolver:  operations,
	    Phases:    phases,
	    Transport: client,
	})

The engine binds itself to the client, so replies arrive through
Engine.Receive.

# Server Usage

	mux.Handle("/soap", transport.NewHandler(eng, logger))

Status codes follow the SOAP 1.2 HTTP binding: 200 with a reply, 202
when the exchange has no synchronous reply, 500 with a soap:Fault and
400 for envelopes that cannot be decoded.

# Endpoint Resolution

Destination addresses that are not http(s) URLs are mapped to endpoints
by an EndpointResolver. StaticEndpointResolver holds a fixed table,
DynamicEndpointResolver caches a lookup function and
MultiEndpointResolver chains both.
*/
package transport

// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package gosoapmep is a SOAP messaging engine core built around WSDL 2.0
message exchange patterns.

# Overview

Every message belongs to an exchange. An exchange follows one message
exchange pattern (MEP) which decides the legal message slots (in, out,
inFault, outFault), the order in which they may be filled and the slot
that completes the exchange. Each message passes through an ordered,
per-operation pipeline of phases before it reaches application code or a
transport.

# Supported Patterns

  - in-only, robust-in-only, in-out (service side)
  - out-only, robust-out-only, out-in (client side)

ebMS 3.0 oneWay and twoWay MEP identifiers are mapped onto these variants.

# Package Structure

	github.com/sirosfoundation/go-soapmep/pkg/message     - Messages, directions and payload handles
	github.com/sirosfoundation/go-soapmep/pkg/mep         - MEP variants and slot legality
	github.com/sirosfoundation/go-soapmep/pkg/pipeline    - Phases, pipelines and fault flows
	github.com/sirosfoundation/go-soapmep/pkg/operation   - Operation descriptors and registry
	github.com/sirosfoundation/go-soapmep/pkg/exchange    - Exchange contexts, table and reaper
	github.com/sirosfoundation/go-soapmep/pkg/engine      - Dispatcher for send and receive
	github.com/sirosfoundation/go-soapmep/pkg/client      - ServiceClient convenience API
	github.com/sirosfoundation/go-soapmep/pkg/soap        - SOAP 1.2 + WS-Addressing codec
	github.com/sirosfoundation/go-soapmep/pkg/transport   - HTTP(S) transport and endpoint resolution
	github.com/sirosfoundation/go-soapmep/pkg/discovery   - DNS U-NAPTR endpoint discovery
	github.com/sirosfoundation/go-soapmep/pkg/compression - GZIP payload compression phases
	github.com/sirosfoundation/go-soapmep/pkg/reliability - Duplicate detection phase

The mepd daemon in cmd/mepd serves the engine over HTTP with an exchange
archive (MongoDB or in-memory), Prometheus metrics and an inspection API.

# Quick Start

	ops := operation.NewRegistry()
	echo, _ := operation.New("echo", mep.InOut, operation.WithAction("urn:example:echo"))
	_ = ops.Register(echo)

	phases, _ := pipeline.NewRegistry(pipeline.Trace(nil))
	eng, _ := engine.New(engine.Config{
	    Resolver:  ops,
	    Phases:    phases,
	    Transport: transport.NewHTTPSClient(nil),
	})
	eng.Handle("echo", engine.ReceiverFunc(func(ctx context.Context, in *message.Message) (*message.Message, error) {
	    return in.Reply(message.Out, in.Payload), nil
	}))
	_ = eng.Start(ctx)

	http.Handle("/soap", transport.NewHandler(eng, nil))

See examples/basic for a client and a service exchanging messages.

# License

BSD-2-Clause License
*/
package gosoapmep

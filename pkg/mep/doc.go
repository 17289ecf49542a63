// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package mep defines the Message Exchange Patterns understood by the engine.

Each pattern is a row in a single table describing which message slots
are legal, which slots complete the exchange, and which slots must be
filled before another one may be.

# Supported MEPs

	Variant          Slots                          Terminal
	InOnly           in                             in
	RobustInOnly     in, inFault                    in | inFault
	InOut            in, out, inFault, outFault     out | outFault | inFault (out, outFault after in)
	OutOnly          out                            out
	RobustOutOnly    out, outFault                  out | outFault
	OutIn            out, in, outFault, inFault     in | inFault | outFault (in, inFault after out)

Look a pattern up and ask it about slots:

	p := mep.Lookup(mep.InOut)
	p.Legal(mep.OutFault)    // true
	p.Terminal(mep.In)       // false

# Identifiers

Patterns can be named by WSDL 2.0 URI, by the older 2004 WSDL URIs, or by
short name:

	v, err := mep.ParseURI("http://www.w3.org/ns/wsdl/in-out")

The ebMS 3.0 oneWay/twoWay MEPs map onto the same table depending on
which side initiates the exchange:

	v, err := mep.FromEBMS(mep.OneWay, mep.Push, true) // OutOnly

# References

  - WSDL 2.0 Adjuncts, MEPs: https://www.w3.org/TR/wsdl20-adjuncts/#meps
  - OASIS ebMS 3.0 MEP: https://docs.oasis-open.org/ebxml-msg/ebms/v3.0/core/os/
*/
package mep

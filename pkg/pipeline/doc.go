// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package pipeline runs messages through ordered processing phases.

A Phase is a named stage that receives a message and returns a possibly
modified message, or a fault. A Pipeline is an immutable ordered list of
phases for one flow direction; a later phase runs only if every earlier
phase succeeded.

# Flows

Flows groups the pipelines of one operation by direction. Running a
message through Flows yields an Outcome:

	outcome := flows.Run(ctx, message.In, msg)
	switch outcome.Kind {
	case pipeline.Delivered:
	    // outcome.Message passed every phase
	case pipeline.Faulted:
	    // outcome.Fault describes the failing phase
	}

When a phase of the in or out flow faults, the remaining phases are
skipped and the matching fault flow (inFault or outFault) runs from its
first phase on the fault message. If no fault flow is configured the
outcome is reported as not handled.

# Phase Resolution

Operations name their phases by identifier. A Registry resolves those
identifiers into pipelines:

	reg := pipeline.NewRegistry()
	reg.Register(pipeline.NewPhase("validate", validateFn))
	flows, err := reg.Build(descriptor)

Phases are shared by every exchange of an operation and must be safe for
concurrent use.
*/
package pipeline

// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package exchange tracks the runtime state of message exchanges.

A Context is created for every exchange and bound to the operation
descriptor governing it. Messages are added to the slots of the MEP
(in, out, inFault, outFault); the MEP table decides which slots are legal,
which slot must precede another and which slot completes the exchange.

# States

	Pending   -> no message added yet
	Partial   -> at least one message, exchange still open
	Complete  -> a terminal or fault slot was filled
	CleanedUp -> resources released, the context is inert

Every rejected transition returns an error; nothing is silently ignored.
Checks run in a fixed order: closed, complete, slot legality, completing
claim, prerequisite, duplicate.

# Claims

A message that still has to pass through phases claims its slot first and
commits the processed message afterwards. Only the claim holder processes
the slot; a competing writer fails at once.

	claim, err := ec.Claim(mep.In)
	if err != nil {
	    return err // ErrExchangeComplete for a losing reply
	}
	out, err := process(msg)
	if err != nil {
	    return claim.Fault(mep.InFault, faultFor(msg, err))
	}
	return claim.Commit(out)

The exchange completes, and waiters wake, on commit.

# Waiting

Completion is signalled by closing a channel. Wait blocks until the
exchange completes, the caller's context ends, or the exchange is
discarded:

	if err := ec.Wait(ctx); errors.Is(err, exchange.ErrExchangeTimeout) {
	    // still live, a late reply may arrive
	}

A timed-out wait never changes the exchange state.

# Table and Reaper

Table maps correlation keys (message IDs) to live contexts. Reaper removes
contexts that outlive a TTL, which bounds the memory held by exchanges
whose reply never arrives.
*/
package exchange

// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package reliability provides duplicate detection for inbound messages.

A Detector remembers the keys of received messages for a window of time.
By default the key is the message ID; ContentKey keys byte payloads by
their SHA-256 digest instead, which also catches resubmissions under a
new ID.

	detector := reliability.NewDetector(24 * time.Hour)
	detector.Start(ctx)
	defer detector.Stop()

	reg.Register(reliability.DuplicatePhase(detector))

DuplicatePhase raises a Sender fault for a message seen within the window,
diverting it into the fault flow before it reaches application code.
*/
package reliability

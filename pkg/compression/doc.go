// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package compression provides the GZIP payload compression phases.

# Phases

Phases returns a compress phase that gzips *message.Bytes payloads on
their way out and marks them with the gzip encoding, and a decompress
phase that reverses it for inbound messages. Payloads of any other type
pass unchanged, as do content types that are already compressed (see
ShouldCompress). Writers and readers are pooled per phase.

	gzipOut, gzipIn, err := compression.Phases(
		compression.WithLevel(gzip.BestSpeed),
		compression.WithMaxSize(8 << 20),
	)
	reg.Register(gzipOut)
	reg.Register(gzipIn)

A payload that fails to inflate, or inflates beyond the size bound, faults
the sender with the reason DecompressionFailure.
*/
package compression

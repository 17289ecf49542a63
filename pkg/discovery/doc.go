// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

// Package discovery locates SOAP endpoints for WS-Addressing addresses that
// are not URLs, using DNS U-NAPTR records (RFC 4848).
//
// # Discovery Process
//
//  1. Address Encoding: the destination address (for example
//     "urn:example:party:4711") is lower-cased, hashed with SHA-256 and
//     BASE32 encoded without padding.
//
//  2. DNS Query Construction: the encoded hash is prefixed to the
//     configured discovery domain, giving
//     "<hash>.[<environment>.]<domain>".
//
//  3. U-NAPTR Lookup: NAPTR records with the "U" flag and a matching
//     service tag are ordered by order and preference. The replacement URL
//     of the best record is the endpoint.
//
// # Usage
//
// The Lookup method matches transport.EndpointLookupFunc and is normally
// wrapped in a caching resolver:
//
//	d, err := discovery.New(discovery.Config{Domain: "sml.example.com"})
//	resolver := transport.NewMultiResolver(
//	    static,
//	    transport.NewDynamicEndpointResolver(d.Lookup, time.Hour),
//	)
package discovery

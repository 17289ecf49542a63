// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package soap encodes messages as SOAP 1.2 envelopes with WS-Addressing
headers and decodes inbound envelopes into messages.

The WS-Addressing headers carry the correlation data of a message:

	wsa:MessageID   Message.ID
	wsa:RelatesTo   Message.RelatesTo
	wsa:Action      Message.Action
	wsa:To          Message.To
	wsa:ReplyTo     Message.ReplyTo

The body holds the payload. Encode accepts *etree.Element,
*etree.Document, *message.Bytes, []byte and string payloads holding XML,
and *pipeline.Fault payloads, which become a soap:Fault. Decode returns
the first body element as an *etree.Element payload; a soap:Fault body
yields an inFault message carrying a *pipeline.Fault.
*/
package soap

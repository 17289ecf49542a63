package soap

import (
	"errors"
	"fmt"
	"strings"

	"github.com/beevik/etree"

	"github.com/sirosfoundation/go-soapmep/pkg/message"
	"github.com/sirosfoundation/go-soapmep/pkg/pipeline"
)

const (
	// NamespaceSOAP12 is the SOAP 1.2 envelope namespace
	NamespaceSOAP12 = "http://www.w3.org/2003/05/soap-envelope"
	// NamespaceWSA is the WS-Addressing 1.0 namespace
	NamespaceWSA = "http://www.w3.org/2005/08/addressing"
	// ContentType is the media type of SOAP 1.2 messages
	ContentType = "application/soap+xml; charset=utf-8"
	// AnonymousAddress requests the reply on the transport back-channel
	AnonymousAddress = NamespaceWSA + "/anonymous"
)

var (
	ErrInvalidEnvelope    = errors.New("invalid SOAP envelope")
	ErrUnsupportedPayload = errors.New("unsupported payload type")
)

// Encode serializes msg as a SOAP 1.2 envelope
func Encode(msg *message.Message) ([]byte, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	env := doc.CreateElement("soap:Envelope")
	env.CreateAttr("xmlns:soap", NamespaceSOAP12)
	env.CreateAttr("xmlns:wsa", NamespaceWSA)

	header := env.CreateElement("soap:Header")
	addHeader(header, "wsa:MessageID", msg.ID)
	addHeader(header, "wsa:RelatesTo", msg.RelatesTo)
	addHeader(header, "wsa:Action", msg.Action)
	addHeader(header, "wsa:To", msg.To)
	if msg.ReplyTo != "" {
		replyTo := header.CreateElement("wsa:ReplyTo")
		replyTo.CreateElement("wsa:Address").SetText(msg.ReplyTo)
	}

	body := env.CreateElement("soap:Body")
	if err := encodeBody(body, msg); err != nil {
		return nil, err
	}

	return doc.WriteToBytes()
}

func addHeader(header *etree.Element, tag, value string) {
	if value == "" {
		return
	}
	header.CreateElement(tag).SetText(value)
}

func encodeBody(body *etree.Element, msg *message.Message) error {
	switch p := msg.Payload.(type) {
	case nil:
		return nil
	case *pipeline.Fault:
		encodeFault(body, p)
		return nil
	case *etree.Element:
		body.AddChild(p.Copy())
		return nil
	case *etree.Document:
		if root := p.Root(); root != nil {
			body.AddChild(root.Copy())
		}
		return nil
	case *message.Bytes:
		return addXML(body, p.Data)
	case []byte:
		return addXML(body, p)
	case string:
		return addXML(body, []byte(p))
	default:
		return fmt.Errorf("%w: %T", ErrUnsupportedPayload, msg.Payload)
	}
}

func addXML(body *etree.Element, data []byte) error {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return fmt.Errorf("%w: payload is not XML: %v", ErrUnsupportedPayload, err)
	}
	if root := doc.Root(); root != nil {
		body.AddChild(root)
	}
	return nil
}

func encodeFault(body *etree.Element, f *pipeline.Fault) {
	code := f.Code
	if code == "" {
		code = pipeline.CodeReceiver
	}
	reason := f.Reason
	if reason == "" && f.Err != nil {
		reason = f.Err.Error()
	}

	fault := body.CreateElement("soap:Fault")
	fault.CreateElement("soap:Code").CreateElement("soap:Value").SetText("soap:" + code)
	text := fault.CreateElement("soap:Reason").CreateElement("soap:Text")
	text.CreateAttr("xml:lang", "en")
	text.SetText(reason)
}

// Decode parses an inbound SOAP envelope. The message has direction in,
// or inFault when the body holds a soap:Fault.
func Decode(data []byte) (*message.Message, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}

	env := doc.Root()
	if env == nil || env.Tag != "Envelope" || env.NamespaceURI() != NamespaceSOAP12 {
		return nil, fmt.Errorf("%w: missing SOAP 1.2 Envelope", ErrInvalidEnvelope)
	}
	body := child(env, "Body")
	if body == nil {
		return nil, fmt.Errorf("%w: missing Body", ErrInvalidEnvelope)
	}

	var opts []message.Option
	if header := child(env, "Header"); header != nil {
		if v := headerText(header, "MessageID"); v != "" {
			opts = append(opts, message.WithID(v))
		}
		opts = append(opts,
			message.WithRelatesTo(headerText(header, "RelatesTo")),
			message.WithAction(headerText(header, "Action")),
			message.WithTo(headerText(header, "To")),
		)
		if replyTo := child(header, "ReplyTo"); replyTo != nil {
			if addr := child(replyTo, "Address"); addr != nil {
				opts = append(opts, message.WithReplyTo(strings.TrimSpace(addr.Text())))
			}
		}
	}

	var content *etree.Element
	if elems := body.ChildElements(); len(elems) > 0 {
		content = elems[0]
	}

	if content != nil && content.Tag == "Fault" && content.NamespaceURI() == NamespaceSOAP12 {
		return message.New(message.InFault, decodeFault(content), opts...), nil
	}

	var payload any
	if content != nil {
		payload = content.Copy()
	}
	return message.New(message.In, payload, opts...), nil
}

func decodeFault(el *etree.Element) *pipeline.Fault {
	f := &pipeline.Fault{Code: pipeline.CodeReceiver}
	if code := el.FindElement("./*[local-name()='Code']/*[local-name()='Value']"); code != nil {
		value := strings.TrimSpace(code.Text())
		if i := strings.LastIndex(value, ":"); i >= 0 {
			value = value[i+1:]
		}
		f.Code = value
	}
	if text := el.FindElement("./*[local-name()='Reason']/*[local-name()='Text']"); text != nil {
		f.Reason = strings.TrimSpace(text.Text())
	}
	return f
}

func child(el *etree.Element, local string) *etree.Element {
	for _, c := range el.ChildElements() {
		if c.Tag == local {
			return c
		}
	}
	return nil
}

func headerText(header *etree.Element, local string) string {
	for _, c := range header.ChildElements() {
		if c.Tag == local && c.NamespaceURI() == NamespaceWSA {
			return strings.TrimSpace(c.Text())
		}
	}
	return ""
}

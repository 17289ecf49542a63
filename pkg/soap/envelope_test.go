package soap

import (
	"errors"
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sirosfoundation/go-soapmep/pkg/message"
	"github.com/sirosfoundation/go-soapmep/pkg/pipeline"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	out := message.New(message.Out, `<q:getQuote xmlns:q="urn:example:quotes"><q:symbol>ACME</q:symbol></q:getQuote>`,
		message.WithRelatesTo("urn:uuid:previous"),
		message.WithAction("urn:example:getQuote"),
		message.WithTo("http://localhost:8080/soap/quotes"),
		message.WithReplyTo(AnonymousAddress),
	)

	data, err := Encode(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), NamespaceSOAP12)
	assert.Contains(t, string(data), "<wsa:MessageID>"+out.ID+"</wsa:MessageID>")

	in, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, message.In, in.Direction())
	assert.Equal(t, out.ID, in.ID)
	assert.Equal(t, "urn:uuid:previous", in.RelatesTo)
	assert.Equal(t, "urn:example:getQuote", in.Action)
	assert.Equal(t, "http://localhost:8080/soap/quotes", in.To)
	assert.Equal(t, AnonymousAddress, in.ReplyTo)

	el, ok := in.Payload.(*etree.Element)
	require.True(t, ok)
	assert.Equal(t, "getQuote", el.Tag)
	symbol := el.FindElement("./*[local-name()='symbol']")
	require.NotNil(t, symbol)
	assert.Equal(t, "ACME", symbol.Text())
}

func TestEncodePayloadTypes(t *testing.T) {
	el := etree.NewElement("ping")
	el.SetText("1")

	doc := etree.NewDocument()
	doc.CreateElement("pong")

	tests := []struct {
		name    string
		payload any
		want    string
	}{
		{"element", el, "<ping>1</ping>"},
		{"document", doc, "<pong/>"},
		{"bytes", message.NewBytes([]byte("<data/>"), "text/xml"), "<data/>"},
		{"raw bytes", []byte("<raw/>"), "<raw/>"},
		{"nil", nil, "<soap:Body/>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Encode(message.New(message.Out, tt.payload))
			require.NoError(t, err)
			assert.Contains(t, string(data), tt.want)
		})
	}
}

func TestEncodeUnsupportedPayload(t *testing.T) {
	_, err := Encode(message.New(message.Out, 42))
	assert.ErrorIs(t, err, ErrUnsupportedPayload)

	_, err = Encode(message.New(message.Out, "not xml"))
	assert.ErrorIs(t, err, ErrUnsupportedPayload)
}

func TestFaultRoundTrip(t *testing.T) {
	fault := &pipeline.Fault{Code: pipeline.CodeSender, Reason: "unknown symbol", Phase: "validate"}
	out := message.New(message.OutFault, fault, message.WithRelatesTo("urn:uuid:req"))

	data, err := Encode(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "soap:Sender")

	in, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, message.InFault, in.Direction())
	assert.Equal(t, "urn:uuid:req", in.RelatesTo)

	got, ok := in.Payload.(*pipeline.Fault)
	require.True(t, ok)
	assert.Equal(t, pipeline.CodeSender, got.Code)
	assert.Equal(t, "unknown symbol", got.Reason)
}

func TestFaultFromCause(t *testing.T) {
	data, err := Encode(message.New(message.OutFault, &pipeline.Fault{Err: errors.New("db offline")}))
	require.NoError(t, err)

	in, err := Decode(data)
	require.NoError(t, err)
	f := in.Payload.(*pipeline.Fault)
	assert.Equal(t, pipeline.CodeReceiver, f.Code)
	assert.Equal(t, "db offline", f.Reason)
}

func TestDecodeInvalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not xml", "garbage"},
		{"wrong root", `<Envelope/>`},
		{"soap 1.1", `<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"><s:Body/></s:Envelope>`},
		{"no body", `<s:Envelope xmlns:s="http://www.w3.org/2003/05/soap-envelope"/>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.data))
			assert.ErrorIs(t, err, ErrInvalidEnvelope)
		})
	}
}

func TestDecodeWithoutHeaders(t *testing.T) {
	in, err := Decode([]byte(`<s:Envelope xmlns:s="http://www.w3.org/2003/05/soap-envelope"><s:Body><ping/></s:Body></s:Envelope>`))
	require.NoError(t, err)
	assert.NotEmpty(t, in.ID)
	assert.Empty(t, in.Action)
	assert.Empty(t, in.RelatesTo)
	assert.Equal(t, "ping", in.Payload.(*etree.Element).Tag)
}

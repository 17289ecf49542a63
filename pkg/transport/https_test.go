package transport

import (
	"context"
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sirosfoundation/go-soapmep/pkg/engine"
	"github.com/sirosfoundation/go-soapmep/pkg/mep"
	"github.com/sirosfoundation/go-soapmep/pkg/message"
	"github.com/sirosfoundation/go-soapmep/pkg/operation"
	"github.com/sirosfoundation/go-soapmep/pkg/pipeline"
	"github.com/sirosfoundation/go-soapmep/pkg/soap"
)

func TestDefaultHTTPSConfig(t *testing.T) {
	config := DefaultHTTPSConfig()

	require.NotNil(t, config)
	assert.Equal(t, uint16(TLS12), config.MinTLSVersion)
	assert.Equal(t, uint16(TLS13), config.MaxTLSVersion)
	assert.NotEmpty(t, config.CipherSuites)
	assert.Equal(t, tls.NoClientCert, config.ClientAuth)
	assert.Equal(t, 30*time.Second, config.Timeout)
	assert.Equal(t, 90*time.Second, config.IdleConnTimeout)
}

func TestRecommendedTLS12CipherSuites(t *testing.T) {
	require.NotEmpty(t, RecommendedTLS12CipherSuites)
	for _, suite := range RecommendedTLS12CipherSuites {
		assert.NotEmpty(t, tls.CipherSuiteName(suite))
	}
}

func TestNewHTTPSClient_NilConfig(t *testing.T) {
	client := NewHTTPSClient(nil)

	require.NotNil(t, client.client)
	assert.Equal(t, 30*time.Second, client.client.Timeout)
	assert.Equal(t, DefaultHTTPSConfig().Timeout, client.config.Timeout)
}

// pair wires a client engine to a server engine over httptest
type pair struct {
	client *engine.Engine
	server *engine.Engine
	url    string
}

func newPair(t *testing.T, recv engine.Receiver, serverVariant mep.Variant, clientVariant mep.Variant) *pair {
	t.Helper()
	phases, err := pipeline.NewRegistry()
	require.NoError(t, err)

	serverOps := operation.NewRegistry()
	sd, err := operation.New("echo", serverVariant, operation.WithAction("urn:echo"))
	require.NoError(t, err)
	require.NoError(t, serverOps.Register(sd))

	server, err := engine.New(engine.Config{Resolver: serverOps, Phases: phases})
	require.NoError(t, err)
	server.Handle("echo", recv)
	require.NoError(t, server.Start(context.Background()))
	t.Cleanup(func() { _ = server.Stop() })

	ts := httptest.NewServer(NewHandler(server, nil))
	t.Cleanup(ts.Close)

	clientOps := operation.NewRegistry()
	cd, err := operation.New("echo", clientVariant,
		operation.WithAction("urn:echo"),
		operation.WithEndpoint(ts.URL))
	require.NoError(t, err)
	require.NoError(t, clientOps.Register(cd))

	client, err := engine.New(engine.Config{
		Resolver:  clientOps,
		Phases:    phases,
		Transport: NewHTTPSClient(nil),
	})
	require.NoError(t, err)
	require.NoError(t, client.Start(context.Background()))
	t.Cleanup(func() { _ = client.Stop() })

	return &pair{client: client, server: server, url: ts.URL}
}

func echo(ctx context.Context, in *message.Message) (*message.Message, error) {
	el := in.Payload.(*etree.Element)
	resp := etree.NewElement("EchoResponse")
	resp.SetText(el.Text())
	return in.Reply(message.Out, resp), nil
}

func TestRoundTripInOut(t *testing.T) {
	p := newPair(t, engine.ReceiverFunc(echo), mep.InOut, mep.OutIn)

	out := message.New(message.Out, "<Echo>hello</Echo>", message.WithAction("urn:echo"))
	res, err := p.client.Send(context.Background(), out, engine.SendOptions{Timeout: 5 * time.Second})
	require.NoError(t, err)
	require.NotNil(t, res.Reply)

	assert.Equal(t, message.In, res.Reply.Direction())
	assert.Equal(t, out.ID, res.Reply.RelatesTo)
	el, ok := res.Reply.Payload.(*etree.Element)
	require.True(t, ok)
	assert.Equal(t, "EchoResponse", el.Tag)
	assert.Equal(t, "hello", el.Text())
	assert.Zero(t, p.client.Len())
	assert.Zero(t, p.server.Len())
}

func TestRoundTripReceiverFault(t *testing.T) {
	p := newPair(t, engine.ReceiverFunc(func(ctx context.Context, in *message.Message) (*message.Message, error) {
		return nil, pipeline.NewFault(pipeline.CodeSender, "bad echo")
	}), mep.InOut, mep.OutIn)

	out := message.New(message.Out, "<Echo>x</Echo>", message.WithAction("urn:echo"))
	_, err := p.client.Send(context.Background(), out, engine.SendOptions{Timeout: 5 * time.Second})

	var rf *engine.ReplyFault
	require.ErrorAs(t, err, &rf)
	assert.Equal(t, pipeline.CodeSender, rf.Code)
	assert.Equal(t, "bad echo", rf.Reason)
}

func TestRoundTripOneWay(t *testing.T) {
	got := make(chan *message.Message, 1)
	p := newPair(t, engine.ReceiverFunc(func(ctx context.Context, in *message.Message) (*message.Message, error) {
		got <- in
		return nil, nil
	}), mep.InOnly, mep.OutOnly)

	out := message.New(message.Out, "<Notify/>", message.WithAction("urn:echo"))
	res, err := p.client.Send(context.Background(), out, engine.SendOptions{})
	require.NoError(t, err)
	assert.Nil(t, res.Reply)

	in := <-got
	assert.Equal(t, out.ID, in.ID)
	assert.Equal(t, "urn:echo", in.Action)
}

func TestRoundTripRobustFault(t *testing.T) {
	p := newPair(t, engine.ReceiverFunc(func(ctx context.Context, in *message.Message) (*message.Message, error) {
		return nil, pipeline.NewFault(pipeline.CodeSender, "rejected document")
	}), mep.RobustInOnly, mep.RobustOutOnly)

	out := message.New(message.Out, "<Doc/>", message.WithAction("urn:echo"))
	_, err := p.client.Send(context.Background(), out, engine.SendOptions{})
	require.ErrorIs(t, err, ErrSOAPFault)
	assert.Contains(t, err.Error(), "rejected document")
}

func TestSendUnresolvableAddress(t *testing.T) {
	client := NewHTTPSClient(nil)
	err := client.Send(context.Background(), message.New(message.Out, nil, message.WithTo("urn:peer:a")))
	assert.ErrorIs(t, err, ErrEndpointNotFound)
}

func TestSendWithResolver(t *testing.T) {
	var gotAgent, gotType string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAgent = r.Header.Get("User-Agent")
		gotType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusAccepted)
	}))
	defer ts.Close()

	static := NewStaticEndpointResolver()
	static.RegisterEndpoint("urn:peer:a", &EndpointInfo{URL: ts.URL})
	client := NewHTTPSClient(nil, WithResolver(static))

	err := client.Send(context.Background(), message.New(message.Out, nil, message.WithTo("urn:peer:a")))
	require.NoError(t, err)
	assert.Equal(t, UserAgent, gotAgent)
	assert.Equal(t, soap.ContentType, gotType)
}

func TestSendUnexpectedStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer ts.Close()

	client := NewHTTPSClient(nil)
	err := client.Send(context.Background(), message.New(message.Out, nil, message.WithTo(ts.URL)))
	assert.ErrorIs(t, err, ErrUnexpectedStatus)
}

func TestSendFaultWithoutSink(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := soap.Encode(message.New(message.OutFault, pipeline.NewFault(pipeline.CodeReceiver, "down")))
		w.Header().Set("Content-Type", soap.ContentType)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write(data)
	}))
	defer ts.Close()

	client := NewHTTPSClient(nil)
	err := client.Send(context.Background(), message.New(message.Out, nil, message.WithTo(ts.URL)))
	require.ErrorIs(t, err, ErrSOAPFault)
	assert.Contains(t, err.Error(), "down")
}

// sinkFunc adapts a function to engine.Sink
type sinkFunc func(ctx context.Context, msg *message.Message) (*message.Message, error)

func (f sinkFunc) Receive(ctx context.Context, msg *message.Message) (*message.Message, error) {
	return f(ctx, msg)
}

func TestHandler_MethodNotAllowed(t *testing.T) {
	h := NewHandler(sinkFunc(nil), nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/soap", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestHandler_InvalidEnvelope(t *testing.T) {
	h := NewHandler(sinkFunc(nil), nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/soap", strings.NewReader("<not-soap/>")))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	msg, err := soap.Decode(w.Body.Bytes())
	require.NoError(t, err)
	f := msg.Payload.(*pipeline.Fault)
	assert.Equal(t, pipeline.CodeSender, f.Code)
}

func request(t *testing.T, msg *message.Message) *http.Request {
	t.Helper()
	data, err := soap.Encode(msg)
	require.NoError(t, err)
	return httptest.NewRequest(http.MethodPost, "/soap", strings.NewReader(string(data)))
}

func TestHandler_Accepted(t *testing.T) {
	h := NewHandler(sinkFunc(func(ctx context.Context, msg *message.Message) (*message.Message, error) {
		return nil, nil
	}), nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, request(t, message.New(message.Out, "<a/>")))

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Empty(t, w.Body.Bytes())
}

func TestHandler_Reply(t *testing.T) {
	h := NewHandler(sinkFunc(func(ctx context.Context, msg *message.Message) (*message.Message, error) {
		return msg.Reply(message.Out, "<ok/>"), nil
	}), nil)
	req := message.New(message.Out, "<a/>")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, request(t, req))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, soap.ContentType, w.Header().Get("Content-Type"))
	reply, err := soap.Decode(w.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, req.ID, reply.RelatesTo)
}

func TestHandler_SinkErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"unknown operation", operation.ErrOperationNotFound, pipeline.CodeSender},
		{"invalid message", engine.ErrInvalidMessage, pipeline.CodeSender},
		{"no receiver", engine.ErrNoReceiver, pipeline.CodeReceiver},
		{"phase fault", pipeline.NewFault(pipeline.CodeSender, "bad header"), pipeline.CodeSender},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(sinkFunc(func(ctx context.Context, msg *message.Message) (*message.Message, error) {
				return nil, tt.err
			}), nil)
			req := message.New(message.Out, "<a/>")
			w := httptest.NewRecorder()
			h.ServeHTTP(w, request(t, req))

			assert.Equal(t, http.StatusInternalServerError, w.Code)
			reply, err := soap.Decode(w.Body.Bytes())
			require.NoError(t, err)
			assert.Equal(t, message.InFault, reply.Direction())
			assert.Equal(t, req.ID, reply.RelatesTo)
			assert.Equal(t, tt.code, reply.Payload.(*pipeline.Fault).Code)
		})
	}
}

func TestHTTPSServer_Start_NoCertificates(t *testing.T) {
	server := NewHTTPSServer(":0", &HTTPSConfig{}, http.NotFoundHandler())
	assert.Error(t, server.Start())
}

func TestHTTPSServer_Shutdown(t *testing.T) {
	server := NewHTTPSServer(":0", nil, http.NotFoundHandler())
	assert.NoError(t, server.Shutdown(context.Background()))
}

package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sirosfoundation/go-soapmep/internal/config"
	"github.com/sirosfoundation/go-soapmep/pkg/message"
	"github.com/sirosfoundation/go-soapmep/pkg/soap"
	"github.com/sirosfoundation/go-soapmep/pkg/transport"
)

const daemonConfig = `
engine:
  duplicateWindow: 10m
operations:
  - name: echo
    mep: in-out
    actions: ["urn:echo"]
    phases:
      in: [trace, duplicate-detection]
      out: [trace]
  - name: notify
    mep: in-only
    actions: ["urn:notify"]
endpoints:
  urn:peer: http://peer.invalid/soap
`

func newDaemon(t *testing.T, yaml string) (*mepd, error) {
	t.Helper()
	cfg, err := config.Parse([]byte(yaml))
	require.NoError(t, err)
	return build(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func post(t *testing.T, url string, msg *message.Message) (int, *message.Message) {
	t.Helper()
	data, err := soap.Encode(msg)
	require.NoError(t, err)

	resp, err := http.Post(url, soap.ContentType, bytes.NewReader(data))
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(body) == 0 {
		return resp.StatusCode, nil
	}
	reply, err := soap.Decode(body)
	require.NoError(t, err)
	return resp.StatusCode, reply
}

func TestBuild(t *testing.T) {
	d, err := newDaemon(t, daemonConfig)
	require.NoError(t, err)
	require.NoError(t, d.start(context.Background()))

	ts := httptest.NewServer(d.server.Handler())
	defer ts.Close()

	status, reply := post(t, ts.URL+"/soap", message.New(message.Out, "<Echo>hello</Echo>", message.WithAction("urn:echo")))
	assert.Equal(t, http.StatusOK, status)
	require.NotNil(t, reply)
	el, ok := reply.Payload.(*etree.Element)
	require.True(t, ok)
	assert.Equal(t, "Echo", el.Tag)
	assert.Equal(t, "hello", el.Text())

	status, reply = post(t, ts.URL+"/soap", message.New(message.Out, "<Note/>", message.WithAction("urn:notify")))
	assert.Equal(t, http.StatusAccepted, status)
	assert.Nil(t, reply)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, d.shutdown(ctx))
	assert.False(t, d.engine.Running())
}

func TestBuild_DuplicateRejected(t *testing.T) {
	d, err := newDaemon(t, daemonConfig)
	require.NoError(t, err)
	require.NoError(t, d.start(context.Background()))
	t.Cleanup(func() { _ = d.shutdown(context.Background()) })

	ts := httptest.NewServer(d.server.Handler())
	defer ts.Close()

	req := message.New(message.Out, "<Echo>once</Echo>", message.WithAction("urn:echo"))
	status, _ := post(t, ts.URL+"/soap", req)
	require.Equal(t, http.StatusOK, status)

	status, reply := post(t, ts.URL+"/soap", req)
	assert.Equal(t, http.StatusInternalServerError, status)
	require.NotNil(t, reply)
	assert.Equal(t, req.ID, reply.RelatesTo)
}

func TestBuild_UnknownPhase(t *testing.T) {
	_, err := newDaemon(t, `
operations:
  - name: echo
    mep: in-out
    phases:
      in: [no-such-phase]
`)
	assert.Error(t, err)
}

func TestBuild_CompressionLevel(t *testing.T) {
	_, err := newDaemon(t, "compression:\n  level: 9\n  maxSize: 1048576\n")
	assert.NoError(t, err)

	_, err = newDaemon(t, "compression:\n  level: 42\n")
	assert.ErrorContains(t, err, "compression")
}

func TestEndpointResolver(t *testing.T) {
	cfg, err := config.Parse([]byte(daemonConfig))
	require.NoError(t, err)

	r, err := endpointResolver(cfg)
	require.NoError(t, err)
	info, err := r.ResolveEndpoint(context.Background(), "urn:peer", "")
	require.NoError(t, err)
	assert.Equal(t, "http://peer.invalid/soap", info.URL)
	assert.IsType(t, &transport.StaticEndpointResolver{}, r)

	cfg.Discovery.Domain = "sml.example.com"
	r, err = endpointResolver(cfg)
	require.NoError(t, err)
	assert.IsType(t, &transport.MultiEndpointResolver{}, r)
}

package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sirosfoundation/go-soapmep/pkg/engine"
	"github.com/sirosfoundation/go-soapmep/pkg/message"
	"github.com/sirosfoundation/go-soapmep/pkg/pipeline"
	"github.com/sirosfoundation/go-soapmep/pkg/soap"
)

// TLS version constants
const (
	TLS12 = tls.VersionTLS12
	TLS13 = tls.VersionTLS13
)

// UserAgent is sent with every outbound request
const UserAgent = "go-soapmep/1.0"

var (
	// ErrSOAPFault is returned when the peer answers with a fault the
	// bound sink did not accept
	ErrSOAPFault = errors.New("SOAP fault")
	// ErrUnexpectedStatus is returned for non-SOAP HTTP error responses
	ErrUnexpectedStatus = errors.New("unexpected status code")
)

// RecommendedTLS12CipherSuites are the ECDHE AEAD suites accepted under TLS 1.2
var RecommendedTLS12CipherSuites = []uint16{
	tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
}

// HTTPSConfig contains HTTPS client/server configuration
type HTTPSConfig struct {
	MinTLSVersion   uint16
	MaxTLSVersion   uint16
	CipherSuites    []uint16
	ClientAuth      tls.ClientAuthType
	Certificates    []tls.Certificate
	RootCAs         *x509.CertPool
	ClientCAs       *x509.CertPool
	Timeout         time.Duration
	IdleConnTimeout time.Duration
}

// DefaultHTTPSConfig returns a default HTTPS configuration
func DefaultHTTPSConfig() *HTTPSConfig {
	return &HTTPSConfig{
		MinTLSVersion:   TLS12,
		MaxTLSVersion:   TLS13,
		CipherSuites:    RecommendedTLS12CipherSuites,
		ClientAuth:      tls.NoClientCert,
		Timeout:         30 * time.Second,
		IdleConnTimeout: 90 * time.Second,
	}
}

// ClientOption configures an HTTPSClient
type ClientOption func(*HTTPSClient)

// WithResolver maps logical destination addresses to endpoint URLs
func WithResolver(r EndpointResolver) ClientOption {
	return func(c *HTTPSClient) {
		c.resolver = r
	}
}

// WithHTTPClient replaces the underlying http.Client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *HTTPSClient) {
		c.client = hc
	}
}

// WithLogger sets the client logger
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *HTTPSClient) {
		c.logger = logger
	}
}

// HTTPSClient posts outbound messages as SOAP 1.2 envelopes. Replies
// returned on the HTTP back-channel are handed to the bound sink.
type HTTPSClient struct {
	client   *http.Client
	config   *HTTPSConfig
	resolver EndpointResolver
	logger   *slog.Logger

	mu   sync.RWMutex
	sink engine.Sink
}

var (
	_ engine.Transport = (*HTTPSClient)(nil)
	_ engine.Binder    = (*HTTPSClient)(nil)
)

// NewHTTPSClient creates a new HTTPS client
func NewHTTPSClient(config *HTTPSConfig, opts ...ClientOption) *HTTPSClient {
	if config == nil {
		config = DefaultHTTPSConfig()
	}

	tlsConfig := &tls.Config{
		MinVersion:   config.MinTLSVersion,
		MaxVersion:   config.MaxTLSVersion,
		CipherSuites: config.CipherSuites,
		Certificates: config.Certificates,
		RootCAs:      config.RootCAs,
	}

	transport := &http.Transport{
		TLSClientConfig:     tlsConfig,
		IdleConnTimeout:     config.IdleConnTimeout,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
	}

	c := &HTTPSClient{
		client: &http.Client{
			Transport: transport,
			Timeout:   config.Timeout,
		},
		config: config,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "transport")
	return c
}

// Bind implements engine.Binder
func (c *HTTPSClient) Bind(sink engine.Sink) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sink = sink
}

func (c *HTTPSClient) boundSink() engine.Sink {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sink
}

// Send implements engine.Transport
func (c *HTTPSClient) Send(ctx context.Context, msg *message.Message) error {
	endpoint, err := c.endpoint(ctx, msg)
	if err != nil {
		return err
	}

	body, err := soap.Encode(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	resp, err := c.Post(ctx, endpoint, body, soap.ContentType)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(resp)) == 0 {
		return nil
	}

	reply, err := soap.Decode(resp)
	if err != nil {
		return fmt.Errorf("failed to decode reply: %w", err)
	}
	return c.deliver(ctx, reply)
}

// deliver hands a back-channel reply to the sink
func (c *HTTPSClient) deliver(ctx context.Context, reply *message.Message) error {
	sink := c.boundSink()
	var err error
	if sink != nil {
		_, err = sink.Receive(ctx, reply)
	}
	if err == nil && sink != nil {
		return nil
	}

	if f, ok := reply.Payload.(*pipeline.Fault); ok {
		return fmt.Errorf("%w: %s: %s", ErrSOAPFault, f.Code, f.Reason)
	}
	if err != nil {
		c.logger.Warn("reply rejected",
			"message_id", reply.ID,
			"relates_to", reply.RelatesTo,
			"error", err)
		return err
	}
	c.logger.Debug("reply dropped, no sink bound", "message_id", reply.ID)
	return nil
}

// Post sends a raw body and returns the response body. A 500 response
// carrying a SOAP envelope is returned to the caller for decoding.
func (c *HTTPSClient) Post(ctx context.Context, endpoint string, body []byte, contentType string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", UserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK, resp.StatusCode == http.StatusAccepted:
		return respBody, nil
	case resp.StatusCode == http.StatusInternalServerError && isSOAP(resp.Header.Get("Content-Type")):
		return respBody, nil
	default:
		return nil, fmt.Errorf("%w %d: %s", ErrUnexpectedStatus, resp.StatusCode, string(respBody))
	}
}

func (c *HTTPSClient) endpoint(ctx context.Context, msg *message.Message) (string, error) {
	if c.resolver != nil {
		info, err := c.resolver.ResolveEndpoint(ctx, msg.To, msg.Action)
		if err == nil {
			return info.URL, nil
		}
		if !isURL(msg.To) {
			return "", err
		}
	}
	if !isURL(msg.To) {
		return "", fmt.Errorf("%w: %q", ErrEndpointNotFound, msg.To)
	}
	return msg.To, nil
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func isSOAP(contentType string) bool {
	return strings.HasPrefix(contentType, "application/soap+xml")
}

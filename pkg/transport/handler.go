package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/sirosfoundation/go-soapmep/pkg/engine"
	"github.com/sirosfoundation/go-soapmep/pkg/message"
	"github.com/sirosfoundation/go-soapmep/pkg/operation"
	"github.com/sirosfoundation/go-soapmep/pkg/pipeline"
	"github.com/sirosfoundation/go-soapmep/pkg/soap"
)

// MaxBodySize bounds inbound request bodies
const MaxBodySize = 10 << 20

// Handler is the inbound HTTP binding. It decodes SOAP envelopes, passes
// them to the sink and writes the synchronous reply, if any.
type Handler struct {
	sink   engine.Sink
	logger *slog.Logger
}

// NewHandler creates a handler delivering to sink
func NewHandler(sink engine.Sink, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		sink:   sink,
		logger: logger.With("component", "transport"),
	}
}

// ServeHTTP implements http.Handler
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	defer r.Body.Close()

	body, err := io.ReadAll(io.LimitReader(r.Body, MaxBodySize))
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	msg, err := soap.Decode(body)
	if err != nil {
		h.logger.Warn("invalid envelope", "remote", r.RemoteAddr, "error", err)
		h.writeFault(w, nil, pipeline.NewFault(pipeline.CodeSender, err.Error()), http.StatusBadRequest)
		return
	}

	reply, err := h.sink.Receive(r.Context(), msg)
	if err != nil {
		h.logger.Warn("inbound message failed",
			"message_id", msg.ID,
			"action", msg.Action,
			"error", err)
		h.writeFault(w, msg, faultFor(err), http.StatusInternalServerError)
		return
	}
	if reply == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}

	status := http.StatusOK
	if _, ok := reply.Payload.(*pipeline.Fault); ok {
		status = http.StatusInternalServerError
	}
	h.write(w, reply, status)
}

// faultFor classifies a dispatch error. Requests the engine cannot route
// are the sender's fault.
func faultFor(err error) *pipeline.Fault {
	if f, ok := pipeline.AsFault(err); ok {
		return f
	}
	code := pipeline.CodeReceiver
	if errors.Is(err, engine.ErrInvalidMessage) || errors.Is(err, operation.ErrOperationNotFound) {
		code = pipeline.CodeSender
	}
	return pipeline.NewFault(code, err.Error())
}

func (h *Handler) writeFault(w http.ResponseWriter, req *message.Message, f *pipeline.Fault, status int) {
	var fm *message.Message
	if req != nil {
		fm = req.Reply(message.OutFault, f)
	} else {
		fm = message.New(message.OutFault, f)
	}
	h.write(w, fm, status)
}

func (h *Handler) write(w http.ResponseWriter, msg *message.Message, status int) {
	data, err := soap.Encode(msg)
	if err != nil {
		h.logger.Error("failed to encode reply", "message_id", msg.ID, "error", err)
		http.Error(w, "Failed to encode reply", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", soap.ContentType)
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// HTTPSServer serves a Handler over TLS
type HTTPSServer struct {
	server *http.Server
	config *HTTPSConfig
}

// NewHTTPSServer creates a new HTTPS server
func NewHTTPSServer(addr string, config *HTTPSConfig, handler http.Handler) *HTTPSServer {
	if config == nil {
		config = DefaultHTTPSConfig()
	}

	tlsConfig := &tls.Config{
		MinVersion:   config.MinTLSVersion,
		MaxVersion:   config.MaxTLSVersion,
		CipherSuites: config.CipherSuites,
		Certificates: config.Certificates,
		ClientCAs:    config.ClientCAs,
		ClientAuth:   config.ClientAuth,
	}

	return &HTTPSServer{
		config: config,
		server: &http.Server{
			Addr:         addr,
			Handler:      handler,
			TLSConfig:    tlsConfig,
			ReadTimeout:  config.Timeout,
			WriteTimeout: config.Timeout,
			IdleTimeout:  config.IdleConnTimeout,
		},
	}
}

// Start starts the HTTPS server
func (s *HTTPSServer) Start() error {
	if len(s.config.Certificates) == 0 {
		return errors.New("no TLS certificates configured")
	}
	if err := s.server.ListenAndServeTLS("", ""); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("https server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *HTTPSServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Command mepd runs the message exchange engine behind an HTTP SOAP endpoint.
//
// Usage:
//
//	mepd -config /etc/mepd/config.yaml
//
// The configuration file path can also be set with MEPD_CONFIG.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/beevik/etree"

	"github.com/sirosfoundation/go-soapmep/internal/config"
	"github.com/sirosfoundation/go-soapmep/internal/metrics"
	"github.com/sirosfoundation/go-soapmep/internal/server"
	"github.com/sirosfoundation/go-soapmep/internal/storage"
	"github.com/sirosfoundation/go-soapmep/internal/storage/mongodb"
	"github.com/sirosfoundation/go-soapmep/pkg/compression"
	"github.com/sirosfoundation/go-soapmep/pkg/discovery"
	"github.com/sirosfoundation/go-soapmep/pkg/engine"
	"github.com/sirosfoundation/go-soapmep/pkg/mep"
	"github.com/sirosfoundation/go-soapmep/pkg/message"
	"github.com/sirosfoundation/go-soapmep/pkg/operation"
	"github.com/sirosfoundation/go-soapmep/pkg/pipeline"
	"github.com/sirosfoundation/go-soapmep/pkg/reliability"
	"github.com/sirosfoundation/go-soapmep/pkg/transport"
)

// archiveCapacity bounds the in-memory archive used without MongoDB
const archiveCapacity = 10000

type mepd struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     storage.Store
	collector *metrics.Collector
	detector  *reliability.Detector
	ops       *operation.Registry
	engine    *engine.Engine
	server    *server.Server
}

func main() {
	configPath := flag.String("config", os.Getenv("MEPD_CONFIG"), "path to the YAML configuration file")
	flag.Parse()

	if *configPath == "" {
		fmt.Fprintln(os.Stderr, "mepd: -config is required")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("mepd failed", "error", err)
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	level, err := cfg.LogLevel()
	if err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx := context.Background()

	d, err := build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if err := d.start(ctx); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		if err := d.server.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		logger.Error("server failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return d.shutdown(shutdownCtx)
}

// build wires the daemon components from configuration
func build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*mepd, error) {
	d := &mepd{
		cfg:       cfg,
		logger:    logger,
		collector: metrics.NewCollector(""),
		detector:  reliability.NewDetector(cfg.Engine.DuplicateWindow),
		ops:       operation.NewRegistry(),
	}

	if cfg.Storage.MongoDB.URI != "" {
		store, err := mongodb.NewStore(ctx, &mongodb.Config{
			URI:        cfg.Storage.MongoDB.URI,
			Database:   cfg.Storage.MongoDB.Database,
			Collection: cfg.Storage.MongoDB.Collection,
		})
		if err != nil {
			return nil, err
		}
		d.store = store
	} else {
		logger.Warn("no storage.mongodb.uri configured, archiving exchanges in memory")
		d.store = storage.NewMemoryStore(archiveCapacity)
	}

	gzipOut, gzipIn, err := compressionPhases(cfg.Compression)
	if err != nil {
		return nil, err
	}
	phases, err := pipeline.NewRegistry(
		pipeline.Trace(logger),
		gzipOut,
		gzipIn,
		reliability.DuplicatePhase(d.detector),
	)
	if err != nil {
		return nil, err
	}

	descs, err := cfg.Descriptors()
	if err != nil {
		return nil, err
	}
	for _, desc := range descs {
		if err := d.ops.Register(desc); err != nil {
			return nil, err
		}
		// reject unknown phase names at startup rather than per message
		if _, err := phases.Build(desc); err != nil {
			return nil, fmt.Errorf("operation %s: %w", desc.Name(), err)
		}
	}

	resolver, err := endpointResolver(cfg)
	if err != nil {
		return nil, err
	}
	client := transport.NewHTTPSClient(nil,
		transport.WithResolver(resolver),
		transport.WithLogger(logger))

	d.engine, err = engine.New(engine.Config{
		Resolver:       d.ops,
		Phases:         phases,
		Transport:      client,
		Logger:         logger,
		Observer:       d.collector,
		Archiver:       d.store,
		DefaultTimeout: cfg.Engine.DefaultTimeout,
		ExchangeTTL:    cfg.Engine.ExchangeTTL,
		ReapInterval:   cfg.Engine.ReapInterval,
	})
	if err != nil {
		return nil, err
	}

	for _, desc := range descs {
		if desc.Pattern().Initiator() == mep.In {
			d.engine.Handle(desc.Name(), d.receiver(desc))
		}
	}

	d.server, err = server.New(cfg, server.Dependencies{
		Engine:     d.engine,
		Operations: d.ops,
		Store:      d.store,
		Metrics:    d.collector,
	}, logger)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func compressionPhases(cfg config.CompressionConfig) (pipeline.Phase, pipeline.Phase, error) {
	var opts []compression.Option
	if cfg.Level != 0 {
		opts = append(opts, compression.WithLevel(cfg.Level))
	}
	if cfg.MaxSize != 0 {
		opts = append(opts, compression.WithMaxSize(cfg.MaxSize))
	}
	out, in, err := compression.Phases(opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("compression: %w", err)
	}
	return out, in, nil
}

// endpointResolver maps configured addresses statically and falls back to
// DNS discovery when a discovery domain is configured
func endpointResolver(cfg *config.Config) (transport.EndpointResolver, error) {
	static := transport.NewStaticEndpointResolver()
	for address, url := range cfg.Endpoints {
		static.RegisterEndpoint(address, &transport.EndpointInfo{URL: url, Address: address})
	}
	if cfg.Discovery.Domain == "" {
		return static, nil
	}

	dnsResolver, err := discovery.New(discovery.Config{
		Domain:      cfg.Discovery.Domain,
		Environment: cfg.Discovery.Environment,
		Services:    cfg.Discovery.Services,
		DNSServer:   cfg.Discovery.DNSServer,
	})
	if err != nil {
		return nil, err
	}
	return transport.NewMultiResolver(
		static,
		transport.NewDynamicEndpointResolver(dnsResolver.Lookup, cfg.Discovery.CacheTTL),
	), nil
}

// receiver logs inbound requests and echoes the payload of in-out requests
func (d *mepd) receiver(desc *operation.Descriptor) engine.Receiver {
	logger := d.logger.With("operation", desc.Name())
	twoWay := desc.Pattern().Legal(mep.Out)

	return engine.ReceiverFunc(func(ctx context.Context, in *message.Message) (*message.Message, error) {
		logger.Info("message received", "message_id", in.ID, "action", in.Action)
		if !twoWay {
			return nil, nil
		}
		var payload any
		if el, ok := in.Payload.(*etree.Element); ok {
			payload = el.Copy()
		}
		return in.Reply(message.Out, payload), nil
	})
}

func (d *mepd) start(ctx context.Context) error {
	d.detector.Start(ctx)
	return d.engine.Start(ctx)
}

func (d *mepd) shutdown(ctx context.Context) error {
	var errs []error
	if err := d.server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("server: %w", err))
	}
	if err := d.engine.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("engine: %w", err))
	}
	d.detector.Stop()
	d.logger.Info("mepd stopped")
	return errors.Join(errs...)
}

// Package config handles configuration loading for the mepd daemon.
//
// Configuration is loaded from a YAML file with support for environment
// variable expansion (${VAR} or $VAR syntax), so database credentials can
// be injected at runtime.
//
// # Configuration Sections
//
//   - server: HTTP server settings (port, TLS, base path)
//   - engine: exchange timeouts and the duplicate detection window
//   - operations: operation descriptors and their phase lists, see [Config.Descriptors]
//   - endpoints: static address to URL mappings for outbound messages
//   - discovery: DNS U-NAPTR lookup for addresses without a static mapping
//   - compression: gzip level and inflate limit of the gzip phases
//   - storage: exchange archive (MongoDB; in-memory when no URI is set)
//   - observability: Prometheus metrics
//   - logging: log level
//
// # Example Configuration
//
//	server:
//	  port: 8080
//	  basePath: "/"
//
//	engine:
//	  defaultTimeout: 30s
//	  exchangeTTL: 5m
//
//	operations:
//	  - name: echo
//	    mep: http://www.w3.org/ns/wsdl/in-out
//	    actions: ["urn:example:echo"]
//	    phases:
//	      in: [trace, duplicate-detection]
//	      inFault: [trace]
//
//	storage:
//	  mongodb:
//	    uri: ${MONGODB_URI}
//	    database: soapmep
//
// See [Load] for loading configuration from a file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sirosfoundation/go-soapmep/pkg/mep"
	"github.com/sirosfoundation/go-soapmep/pkg/message"
	"github.com/sirosfoundation/go-soapmep/pkg/operation"
)

// Config is the root configuration structure
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Engine      EngineConfig      `yaml:"engine"`
	Operations  []OperationConfig `yaml:"operations"`
	Endpoints   map[string]string `yaml:"endpoints"`
	Discovery   DiscoveryConfig   `yaml:"discovery"`
	Compression CompressionConfig `yaml:"compression"`
	Storage     StorageConfig     `yaml:"storage"`
	Metrics     MetricsConfig     `yaml:"observability"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// CompressionConfig tunes the gzip-compress and gzip-decompress phases
type CompressionConfig struct {
	// Level is the gzip level; zero selects the default level
	Level int `yaml:"level"`
	// MaxSize bounds inflated payloads in bytes; zero selects the package
	// default and a negative value disables the bound
	MaxSize int64 `yaml:"maxSize"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port     int    `yaml:"port"`
	BasePath string `yaml:"basePath"`
	TLS      struct {
		Enabled  bool   `yaml:"enabled"`
		CertFile string `yaml:"certFile"`
		KeyFile  string `yaml:"keyFile"`
	} `yaml:"tls"`
}

// EngineConfig holds exchange lifecycle settings
type EngineConfig struct {
	DefaultTimeout  time.Duration `yaml:"defaultTimeout"`
	ExchangeTTL     time.Duration `yaml:"exchangeTTL"`
	ReapInterval    time.Duration `yaml:"reapInterval"`
	DuplicateWindow time.Duration `yaml:"duplicateWindow"`
}

// OperationConfig describes one operation descriptor
type OperationConfig struct {
	Name     string   `yaml:"name"`
	MEP      string   `yaml:"mep"`
	Actions  []string `yaml:"actions"`
	Endpoint string   `yaml:"endpoint"`

	// Phases maps a flow label (in, out, inFault, outFault) to phase names
	Phases map[string][]string `yaml:"phases"`
}

// DiscoveryConfig holds DNS endpoint discovery settings. Discovery is
// disabled when Domain is empty.
type DiscoveryConfig struct {
	Domain      string        `yaml:"domain"`
	Environment string        `yaml:"environment"`
	Services    []string      `yaml:"services"`
	DNSServer   string        `yaml:"dnsServer"`
	CacheTTL    time.Duration `yaml:"cacheTTL"`
}

// StorageConfig holds database settings
type StorageConfig struct {
	MongoDB MongoDBConfig `yaml:"mongodb"`
}

// MongoDBConfig holds MongoDB connection settings
type MongoDBConfig struct {
	URI        string `yaml:"uri"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
}

// MetricsConfig holds observability settings
type MetricsConfig struct {
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
}

// LoggingConfig holds log settings
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes configuration from YAML bytes
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.BasePath == "" {
		c.Server.BasePath = "/"
	}
	if c.Engine.DefaultTimeout == 0 {
		c.Engine.DefaultTimeout = 30 * time.Second
	}
	if c.Engine.ExchangeTTL == 0 {
		c.Engine.ExchangeTTL = 5 * time.Minute
	}
	if c.Engine.ReapInterval == 0 {
		c.Engine.ReapInterval = time.Minute
	}
	if c.Engine.DuplicateWindow == 0 {
		c.Engine.DuplicateWindow = time.Hour
	}
	if c.Discovery.CacheTTL == 0 {
		c.Discovery.CacheTTL = time.Hour
	}
	if c.Storage.MongoDB.Database == "" {
		c.Storage.MongoDB.Database = "soapmep"
	}
	if c.Storage.MongoDB.Collection == "" {
		c.Storage.MongoDB.Collection = "exchanges"
	}
	if c.Metrics.Metrics.Path == "" {
		c.Metrics.Metrics.Path = "/metrics"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

func (c *Config) validate() error {
	if c.Server.TLS.Enabled && (c.Server.TLS.CertFile == "" || c.Server.TLS.KeyFile == "") {
		return fmt.Errorf("server.tls.certFile and server.tls.keyFile are required when TLS is enabled")
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	// the reaper must not discard exchanges a blocking send still waits on
	if c.Engine.ExchangeTTL < c.Engine.DefaultTimeout {
		return fmt.Errorf("engine.exchangeTTL (%s) must not be shorter than engine.defaultTimeout (%s)",
			c.Engine.ExchangeTTL, c.Engine.DefaultTimeout)
	}

	seen := make(map[string]bool)
	for i, op := range c.Operations {
		if op.Name == "" {
			return fmt.Errorf("operations[%d].name is required", i)
		}
		if seen[op.Name] {
			return fmt.Errorf("operations[%d]: duplicate operation %q", i, op.Name)
		}
		seen[op.Name] = true
		if _, err := mep.ParseURI(op.MEP); err != nil {
			return fmt.Errorf("operations[%d].mep: %w", i, err)
		}
		for flow := range op.Phases {
			if _, ok := message.ParseDirection(flow); !ok {
				return fmt.Errorf("operations[%d].phases: unknown flow %q", i, flow)
			}
		}
	}
	return nil
}

// LogLevel parses logging.level
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(c.Logging.Level))); err != nil {
		return 0, fmt.Errorf("logging.level must be debug, info, warn or error, got '%s'", c.Logging.Level)
	}
	return level, nil
}

// Descriptors builds the configured operation descriptors
func (c *Config) Descriptors() ([]*operation.Descriptor, error) {
	descs := make([]*operation.Descriptor, 0, len(c.Operations))
	for _, op := range c.Operations {
		variant, err := mep.ParseURI(op.MEP)
		if err != nil {
			return nil, fmt.Errorf("operation %s: %w", op.Name, err)
		}

		opts := []operation.Option{
			operation.WithAction(op.Actions...),
			operation.WithEndpoint(op.Endpoint),
		}
		for flow, ids := range op.Phases {
			dir, _ := message.ParseDirection(flow)
			opts = append(opts, operation.WithPhases(dir, ids...))
		}

		d, err := operation.New(op.Name, variant, opts...)
		if err != nil {
			return nil, fmt.Errorf("operation %s: %w", op.Name, err)
		}
		descs = append(descs, d)
	}
	return descs, nil
}

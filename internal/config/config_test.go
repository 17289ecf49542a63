package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sirosfoundation/go-soapmep/pkg/mep"
	"github.com/sirosfoundation/go-soapmep/pkg/message"
)

const sample = `
server:
  port: 9090
engine:
  defaultTimeout: 10s
  duplicateWindow: 30m
operations:
  - name: echo
    mep: http://www.w3.org/ns/wsdl/in-out
    actions: ["urn:example:echo"]
    phases:
      in: [trace, duplicate-detection]
      inFault: [trace]
  - name: notify
    mep: out-only
    endpoint: http://peer.example.com/soap
endpoints:
  urn:peer:b: https://b.example.com/soap
discovery:
  domain: sml.example.com
  services: ["SOAP:https"]
storage:
  mongodb:
    uri: ${TEST_MONGO_URI}
logging:
  level: debug
`

func TestParse(t *testing.T) {
	t.Setenv("TEST_MONGO_URI", "mongodb://db:27017")

	cfg, err := Parse([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "/", cfg.Server.BasePath)
	assert.Equal(t, 10*time.Second, cfg.Engine.DefaultTimeout)
	assert.Equal(t, 5*time.Minute, cfg.Engine.ExchangeTTL)
	assert.Equal(t, time.Minute, cfg.Engine.ReapInterval)
	assert.Equal(t, 30*time.Minute, cfg.Engine.DuplicateWindow)
	assert.Equal(t, "mongodb://db:27017", cfg.Storage.MongoDB.URI)
	assert.Equal(t, "soapmep", cfg.Storage.MongoDB.Database)
	assert.Equal(t, "exchanges", cfg.Storage.MongoDB.Collection)
	assert.Equal(t, "/metrics", cfg.Metrics.Metrics.Path)
	assert.Equal(t, "https://b.example.com/soap", cfg.Endpoints["urn:peer:b"])
	assert.Equal(t, "sml.example.com", cfg.Discovery.Domain)
	assert.Equal(t, []string{"SOAP:https"}, cfg.Discovery.Services)
	assert.Equal(t, time.Hour, cfg.Discovery.CacheTTL)

	level, err := cfg.LogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestDescriptors(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	require.NoError(t, err)

	descs, err := cfg.Descriptors()
	require.NoError(t, err)
	require.Len(t, descs, 2)

	echo := descs[0]
	assert.Equal(t, "echo", echo.Name())
	assert.Equal(t, mep.InOut, echo.Variant())
	assert.Equal(t, []string{"urn:example:echo"}, echo.Actions())
	assert.Equal(t, []string{"trace", "duplicate-detection"}, echo.PhaseList(message.In))
	assert.Equal(t, []string{"trace"}, echo.PhaseList(message.InFault))

	notify := descs[1]
	assert.Equal(t, mep.OutOnly, notify.Variant())
	assert.Equal(t, "http://peer.example.com/soap", notify.Endpoint())
}

func TestDescriptors_IllegalFlow(t *testing.T) {
	cfg, err := Parse([]byte(`
operations:
  - name: fire
    mep: out-only
    phases:
      in: [trace]
`))
	require.NoError(t, err)

	_, err = cfg.Descriptors()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"tls without cert", "server:\n  tls:\n    enabled: true\n"},
		{"bad log level", "logging:\n  level: loud\n"},
		{"unnamed operation", "operations:\n  - mep: in-only\n"},
		{"duplicate operation", "operations:\n  - name: a\n    mep: in-only\n  - name: a\n    mep: in-out\n"},
		{"unknown mep", "operations:\n  - name: a\n    mep: in-optional-out\n"},
		{"unknown flow", "operations:\n  - name: a\n    mep: in-only\n    phases:\n      sideways: [trace]\n"},
		{"ttl shorter than timeout", "engine:\n  defaultTimeout: 2m\n  exchangeTTL: 1m\n"},
		{"timeout beyond default ttl", "engine:\n  defaultTimeout: 10m\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestValidate_ExchangeTTL(t *testing.T) {
	cfg, err := Parse([]byte("engine:\n  defaultTimeout: 1m\n  exchangeTTL: 1m\n"))
	require.NoError(t, err)
	assert.Equal(t, time.Minute, cfg.Engine.ExchangeTTL)

	_, err = Parse([]byte("engine:\n  defaultTimeout: 2m\n  exchangeTTL: 1m\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "engine.exchangeTTL")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 7070\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Empty(t, cfg.Operations)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

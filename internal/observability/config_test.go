package observability

import (
	"testing"

	"github.com/smallbiznis/gymgate/internal/config"
	"github.com/stretchr/testify/require"
)

func TestNewConfigProduction(t *testing.T) {
	cfg := NewConfig(config.Config{
		Environment:  "Production",
		AppVersion:   "1.2.0",
		OTLPEndpoint: "otel:4318",
		Observability: config.ObservabilityConfig{
			LogLevel:      "WARNING",
			OtelEnabled:   true,
			OtelProtocol:  "http/protobuf",
			SamplingRatio: 3,
		},
	})

	require.Equal(t, "gymgate", cfg.ServiceName)
	require.Equal(t, "production", cfg.Environment)
	require.Equal(t, "warn", cfg.LogLevel)
	require.Equal(t, "json", cfg.LogFormat)
	require.Equal(t, "http", cfg.OtelExporterProtocol)
	require.True(t, cfg.OtelEnabled)
	require.Equal(t, 1.0, cfg.OtelSamplingRatio)
	require.False(t, cfg.Debug())
}

func TestNewConfigDevelopmentSamplesEverything(t *testing.T) {
	cfg := NewConfig(config.Config{
		AppName:     "gate-edge",
		Environment: "development",
		Observability: config.ObservabilityConfig{
			OtelEnabled:   true,
			SamplingRatio: 0.1,
		},
	})

	require.Equal(t, "gate-edge", cfg.ServiceName)
	require.True(t, cfg.Debug())
	require.Equal(t, 1.0, cfg.OtelSamplingRatio)
	require.Equal(t, "grpc", cfg.OtelExporterProtocol)
	// No collector endpoint, nothing to export to.
	require.False(t, cfg.OtelEnabled)
}

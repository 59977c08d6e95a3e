package observability_test

import (
	"testing"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Ravio1i/azure-devops-server-mcp/internal/observability"
)

func TestLoggers(t *testing.T) {
	t.Cleanup(func() {
		observability.CLILogger = nil
		observability.ServerLogger = nil
	})

	t.Run("CLILogger", func(t *testing.T) {
		observability.InitCLILogger("adosmcp-test", true)
		require.NotNil(t, observability.CLILogger)
		observability.CLILogger.Debug("debug message", zap.String("mode", "verbose"))

		assert.Same(t, observability.CLILogger, observability.Logger())
	})

	t.Run("ServerLoggerTakesPrecedence", func(t *testing.T) {
		observability.InitServerLogger("adosmcp-test", "warn", "")
		require.NotNil(t, observability.ServerLogger)
		observability.ServerLogger.Warn("structured message",
			zap.String("operation", "list_team_projects"),
			zap.Int("quota", 60))

		assert.Same(t, observability.ServerLogger, observability.Logger())
	})
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]string{
		"trace":   "TRACE",
		"debug":   "DEBUG",
		" DEBUG ": "DEBUG",
		"info":    "INFO",
		"warning": "WARN",
		"error":   "ERROR",
		"":        "INFO",
		"verbose": "INFO",
	}
	for in, want := range tests {
		assert.Equal(t, want, observability.ParseLogLevel(in), "level %q", in)
	}
}

func TestDisableTelemetry(t *testing.T) {
	observability.DisableTelemetry()
	assert.Nil(t, observability.TelemetrySystem)
}

func TestInitMetrics(t *testing.T) {
	original := observability.TelemetrySystem
	t.Cleanup(func() {
		observability.TelemetrySystem = original
		observability.PrometheusExporter = nil
	})

	require.NoError(t, observability.InitMetrics("adosmcp_test", 0))
	require.NotNil(t, observability.TelemetrySystem)
	require.NotNil(t, observability.PrometheusExporter)
}

func TestEmbeddedCrucible(t *testing.T) {
	version := crucible.GetVersion()
	assert.NotEmpty(t, version.Gofulmen)
	assert.NotEmpty(t, version.Crucible)
}

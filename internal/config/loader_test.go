package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ravio1i/azure-devops-server-mcp/internal/core/guard"
)

// isolate points XDG lookups at an empty directory and clears backend env vars
// so a developer's own settings never leak into assertions.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	for _, name := range EnvVarNames() {
		t.Setenv(name, "")
		require.NoError(t, os.Unsetenv(name))
	}
}

func TestLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("LoadDefaults", func(t *testing.T) {
		isolate(t)

		cfg, err := Load(ctx)
		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, TransportStdio, cfg.Transport)

		assert.Equal(t, "localhost", cfg.Server.Host)
		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
		assert.Equal(t, 120*time.Second, cfg.Server.WriteTimeout)
		assert.Equal(t, 120*time.Second, cfg.Server.IdleTimeout)
		assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)

		assert.Equal(t, "", cfg.AzureDevOps.ServerURL)
		assert.Equal(t, "7.1-preview.3", cfg.AzureDevOps.APIVersion)
		assert.Equal(t, 30*time.Second, cfg.AzureDevOps.Timeout)
		assert.True(t, cfg.AzureDevOps.Breaker.Enabled)
		assert.Equal(t, uint32(5), cfg.AzureDevOps.Breaker.ConsecutiveFailures)

		assert.Equal(t, guard.Policy{QuotaPerMinute: 60, MaxPayloadMB: 1}, cfg.Guard.Default)
		assert.Equal(t, 20, cfg.Guard.WriteQuotaPerMinute)
		assert.Empty(t, cfg.Guard.Operations)

		assert.Equal(t, "info", cfg.Logging.Level)
		assert.Equal(t, "STRUCTURED", cfg.Logging.Profile)
		assert.True(t, cfg.Metrics.Enabled)
		assert.Equal(t, 9090, cfg.Metrics.Port)
		assert.True(t, cfg.Health.Enabled)
		assert.False(t, cfg.Debug.PprofEnabled)
	})

	t.Run("RuntimeOverrides", func(t *testing.T) {
		isolate(t)

		cfg, err := Load(ctx, map[string]any{
			"server":  map[string]any{"port": 9000, "host": "0.0.0.0"},
			"logging": map[string]any{"level": "debug"},
		})
		require.NoError(t, err)

		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
		assert.Equal(t, 9000, cfg.Server.Port)
		assert.Equal(t, "debug", cfg.Logging.Level)
		assert.Equal(t, "STRUCTURED", cfg.Logging.Profile)
	})

	t.Run("BackendEnvNames", func(t *testing.T) {
		isolate(t)
		t.Setenv("AZURE_DEVOPS_SERVER_URL", "https://tfs.example.com/tfs")
		t.Setenv("AZURE_DEVOPS_SERVER_TOKEN", "pat-token")
		t.Setenv("AZURE_DEVOPS_SERVER_COLLECTION", "DefaultCollection")
		t.Setenv("AZURE_DEVOPS_SERVER_API_VERSION", "6.0")

		cfg, err := Load(ctx)
		require.NoError(t, err)

		assert.Equal(t, "https://tfs.example.com/tfs", cfg.AzureDevOps.ServerURL)
		assert.Equal(t, "pat-token", cfg.AzureDevOps.Token)
		assert.Equal(t, "DefaultCollection", cfg.AzureDevOps.Collection)
		assert.Equal(t, "6.0", cfg.AzureDevOps.APIVersion)
		assert.NoError(t, cfg.RequireBackend())
	})

	t.Run("PrefixedEnvWinsOverBackendEnv", func(t *testing.T) {
		isolate(t)
		t.Setenv("AZURE_DEVOPS_SERVER_URL", "https://old.example.com")
		t.Setenv("ADOSMCP_AZURE_DEVOPS_SERVER_URL", "https://new.example.com")

		cfg, err := Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, "https://new.example.com", cfg.AzureDevOps.ServerURL)
	})

	t.Run("EnvOverrides", func(t *testing.T) {
		isolate(t)
		t.Setenv("ADOSMCP_PORT", "3000")
		t.Setenv("ADOSMCP_LOG_LEVEL", "warn")
		t.Setenv("ADOSMCP_METRICS_ENABLED", "false")
		t.Setenv("ADOSMCP_TRANSPORT", "HTTP")
		t.Setenv("ADOSMCP_GUARD_QUOTA_PER_MINUTE", "30")
		t.Setenv("ADOSMCP_GUARD_MAX_PAYLOAD_MB", "2.5")

		cfg, err := Load(ctx)
		require.NoError(t, err)

		assert.Equal(t, 3000, cfg.Server.Port)
		assert.Equal(t, "warn", cfg.Logging.Level)
		assert.False(t, cfg.Metrics.Enabled)
		assert.Equal(t, TransportHTTP, cfg.Transport)
		assert.Equal(t, guard.Policy{QuotaPerMinute: 30, MaxPayloadMB: 2.5}, cfg.Guard.Default)
	})

	t.Run("ConfigPrecedence", func(t *testing.T) {
		isolate(t)
		t.Setenv("ADOSMCP_PORT", "4000")

		cfg, err := Load(ctx, map[string]any{"server": map[string]any{"port": 5000}})
		require.NoError(t, err)
		assert.Equal(t, 5000, cfg.Server.Port)
	})
}

func TestLoadFile(t *testing.T) {
	isolate(t)

	path := filepath.Join(t.TempDir(), "adosmcp.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
transport: http
azure_devops:
  server_url: https://tfs.example.com/tfs
  collection: Fabrikam
  timeout: 45s
guard:
  default:
    quota_per_minute: 100
  operations:
    list_work_items:
      quota_per_minute: 10
    get_file_content:
      max_payload_mb: 4
`), 0o600))

	cfg, err := LoadFile(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, TransportHTTP, cfg.Transport)
	assert.Equal(t, "Fabrikam", cfg.AzureDevOps.Collection)
	assert.Equal(t, 45*time.Second, cfg.AzureDevOps.Timeout)
	assert.Equal(t, guard.Policy{QuotaPerMinute: 100, MaxPayloadMB: 1}, cfg.Guard.Default)
	assert.Equal(t, guard.Policy{QuotaPerMinute: 10}, cfg.Guard.Operations["list_work_items"])
	assert.Equal(t, guard.Policy{MaxPayloadMB: 4}, cfg.Guard.Operations["get_file_content"])

	t.Run("EnvBeatsFile", func(t *testing.T) {
		t.Setenv("AZURE_DEVOPS_SERVER_COLLECTION", "Contoso")
		cfg, err := LoadFile(context.Background(), path)
		require.NoError(t, err)
		assert.Equal(t, "Contoso", cfg.AzureDevOps.Collection)
	})

	t.Run("MissingFile", func(t *testing.T) {
		_, err := LoadFile(context.Background(), filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
	})
}

func TestLoadCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Load(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestValidate(t *testing.T) {
	isolate(t)
	cfg, err := Load(context.Background())
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	err = cfg.RequireBackend()
	require.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "AZURE_DEVOPS_SERVER_URL and AZURE_DEVOPS_SERVER_TOKEN must be set")

	cfg.Transport = "carrier-pigeon"
	cfg.Server.Port = 70000
	err = cfg.Validate()
	require.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), `transport must be "stdio" or "http"`)
	assert.Contains(t, err.Error(), "server.port 70000 out of range")
}

func TestGetConfig(t *testing.T) {
	isolate(t)

	cfg, err := Load(context.Background(), map[string]any{"server": map[string]any{"port": 8181}})
	require.NoError(t, err)

	current := GetConfig()
	require.NotNil(t, current)
	assert.Equal(t, cfg.Server.Port, current.Server.Port)
}

func TestEnvVarNames(t *testing.T) {
	names := EnvVarNames()
	for _, want := range []string{
		"AZURE_DEVOPS_SERVER_URL",
		"AZURE_DEVOPS_SERVER_TOKEN",
		"AZURE_DEVOPS_SERVER_COLLECTION",
		"AZURE_DEVOPS_SERVER_API_VERSION",
		"ADOSMCP_LOG_LEVEL",
		"ADOSMCP_PORT",
		"ADOSMCP_TRANSPORT",
	} {
		assert.Contains(t, names, want)
	}
	assert.IsNonDecreasing(t, names)
}

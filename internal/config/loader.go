// Package config loads adosmcp configuration from defaults, an optional YAML
// file, ADOSMCP_* environment variables, the AZURE_DEVOPS_SERVER_* variables
// understood by existing deployments, and runtime overrides, in that order.
package config

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const (
	// AppName names the binary and its XDG config directory.
	AppName = "adosmcp"

	// EnvPrefix prefixes every adosmcp-specific environment variable.
	EnvPrefix = "ADOSMCP"
)

var (
	appConfig *Config
	configMu  sync.RWMutex
)

// ErrInvalid marks configuration that failed validation.
var ErrInvalid = errors.New("invalid configuration")

// envBinding maps a config key to the environment variables that set it.
// Earlier names win when several are present.
type envBinding struct {
	Key   string
	Names []string
}

// Load loads configuration without an explicit config file.
// This function is safe to call multiple times (e.g., for config reload).
func Load(ctx context.Context, runtimeOverrides ...map[string]any) (*Config, error) {
	return LoadFile(ctx, "", runtimeOverrides...)
}

// LoadFile loads configuration, reading path when it is non-empty and
// searching the default locations otherwise. Runtime overrides use nested maps
// keyed like the YAML file and take precedence over everything else.
func LoadFile(ctx context.Context, path string, runtimeOverrides ...map[string]any) (*Config, error) {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	v := viper.New()
	SetDefaults(v)

	if err := readConfigFile(v, path); err != nil {
		return nil, err
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, binding := range envBindings() {
		args := append([]string{binding.Key}, binding.Names...)
		if err := v.BindEnv(args...); err != nil {
			return nil, fmt.Errorf("bind env for %s: %w", binding.Key, err)
		}
	}

	for _, overrides := range runtimeOverrides {
		for key, value := range flatten("", overrides) {
			v.Set(key, value)
		}
	}

	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
			mapstructure.StringToFloat64HookFunc(),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Transport = strings.ToLower(strings.TrimSpace(cfg.Transport))
	cfg.AzureDevOps.ServerURL = strings.TrimSpace(cfg.AzureDevOps.ServerURL)
	cfg.AzureDevOps.Collection = strings.TrimSpace(cfg.AzureDevOps.Collection)

	setConfig(cfg)
	return cfg, nil
}

// Validate reports settings that would prevent the server from starting.
// Backend credentials are checked separately by RequireBackend so that
// commands which never reach the backend can run without them.
func (c *Config) Validate() error {
	var problems []string
	switch c.Transport {
	case TransportStdio, TransportHTTP:
	default:
		problems = append(problems, fmt.Sprintf("transport must be %q or %q, got %q", TransportStdio, TransportHTTP, c.Transport))
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("server.port %d out of range", c.Server.Port))
	}
	if c.AzureDevOps.Timeout < 0 {
		problems = append(problems, "azure_devops.timeout must not be negative")
	}
	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
}

// RequireBackend reports whether the collection URL and token are present.
func (c *Config) RequireBackend() error {
	var missing []string
	if c.AzureDevOps.ServerURL == "" {
		missing = append(missing, "AZURE_DEVOPS_SERVER_URL")
	}
	if strings.TrimSpace(c.AzureDevOps.Token) == "" {
		missing = append(missing, "AZURE_DEVOPS_SERVER_TOKEN")
	}
	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s must be set", ErrInvalid, strings.Join(missing, " and "))
}

// GetConfig returns the current application configuration (thread-safe)
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

func setConfig(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = cfg
}

// DefaultConfigPath returns the XDG-compliant path to the user config file.
func DefaultConfigPath() string {
	configDir := gfconfig.GetAppConfigDir(AppName)
	if strings.TrimSpace(configDir) == "" {
		return ""
	}
	return filepath.Join(configDir, "config.yaml")
}

// SetDefaults registers the built-in defaults on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("transport", TransportStdio)

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "120s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("azure_devops.server_url", "")
	v.SetDefault("azure_devops.token", "")
	v.SetDefault("azure_devops.collection", "")
	v.SetDefault("azure_devops.api_version", "7.1-preview.3")
	v.SetDefault("azure_devops.timeout", "30s")
	v.SetDefault("azure_devops.breaker.enabled", true)
	v.SetDefault("azure_devops.breaker.consecutive_failures", 5)
	v.SetDefault("azure_devops.breaker.max_requests", 1)
	v.SetDefault("azure_devops.breaker.interval", "0s")
	v.SetDefault("azure_devops.breaker.timeout", "30s")

	v.SetDefault("guard.default.quota_per_minute", 60)
	v.SetDefault("guard.default.max_payload_mb", 1.0)
	v.SetDefault("guard.write_quota_per_minute", 20)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.profile", "STRUCTURED")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)

	v.SetDefault("health.enabled", true)

	v.SetDefault("debug.enabled", false)
	v.SetDefault("debug.pprof_enabled", false)
}

func readConfigFile(v *viper.Viper, path string) error {
	if strings.TrimSpace(path) != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config file %s: %w", path, err)
		}
		return nil
	}

	if dir := gfconfig.GetAppConfigDir(AppName); dir != "" {
		v.AddConfigPath(dir)
	}
	v.AddConfigPath("./config")
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}
	return nil
}

// envBindings lists the explicit environment variable names. Keys not listed
// here still resolve through ADOSMCP_<KEY_WITH_UNDERSCORES>.
func envBindings() []envBinding {
	p := EnvPrefix + "_"
	return []envBinding{
		{"transport", []string{p + "TRANSPORT"}},

		{"server.host", []string{p + "HOST"}},
		{"server.port", []string{p + "PORT"}},
		{"server.read_timeout", []string{p + "READ_TIMEOUT"}},
		{"server.write_timeout", []string{p + "WRITE_TIMEOUT"}},
		{"server.idle_timeout", []string{p + "IDLE_TIMEOUT"}},
		{"server.shutdown_timeout", []string{p + "SHUTDOWN_TIMEOUT"}},

		{"azure_devops.server_url", []string{p + "AZURE_DEVOPS_SERVER_URL", "AZURE_DEVOPS_SERVER_URL"}},
		{"azure_devops.token", []string{p + "AZURE_DEVOPS_TOKEN", "AZURE_DEVOPS_SERVER_TOKEN"}},
		{"azure_devops.collection", []string{p + "AZURE_DEVOPS_COLLECTION", "AZURE_DEVOPS_SERVER_COLLECTION"}},
		{"azure_devops.api_version", []string{p + "AZURE_DEVOPS_API_VERSION", "AZURE_DEVOPS_SERVER_API_VERSION"}},
		{"azure_devops.timeout", []string{p + "AZURE_DEVOPS_TIMEOUT"}},

		{"guard.default.quota_per_minute", []string{p + "GUARD_QUOTA_PER_MINUTE"}},
		{"guard.default.max_payload_mb", []string{p + "GUARD_MAX_PAYLOAD_MB"}},
		{"guard.write_quota_per_minute", []string{p + "GUARD_WRITE_QUOTA_PER_MINUTE"}},

		{"logging.level", []string{p + "LOG_LEVEL"}},
		{"logging.profile", []string{p + "LOG_PROFILE"}},

		{"metrics.enabled", []string{p + "METRICS_ENABLED"}},
		{"metrics.port", []string{p + "METRICS_PORT"}},
		{"health.enabled", []string{p + "HEALTH_ENABLED"}},
		{"debug.enabled", []string{p + "DEBUG_ENABLED"}},
		{"debug.pprof_enabled", []string{p + "DEBUG_PPROF_ENABLED"}},
	}
}

// EnvVarNames returns every explicitly bound environment variable, sorted.
func EnvVarNames() []string {
	var names []string
	for _, binding := range envBindings() {
		names = append(names, binding.Names...)
	}
	sort.Strings(names)
	return names
}

func flatten(prefix string, values map[string]any) map[string]any {
	out := make(map[string]any)
	for key, value := range values {
		full := strings.ToLower(key)
		if prefix != "" {
			full = prefix + "." + full
		}
		if nested, ok := value.(map[string]any); ok && len(nested) > 0 {
			for k, v := range flatten(full, nested) {
				out[k] = v
			}
			continue
		}
		out[full] = value
	}
	return out
}

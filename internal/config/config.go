package config

import (
	"time"

	"github.com/Ravio1i/azure-devops-server-mcp/internal/core/guard"
)

// Config represents the complete application configuration.
// Layer 1: built-in defaults (SetDefaults)
// Layer 2: YAML file ($XDG_CONFIG_HOME/adosmcp/config.yaml, ./config or --config)
// Layer 3: environment variables and runtime overrides
type Config struct {
	Transport   string            `mapstructure:"transport"`
	Server      ServerConfig      `mapstructure:"server"`
	AzureDevOps AzureDevOpsConfig `mapstructure:"azure_devops"`
	Guard       GuardConfig       `mapstructure:"guard"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Health      HealthConfig      `mapstructure:"health"`
	Debug       DebugConfig       `mapstructure:"debug"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// AzureDevOpsConfig locates the collection and tunes the REST transport.
type AzureDevOpsConfig struct {
	ServerURL  string        `mapstructure:"server_url"`
	Token      string        `mapstructure:"token"`
	Collection string        `mapstructure:"collection"`
	APIVersion string        `mapstructure:"api_version"`
	Timeout    time.Duration `mapstructure:"timeout"`
	Breaker    BreakerConfig `mapstructure:"breaker"`
}

// BreakerConfig configures the circuit breaker in front of the REST transport.
type BreakerConfig struct {
	Enabled             bool          `mapstructure:"enabled"`
	ConsecutiveFailures uint32        `mapstructure:"consecutive_failures"`
	MaxRequests         uint32        `mapstructure:"max_requests"`
	Interval            time.Duration `mapstructure:"interval"`
	Timeout             time.Duration `mapstructure:"timeout"`
}

// GuardConfig holds the rate and payload limits applied to every tool.
//
// Operations is keyed by tool name; zero fields inherit from Default and
// negative values disable the corresponding check.
type GuardConfig struct {
	Default             guard.Policy            `mapstructure:"default"`
	WriteQuotaPerMinute int                     `mapstructure:"write_quota_per_minute"`
	Operations          map[string]guard.Policy `mapstructure:"operations"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	// Level controls the minimum log level
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level"`

	// Profile selects the logging complexity level
	// Valid values: SIMPLE, STRUCTURED, ENTERPRISE
	Profile string `mapstructure:"profile"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// Port is the dedicated Prometheus exporter port
	Port int `mapstructure:"port"`
}

// HealthConfig contains health check configuration
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// DebugConfig contains debug and profiling configuration
type DebugConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// PprofEnabled controls whether pprof endpoints are exposed
	// WARNING: Only enable in development/staging environments
	PprofEnabled bool `mapstructure:"pprof_enabled"`
}

// Transports accepted by the serve command.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

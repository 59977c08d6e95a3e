package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/signals"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Ravio1i/azure-devops-server-mcp/internal/config"
	"github.com/Ravio1i/azure-devops-server-mcp/internal/core/guard"
	errwrap "github.com/Ravio1i/azure-devops-server-mcp/internal/errors"
	"github.com/Ravio1i/azure-devops-server-mcp/internal/metrics"
	"github.com/Ravio1i/azure-devops-server-mcp/internal/observability"
	"github.com/Ravio1i/azure-devops-server-mcp/internal/server"
	"github.com/Ravio1i/azure-devops-server-mcp/internal/server/handlers"
	"github.com/Ravio1i/azure-devops-server-mcp/internal/tools"
)

var (
	serveTransport string
	serveHost      string
	servePort      int
)

// telemetryHealthChecker ensures telemetry system and exporter are available
type telemetryHealthChecker struct{}

func (telemetryHealthChecker) CheckHealth(ctx context.Context) error {
	if observability.TelemetrySystem == nil || observability.PrometheusExporter == nil {
		return errwrap.NewInternalError("telemetry system not initialized")
	}
	return nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the Azure DevOps tools over MCP",
	Long: `Serve the Azure DevOps tools to an MCP client.

Transports:
  stdio (default)  JSON-RPC over stdin/stdout, for clients that spawn the server
  http             Streamable HTTP at /mcp plus health, metrics and /api endpoints

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: Graceful shutdown
  • Ctrl+C twice within 2s: Force quit (http)
  • SIGHUP: Re-read and validate configuration`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		cfg, err := loadConfig(ctx, serveOverrides(cmd))
		if err != nil {
			ExitWithCode(observability.CLILogger, foundry.ExitConfigInvalid, "Failed to load configuration",
				errwrap.WrapConfigInvalid(ctx, err, "config load failed"))
			return err
		}
		if err := cfg.Validate(); err != nil {
			ExitWithCode(observability.CLILogger, foundry.ExitConfigInvalid, "Invalid configuration",
				errwrap.WrapConfigInvalid(ctx, err, "config validation failed"))
			return err
		}

		observability.InitServerLogger(config.AppName, cfg.Logging.Level, "")
		logger := observability.ServerLogger

		client, err := newBackend(cfg)
		if err != nil {
			ExitWithCode(logger, foundry.ExitConfigInvalid, "Azure DevOps connection is not configured",
				errwrap.WrapConfigInvalid(ctx, err, "backend configuration invalid"))
			return err
		}

		if cfg.Metrics.Enabled {
			if err := observability.InitMetrics(config.AppName, cfg.Metrics.Port); err != nil {
				logger.Error("Failed to initialize metrics", zap.Error(err))
				return errwrap.WrapInternal(ctx, err, "metrics initialization failed")
			}
		}
		metrics.SetServerStartTime(time.Now().Unix())

		registry := newRegistry(cfg, client)
		mcp := tools.NewServer(versionInfo.Version, registry)

		logger.Info("Initializing server",
			zap.String("service", config.AppName),
			zap.String("version", versionInfo.Version),
			zap.String("transport", cfg.Transport),
			zap.String("collection_url", client.BaseURL.String()),
			zap.String("api_version", client.APIVersion),
			zap.Int("tools", len(registry.Tools())),
			zap.Int("quota_per_minute", cfg.Guard.Default.QuotaPerMinute),
			zap.Float64("max_payload_mb", cfg.Guard.Default.MaxPayloadMB))

		registerReload(cfg)

		if cfg.Transport == config.TransportHTTP {
			return serveHTTP(ctx, cfg, client, registry, mcp)
		}
		return serveStdio(ctx, mcp)
	},
}

// serveOverrides turns explicitly set flags into runtime config overrides.
func serveOverrides(cmd *cobra.Command) map[string]any {
	overrides := map[string]any{}
	serverOverrides := map[string]any{}
	if cmd.Flags().Changed("transport") {
		overrides["transport"] = serveTransport
	}
	if cmd.Flags().Changed("host") {
		serverOverrides["host"] = serveHost
	}
	if cmd.Flags().Changed("port") {
		serverOverrides["port"] = servePort
	}
	if len(serverOverrides) > 0 {
		overrides["server"] = serverOverrides
	}
	return overrides
}

func serveStdio(ctx context.Context, mcp *mcpserver.MCPServer) error {
	logger := observability.ServerLogger

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	signals.OnShutdown(func(context.Context) error {
		logger.Info("Stopping stdio transport...")
		cancel()
		return nil
	})

	errChan := make(chan error, 2)
	go func() {
		if err := signals.Listen(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errChan <- err
		}
	}()
	go func() {
		logger.Info("Serving MCP over stdio")
		errChan <- mcpserver.NewStdioServer(mcp).Listen(ctx, os.Stdin, os.Stdout)
	}()

	err := <-errChan
	_ = logger.Sync()
	if err != nil && !errors.Is(err, context.Canceled) {
		return errwrap.WrapInternal(ctx, err, "stdio transport error")
	}
	return nil
}

func serveHTTP(ctx context.Context, cfg *config.Config, client handlers.HealthChecker, registry *tools.Registry, mcp *mcpserver.MCPServer) error {
	logger := observability.ServerLogger

	handlers.SetVersionInfo(versionInfo.Version, versionInfo.Commit, versionInfo.BuildDate)
	hm := handlers.InitHealthManager(versionInfo.Version)
	hm.RegisterChecker("azure_devops", client)
	if cfg.Metrics.Enabled {
		hm.RegisterChecker("telemetry", telemetryHealthChecker{})
	}

	srv := server.New(server.Options{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     cfg.Server.IdleTimeout,
		MCP:             mcpserver.NewStreamableHTTPServer(mcp),
		Tools:           registry,
		Limiter:         guard.Shared(),
		MaxRequestBytes: server.RequestCapFor(registry.Describe()),
		AdminToken:      os.Getenv(server.AdminTokenEnv),
	})

	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout == 0 {
		shutdownTimeout = 10 * time.Second
	}

	// LIFO: the server stops before the logger is flushed.
	signals.OnShutdown(func(ctx context.Context) error {
		logger.Info("Flushing logger...")
		if err := logger.Sync(); err != nil {
			logger.Warn("Logger sync returned error (may be benign)", zap.Error(err))
		}
		return nil
	})
	signals.OnShutdown(func(ctx context.Context) error {
		logger.Info("Shutting down HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return errwrap.WrapInternal(ctx, err, "server shutdown failed")
		}
		logger.Info("HTTP server stopped gracefully")
		return nil
	})

	if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
		Window:  2 * time.Second,
		Message: "Press Ctrl+C again within 2 seconds to force quit",
	}); err != nil {
		logger.Warn("Failed to enable double-tap force quit", zap.Error(err))
	}

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()
	go func() {
		if err := signals.Listen(ctx); err != nil {
			logger.Error("Signal handler error", zap.Error(err))
			errChan <- err
		}
	}()

	if err := <-errChan; err != nil {
		return errwrap.WrapInternal(ctx, err, "server error")
	}
	return nil
}

// registerReload re-reads configuration on SIGHUP. Guard policies are bound
// when tools are registered, so a changed policy is reported and applies on
// the next start.
func registerReload(current *config.Config) {
	logger := observability.ServerLogger

	signals.OnReload(func(ctx context.Context) error {
		logger.Info("Received SIGHUP: attempting config reload")

		next, err := config.LoadFile(ctx, cfgFile)
		if err == nil {
			err = next.Validate()
		}
		if err != nil {
			logger.Error("Failed to reload configuration", zap.Error(err))
			return errwrap.WrapConfigInvalid(ctx, err, "config reload failed")
		}

		if next.Guard.Default != current.Guard.Default ||
			next.Guard.WriteQuotaPerMinute != current.Guard.WriteQuotaPerMinute ||
			len(next.Guard.Operations) != len(current.Guard.Operations) {
			logger.Warn("Guard limits changed; restart to apply",
				zap.Int("quota_per_minute", next.Guard.Default.QuotaPerMinute),
				zap.Float64("max_payload_mb", next.Guard.Default.MaxPayloadMB),
				zap.Int("write_quota_per_minute", next.Guard.WriteQuotaPerMinute))
		}

		logger.Info("Configuration reloaded successfully", zap.String("file", cfgFile))
		return nil
	})
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&serveTransport, "transport", "t", config.TransportStdio, "transport: stdio|http")
	serveCmd.Flags().StringVar(&serveHost, "host", "localhost", "HTTP server host (http transport)")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8080, "HTTP server port (http transport)")
}

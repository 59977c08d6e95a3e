package cmd

import (
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	errwrap "github.com/Ravio1i/azure-devops-server-mcp/internal/errors"
	"github.com/Ravio1i/azure-devops-server-mcp/internal/observability"
)

var healthCheckBackend bool

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Run self-health check",
	Long: `Verify that configuration loads and validates, that the Azure DevOps
connection settings are present and, with --backend, that the collection
answers a project listing.`,
	Run: func(cmd *cobra.Command, args []string) {
		logger := observability.CLILogger
		ctx := cmd.Context()

		cfg, err := loadConfig(ctx)
		if err != nil {
			ExitWithCode(logger, foundry.ExitConfigInvalid, "Configuration failed to load", errwrap.WrapConfigInvalid(ctx, err, "config load failed"))
			return
		}
		if err := cfg.Validate(); err != nil {
			ExitWithCode(logger, foundry.ExitConfigInvalid, "Configuration is invalid", errwrap.WrapConfigInvalid(ctx, err, "config validation failed"))
			return
		}
		logger.Info("✅ Configuration valid", zap.String("transport", cfg.Transport))

		client, err := newBackend(cfg)
		if err != nil {
			ExitWithCode(logger, foundry.ExitConfigInvalid, "Azure DevOps connection is not configured", errwrap.WrapConfigInvalid(ctx, err, "backend configuration invalid"))
			return
		}
		logger.Info("✅ Azure DevOps connection configured",
			zap.String("collection_url", client.BaseURL.String()),
			zap.String("api_version", client.APIVersion))

		if healthCheckBackend {
			projects, err := client.ListTeamProjects(ctx)
			if err != nil {
				ExitWithCode(logger, foundry.ExitExternalServiceUnavailable, "Azure DevOps collection unreachable", errwrap.WrapExternalService(ctx, err, "list team projects failed"))
				return
			}
			logger.Info("✅ Azure DevOps collection reachable", zap.Int("projects", len(projects)))
		}

		logger.Info("✅ All health checks passed")
	},
}

func init() {
	healthCmd.Flags().BoolVar(&healthCheckBackend, "backend", false, "Also call the Azure DevOps collection")
	rootCmd.AddCommand(healthCmd)
}

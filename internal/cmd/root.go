package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Ravio1i/azure-devops-server-mcp/internal/config"
	"github.com/Ravio1i/azure-devops-server-mcp/internal/observability"
)

var (
	cfgFile string
	verbose bool

	// Version info set by main package
	versionInfo = struct {
		Version   string
		Commit    string
		BuildDate string
	}{Version: "dev", Commit: "unknown", BuildDate: "unknown"}
)

// SetVersionInfo is called by main package to set version information
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   config.AppName,
	Short: "MCP server for Azure DevOps Server",
	Long: `adosmcp exposes an on-premises Azure DevOps Server (TFS) collection to MCP
clients. Every tool call is rate limited per tool, payload checked and has its
errors normalized before it reaches the client.

Connection settings come from AZURE_DEVOPS_SERVER_URL, AZURE_DEVOPS_SERVER_TOKEN
and AZURE_DEVOPS_SERVER_COLLECTION or from the config file.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Telemetry stays off until serve initializes the exporter.
	observability.DisableTelemetry()

	cobra.OnInitialize(initLogging)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		fmt.Sprintf("config file (default is %s)", config.DefaultConfigPath()))
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (sets log level to debug)")
}

func initLogging() {
	observability.InitCLILogger(config.AppName, verbose)
}

// loadConfig reads configuration from --config (or the default locations),
// the environment and the given flag overrides.
func loadConfig(ctx context.Context, overrides ...map[string]any) (*config.Config, error) {
	cfg, err := config.LoadFile(ctx, cfgFile, overrides...)
	if err != nil {
		return nil, err
	}
	if observability.CLILogger != nil {
		observability.CLILogger.Debug("Configuration loaded",
			zap.String("transport", cfg.Transport),
			zap.String("server_url", cfg.AzureDevOps.ServerURL),
			zap.String("collection", cfg.AzureDevOps.Collection))
	}
	return cfg, nil
}

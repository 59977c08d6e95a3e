package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Ravio1i/azure-devops-server-mcp/internal/core/guard"
	"github.com/Ravio1i/azure-devops-server-mcp/internal/output"
	"github.com/Ravio1i/azure-devops-server-mcp/internal/tools"
)

var (
	toolsGroup    string
	toolsCallArgs string
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Inspect and call the MCP tools",
}

var toolsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tools with their effective rate and payload limits",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd.Context())
		if err != nil {
			return err
		}

		infos := newRegistry(cfg, nil).Describe()
		if group := strings.TrimSpace(toolsGroup); group != "" {
			filtered := infos[:0]
			for _, info := range infos {
				if strings.EqualFold(info.Group, group) || strings.EqualFold(strings.TrimPrefix(info.Group, guard.DefaultGroupPrefix), group) {
					filtered = append(filtered, info)
				}
			}
			infos = filtered
		}
		return render(cmd, output.ToolsView(infos))
	},
}

var toolsCallCmd = &cobra.Command{
	Use:   "call <tool>",
	Short: "Call one tool through the guard and print its JSON result",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		callArgs := guard.Args{}
		if raw := strings.TrimSpace(toolsCallArgs); raw != "" {
			if err := json.Unmarshal([]byte(raw), &callArgs); err != nil {
				return fmt.Errorf("--args must be a JSON object: %w", err)
			}
		}

		cfg, err := loadConfig(cmd.Context())
		if err != nil {
			return err
		}
		client, err := newBackend(cfg)
		if err != nil {
			return err
		}

		result, err := newRegistry(cfg, client).Call(cmd.Context(), args[0], callArgs)
		if err != nil {
			if errors.Is(err, tools.ErrUnknownTool) {
				return fmt.Errorf("%w: %s (see '%s tools list')", err, args[0], rootCmd.Name())
			}
			return err
		}

		payload, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(payload))
		return err
	},
}

func init() {
	toolsListCmd.Flags().StringVar(&toolsGroup, "group", "", "Only tools of this group (TeamProjects, WorkItems, GitRepositories, PullRequests, TestPlans)")
	addOutputFlags(toolsListCmd)

	toolsCallCmd.Flags().StringVar(&toolsCallArgs, "args", "", `Tool arguments as a JSON object, e.g. '{"project":"Fabrikam"}'`)

	toolsCmd.AddCommand(toolsListCmd, toolsCallCmd)
	rootCmd.AddCommand(toolsCmd)
}

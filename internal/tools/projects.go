package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/Ravio1i/azure-devops-server-mcp/internal/core/ado"
	"github.com/Ravio1i/azure-devops-server-mcp/internal/core/guard"
)

func projectTools(b Backend) []Tool {
	return []Tool{
		newTool(ado.GroupTeamProjects, "list_team_projects", false,
			func(ctx context.Context, _ guard.Args) (any, error) {
				return b.ListTeamProjects(ctx)
			},
			mcp.WithDescription("List all team projects in the Azure DevOps Server/TFS collection"),
		),
		newTool(ado.GroupTeamProjects, "get_team_project", false,
			func(ctx context.Context, args guard.Args) (any, error) {
				return b.GetTeamProject(ctx, stringArg(args, "project_id_or_name", ""))
			},
			mcp.WithDescription("Get details of a specific team project"),
			mcp.WithString("project_id_or_name", mcp.Required(), mcp.Description("The ID or name of the project to retrieve")),
		),
		newTool(ado.GroupTeamProjects, "list_teams", false,
			func(ctx context.Context, args guard.Args) (any, error) {
				return b.ListTeams(ctx, stringArg(args, "project_id_or_name", ""))
			},
			mcp.WithDescription("List all teams in a specific project"),
			mcp.WithString("project_id_or_name", mcp.Required(), mcp.Description("The ID or name of the project")),
		),
	}
}

package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/Ravio1i/azure-devops-server-mcp/internal/core/ado"
	"github.com/Ravio1i/azure-devops-server-mcp/internal/core/guard"
)

func gitTools(b Backend) []Tool {
	project := mcp.WithString("project", mcp.Required(), mcp.Description("The name of the Azure DevOps project"))
	repo := mcp.WithString("repository_id", mcp.Required(), mcp.Description("The ID or name of the repository"))
	branch := mcp.WithString("branch", mcp.DefaultString(ado.DefaultBranch), mcp.Description("Branch name (default: main)"))

	return []Tool{
		newTool(ado.GroupGitRepositories, "list_repositories", false,
			func(ctx context.Context, args guard.Args) (any, error) {
				return b.ListRepositories(ctx, stringArg(args, "project", ""))
			},
			mcp.WithDescription("List all Git repositories in a project"),
			project,
		),
		newTool(ado.GroupGitRepositories, "get_repository", false,
			func(ctx context.Context, args guard.Args) (any, error) {
				return b.GetRepository(ctx, stringArg(args, "project", ""), stringArg(args, "repository_id", ""))
			},
			mcp.WithDescription("Get details of a specific repository"),
			project, repo,
		),
		newTool(ado.GroupGitRepositories, "list_branches", false,
			func(ctx context.Context, args guard.Args) (any, error) {
				limit, err := intArg(args, "limit", guard.DefaultListLimit)
				if err != nil {
					return nil, err
				}
				return b.ListBranches(ctx,
					stringArg(args, "project", ""),
					stringArg(args, "repository_id", ""),
					guard.ListLimit(limit))
			},
			mcp.WithDescription("List branches in a repository"),
			project, repo,
			mcp.WithNumber("limit", mcp.DefaultNumber(guard.DefaultListLimit), mcp.Description("Maximum number of branches to return (default: 50, max: 200)")),
		),
		newTool(ado.GroupGitRepositories, "get_commits", false,
			func(ctx context.Context, args guard.Args) (any, error) {
				limit, err := intArg(args, "limit", guard.DefaultListLimit)
				if err != nil {
					return nil, err
				}
				return b.GetCommits(ctx,
					stringArg(args, "project", ""),
					stringArg(args, "repository_id", ""),
					stringArg(args, "branch", ado.DefaultBranch),
					guard.ListLimit(limit))
			},
			mcp.WithDescription("Get commit history for a branch"),
			project, repo, branch,
			mcp.WithNumber("limit", mcp.DefaultNumber(guard.DefaultListLimit), mcp.Description("Maximum number of commits to return (default: 50, max: 200)")),
		),
		newTool(ado.GroupGitRepositories, "get_file_content", false,
			func(ctx context.Context, args guard.Args) (any, error) {
				return b.GetFileContent(ctx,
					stringArg(args, "project", ""),
					stringArg(args, "repository_id", ""),
					stringArg(args, "path", ""),
					stringArg(args, "branch", ado.DefaultBranch))
			},
			mcp.WithDescription("Get content of a file from a repository"),
			project, repo,
			mcp.WithString("path", mcp.Required(), mcp.Description("Path of the file, e.g. /src/main.go")),
			branch,
		),
		newTool(ado.GroupGitRepositories, "list_items", false,
			func(ctx context.Context, args guard.Args) (any, error) {
				limit, err := intArg(args, "limit", guard.DefaultItemsLimit)
				if err != nil {
					return nil, err
				}
				return b.ListItems(ctx,
					stringArg(args, "project", ""),
					stringArg(args, "repository_id", ""),
					stringArg(args, "path", "/"),
					stringArg(args, "branch", ado.DefaultBranch),
					guard.ItemsLimit(limit))
			},
			mcp.WithDescription("List files and folders in a repository path"),
			project, repo,
			mcp.WithString("path", mcp.DefaultString("/"), mcp.Description("Folder path to list (default: /)")),
			branch,
			mcp.WithNumber("limit", mcp.DefaultNumber(guard.DefaultItemsLimit), mcp.Description("Maximum number of items to return (default: 100, max: 500)")),
		),
	}
}

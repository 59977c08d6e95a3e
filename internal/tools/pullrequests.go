package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/Ravio1i/azure-devops-server-mcp/internal/core/ado"
	"github.com/Ravio1i/azure-devops-server-mcp/internal/core/guard"
)

func pullRequestTools(b Backend) []Tool {
	project := mcp.WithString("project", mcp.Required(), mcp.Description("The name of the Azure DevOps project"))
	repo := mcp.WithString("repository_id", mcp.Required(), mcp.Description("The ID or name of the repository"))
	prID := mcp.WithNumber("pull_request_id", mcp.Required(), mcp.Description("The ID of the pull request"))

	return []Tool{
		newTool(ado.GroupPullRequests, "list_pull_requests", false,
			func(ctx context.Context, args guard.Args) (any, error) {
				limit, err := intArg(args, "limit", guard.DefaultListLimit)
				if err != nil {
					return nil, err
				}
				return b.ListPullRequests(ctx,
					stringArg(args, "project", ""),
					stringArg(args, "repository_id", ""),
					stringArg(args, "status", ado.PRStatusActive),
					guard.ListLimit(limit))
			},
			mcp.WithDescription("List pull requests in a repository"),
			project, repo,
			mcp.WithString("status",
				mcp.DefaultString(ado.PRStatusActive),
				mcp.Enum(ado.PRStatusActive, ado.PRStatusCompleted, ado.PRStatusAbandoned, ado.PRStatusAll),
				mcp.Description("Pull request status filter (default: active)")),
			mcp.WithNumber("limit", mcp.DefaultNumber(guard.DefaultListLimit), mcp.Description("Maximum number of pull requests to return (default: 50, max: 200)")),
		),
		newTool(ado.GroupPullRequests, "get_pull_request", false,
			func(ctx context.Context, args guard.Args) (any, error) {
				id, err := intArg(args, "pull_request_id", 0)
				if err != nil {
					return nil, err
				}
				return b.GetPullRequest(ctx, stringArg(args, "project", ""), stringArg(args, "repository_id", ""), id)
			},
			mcp.WithDescription("Get details of a specific pull request including reviewers and linked work items"),
			project, repo, prID,
		),
		newTool(ado.GroupPullRequests, "create_pull_request", true,
			func(ctx context.Context, args guard.Args) (any, error) {
				return b.CreatePullRequest(ctx,
					stringArg(args, "project", ""),
					stringArg(args, "repository_id", ""),
					ado.NewPullRequest{
						Title:        stringArg(args, "title", ""),
						Description:  stringArg(args, "description", ""),
						SourceBranch: stringArg(args, "source_branch", ""),
						TargetBranch: stringArg(args, "target_branch", ""),
						Reviewers:    stringsArg(args, "reviewers"),
					})
			},
			mcp.WithDescription("Create a new pull request"),
			project, repo,
			mcp.WithString("title", mcp.Required(), mcp.Description("Title of the pull request")),
			mcp.WithString("description", mcp.Description("Description of the pull request")),
			mcp.WithString("source_branch", mcp.Required(), mcp.Description("Source branch name, e.g. feature/login")),
			mcp.WithString("target_branch", mcp.Required(), mcp.Description("Target branch name, e.g. main")),
			mcp.WithArray("reviewers",
				mcp.Items(map[string]any{"type": "string"}),
				mcp.Description("Optional reviewer IDs")),
		),
		newTool(ado.GroupPullRequests, "get_pull_request_comments", false,
			func(ctx context.Context, args guard.Args) (any, error) {
				id, err := intArg(args, "pull_request_id", 0)
				if err != nil {
					return nil, err
				}
				limit, err := intArg(args, "limit", guard.DefaultListLimit)
				if err != nil {
					return nil, err
				}
				return b.GetPullRequestComments(ctx,
					stringArg(args, "project", ""),
					stringArg(args, "repository_id", ""),
					id, guard.ListLimit(limit))
			},
			mcp.WithDescription("Get comment threads for a pull request"),
			project, repo, prID,
			mcp.WithNumber("limit", mcp.DefaultNumber(guard.DefaultListLimit), mcp.Description("Maximum number of threads to return (default: 50, max: 200)")),
		),
		newTool(ado.GroupPullRequests, "update_pull_request", true,
			func(ctx context.Context, args guard.Args) (any, error) {
				id, err := intArg(args, "pull_request_id", 0)
				if err != nil {
					return nil, err
				}
				return b.UpdatePullRequest(ctx,
					stringArg(args, "project", ""),
					stringArg(args, "repository_id", ""),
					id,
					ado.PullRequestUpdate{
						Title:       stringArg(args, "title", ""),
						Description: stringArg(args, "description", ""),
						Status:      stringArg(args, "status", ""),
					})
			},
			mcp.WithDescription("Update the title, description or status of a pull request"),
			project, repo, prID,
			mcp.WithString("title", mcp.Description("New title")),
			mcp.WithString("description", mcp.Description("New description")),
			mcp.WithString("status", mcp.Description("New status: active, completed or abandoned")),
		),
	}
}

package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/Ravio1i/azure-devops-server-mcp/internal/core/ado"
	"github.com/Ravio1i/azure-devops-server-mcp/internal/core/guard"
)

func workItemFields(args guard.Args) ado.WorkItemFields {
	return ado.WorkItemFields{
		Title:       stringArg(args, "title", ""),
		Description: stringArg(args, "description", ""),
		AssignedTo:  stringArg(args, "assigned_to", ""),
		State:       stringArg(args, "state", ""),
		Priority:    stringArg(args, "priority", ""),
	}
}

func workItemTools(b Backend) []Tool {
	limitOpt := mcp.WithNumber("limit",
		mcp.DefaultNumber(guard.DefaultListLimit),
		mcp.Description("Maximum number of work items to return (default: 50, max: 200)"))

	return []Tool{
		newTool(ado.GroupWorkItems, "list_work_items", false,
			func(ctx context.Context, args guard.Args) (any, error) {
				limit, err := intArg(args, "limit", guard.DefaultListLimit)
				if err != nil {
					return nil, err
				}
				return b.ListWorkItems(ctx,
					stringArg(args, "project", ""),
					stringArg(args, "query", ""),
					guard.ListLimit(limit))
			},
			mcp.WithDescription("List work items from an Azure DevOps project"),
			mcp.WithString("project", mcp.Required(), mcp.Description("The name of the Azure DevOps project")),
			mcp.WithString("query", mcp.Description("Optional WIQL query string. If not provided, lists the work items of the project")),
			limitOpt,
		),
		newTool(ado.GroupWorkItems, "get_work_item", false,
			func(ctx context.Context, args guard.Args) (any, error) {
				id, err := intArg(args, "work_item_id", 0)
				if err != nil {
					return nil, err
				}
				return b.GetWorkItem(ctx, id)
			},
			mcp.WithDescription("Get a specific work item by its ID"),
			mcp.WithNumber("work_item_id", mcp.Required(), mcp.Description("The ID of the work item to retrieve")),
		),
		newTool(ado.GroupWorkItems, "create_work_item", true,
			func(ctx context.Context, args guard.Args) (any, error) {
				return b.CreateWorkItem(ctx,
					stringArg(args, "project", ""),
					stringArg(args, "work_item_type", ""),
					workItemFields(args))
			},
			mcp.WithDescription("Create a new work item in Azure DevOps"),
			mcp.WithString("project", mcp.Required(), mcp.Description("The name of the Azure DevOps project")),
			mcp.WithString("work_item_type", mcp.Required(), mcp.Description("Type of work item (e.g., 'Bug', 'Task', 'User Story')")),
			mcp.WithString("title", mcp.Required(), mcp.Description("The title of the work item")),
			mcp.WithString("description", mcp.Description("Optional description")),
			mcp.WithString("assigned_to", mcp.Description("Optional assignee email/username")),
			mcp.WithString("state", mcp.Description("Optional initial state")),
			mcp.WithString("priority", mcp.Description("Optional priority level")),
		),
		newTool(ado.GroupWorkItems, "update_work_item", true,
			func(ctx context.Context, args guard.Args) (any, error) {
				id, err := intArg(args, "work_item_id", 0)
				if err != nil {
					return nil, err
				}
				return b.UpdateWorkItem(ctx, id, workItemFields(args))
			},
			mcp.WithDescription("Update an existing work item"),
			mcp.WithNumber("work_item_id", mcp.Required(), mcp.Description("The ID of the work item to update")),
			mcp.WithString("title", mcp.Description("New title")),
			mcp.WithString("description", mcp.Description("New description")),
			mcp.WithString("assigned_to", mcp.Description("New assignee email/username")),
			mcp.WithString("state", mcp.Description("New state")),
			mcp.WithString("priority", mcp.Description("New priority level")),
		),
		newTool(ado.GroupWorkItems, "query_work_items", false,
			func(ctx context.Context, args guard.Args) (any, error) {
				limit, err := intArg(args, "limit", guard.DefaultListLimit)
				if err != nil {
					return nil, err
				}
				return b.QueryWorkItems(ctx, ado.WorkItemQuery{
					Project:      stringArg(args, "project", ""),
					WorkItemType: stringArg(args, "work_item_type", ""),
					State:        stringArg(args, "state", ""),
					AssignedTo:   stringArg(args, "assigned_to", ""),
					Limit:        guard.ListLimit(limit),
				})
			},
			mcp.WithDescription("Query work items with filters, most recently changed first"),
			mcp.WithString("project", mcp.Required(), mcp.Description("The name of the Azure DevOps project")),
			mcp.WithString("work_item_type", mcp.Description("Filter by work item type")),
			mcp.WithString("state", mcp.Description("Filter by state")),
			mcp.WithString("assigned_to", mcp.Description("Filter by assignee")),
			limitOpt,
		),
	}
}

package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/Ravio1i/azure-devops-server-mcp/internal/core/ado"
	"github.com/Ravio1i/azure-devops-server-mcp/internal/core/guard"
)

func testPlanTools(b Backend) []Tool {
	project := mcp.WithString("project", mcp.Required(), mcp.Description("The name of the Azure DevOps project"))
	planID := mcp.WithNumber("plan_id", mcp.Required(), mcp.Description("The ID of the test plan"))

	return []Tool{
		newTool(ado.GroupTestPlans, "list_test_plans", false,
			func(ctx context.Context, args guard.Args) (any, error) {
				lastDays, err := intArg(args, "last_days", 0)
				if err != nil {
					return nil, err
				}
				active, err := boolArg(args, "active")
				if err != nil {
					return nil, err
				}
				latest, err := boolArg(args, "latest")
				if err != nil {
					return nil, err
				}
				return b.ListTestPlans(ctx, stringArg(args, "project", ""), ado.PlanFilter{
					Active:   active,
					LastDays: lastDays,
					Latest:   latest,
				})
			},
			mcp.WithDescription("List test plans of a project, optionally only active, recently updated, or the latest one"),
			project,
			mcp.WithBoolean("active", mcp.Description("Only plans in state Active")),
			mcp.WithNumber("last_days", mcp.Description("Only plans updated within the last N days")),
			mcp.WithBoolean("latest", mcp.Description("Only the most recently updated plan")),
		),
		newTool(ado.GroupTestPlans, "list_test_suites", false,
			func(ctx context.Context, args guard.Args) (any, error) {
				id, err := intArg(args, "plan_id", 0)
				if err != nil {
					return nil, err
				}
				return b.ListTestSuites(ctx, stringArg(args, "project", ""), id)
			},
			mcp.WithDescription("List the test suites of a test plan"),
			project, planID,
		),
		newTool(ado.GroupTestPlans, "list_test_points", false,
			func(ctx context.Context, args guard.Args) (any, error) {
				plan, err := intArg(args, "plan_id", 0)
				if err != nil {
					return nil, err
				}
				suite, err := intArg(args, "suite_id", 0)
				if err != nil {
					return nil, err
				}
				return b.ListTestPoints(ctx, stringArg(args, "project", ""), plan, suite)
			},
			mcp.WithDescription("List the test points of a test suite"),
			project, planID,
			mcp.WithNumber("suite_id", mcp.Required(), mcp.Description("The ID of the test suite")),
		),
		newTool(ado.GroupTestPlans, "get_test_points_by_outcome", false,
			func(ctx context.Context, args guard.Args) (any, error) {
				plan, err := intArg(args, "plan_id", 0)
				if err != nil {
					return nil, err
				}
				return b.GetTestPointsByOutcome(ctx, ado.OutcomeQuery{
					Project:  stringArg(args, "project", ""),
					PlanID:   plan,
					PlanName: stringArg(args, "plan_name", ""),
					Outcome:  stringArg(args, "outcome", ""),
				})
			},
			mcp.WithDescription("Walk every suite of a test plan and return the test points with a given outcome, grouped by suite"),
			project,
			mcp.WithNumber("plan_id", mcp.Description("The ID of the test plan; either plan_id or plan_name is required")),
			mcp.WithString("plan_name", mcp.Description("The name of the test plan, matched case-insensitively")),
			mcp.WithString("outcome",
				mcp.Enum(ado.OutcomeFailed, ado.OutcomePassed, ado.OutcomeUnspecified),
				mcp.Description("Outcome filter; when omitted Failed, Passed and Unspecified points are returned")),
		),
	}
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Ravio1i/azure-devops-server-mcp/internal/core/ado"
	"github.com/Ravio1i/azure-devops-server-mcp/internal/core/guard"
	"github.com/Ravio1i/azure-devops-server-mcp/internal/output"
)

var (
	testPlansProject  string
	testPlansActive   bool
	testPlansLatest   bool
	testPlansLastDays int
	testPlansPlanID   int
	testPlansPlanName string
	testPlansSuiteID  int
	testPlansOutcome  string
)

var testPlansCmd = &cobra.Command{
	Use:     "testplans",
	Aliases: []string{"tp"},
	Short:   "Query test plans, suites and points",
}

var testPlansListCmd = &cobra.Command{
	Use:   "list",
	Short: "List test plans of a project",
	RunE: func(cmd *cobra.Command, args []string) error {
		callArgs := guard.Args{
			"project": testPlansProject,
			"active":  testPlansActive,
			"latest":  testPlansLatest,
		}
		if testPlansLastDays > 0 {
			callArgs["last_days"] = testPlansLastDays
		}

		plans, err := callTool[[]ado.TestPlan](cmd, "list_test_plans", callArgs)
		if err != nil {
			return err
		}
		return render(cmd, output.TestPlansView(plans))
	},
}

var testPlansPointsCmd = &cobra.Command{
	Use:   "points",
	Short: "List the test points of a suite",
	RunE: func(cmd *cobra.Command, args []string) error {
		points, err := callTool[[]ado.TestPoint](cmd, "list_test_points", guard.Args{
			"project":  testPlansProject,
			"plan_id":  testPlansPlanID,
			"suite_id": testPlansSuiteID,
		})
		if err != nil {
			return err
		}
		return render(cmd, output.TestPointsView(points))
	},
}

var testPlansOutcomesCmd = &cobra.Command{
	Use:   "outcomes",
	Short: "List the test points of a plan with a given outcome, grouped by suite",
	RunE: func(cmd *cobra.Command, args []string) error {
		if testPlansPlanID == 0 && testPlansPlanName == "" {
			return fmt.Errorf("--plan-id or --plan-name is required")
		}
		callArgs := guard.Args{"project": testPlansProject}
		if testPlansPlanID != 0 {
			callArgs["plan_id"] = testPlansPlanID
		}
		if testPlansPlanName != "" {
			callArgs["plan_name"] = testPlansPlanName
		}
		if testPlansOutcome != "" {
			callArgs["outcome"] = testPlansOutcome
		}

		report, err := callTool[*ado.OutcomeReport](cmd, "get_test_points_by_outcome", callArgs)
		if err != nil {
			return err
		}
		return render(cmd, output.OutcomeView(report))
	},
}

// callTool runs one guarded tool against the configured backend and asserts
// its result type.
func callTool[T any](cmd *cobra.Command, name string, args guard.Args) (T, error) {
	var zero T

	cfg, err := loadConfig(cmd.Context())
	if err != nil {
		return zero, err
	}
	client, err := newBackend(cfg)
	if err != nil {
		return zero, err
	}

	result, err := newRegistry(cfg, client).Call(cmd.Context(), name, args)
	if err != nil {
		return zero, err
	}
	typed, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("%s returned %T", name, result)
	}
	return typed, nil
}

func init() {
	for _, c := range []*cobra.Command{testPlansListCmd, testPlansPointsCmd, testPlansOutcomesCmd} {
		c.Flags().StringVar(&testPlansProject, "project", "", "Azure DevOps project name")
		_ = c.MarkFlagRequired("project")
		addOutputFlags(c)
	}

	testPlansListCmd.Flags().BoolVar(&testPlansActive, "active", false, "Only active plans")
	testPlansListCmd.Flags().BoolVar(&testPlansLatest, "latest", false, "Only the most recently updated plan")
	testPlansListCmd.Flags().IntVar(&testPlansLastDays, "last-days", 0, "Only plans updated within the last N days")

	testPlansPointsCmd.Flags().IntVar(&testPlansPlanID, "plan-id", 0, "Test plan ID")
	testPlansPointsCmd.Flags().IntVar(&testPlansSuiteID, "suite-id", 0, "Test suite ID")
	_ = testPlansPointsCmd.MarkFlagRequired("plan-id")
	_ = testPlansPointsCmd.MarkFlagRequired("suite-id")

	testPlansOutcomesCmd.Flags().IntVar(&testPlansPlanID, "plan-id", 0, "Test plan ID")
	testPlansOutcomesCmd.Flags().StringVar(&testPlansPlanName, "plan-name", "", "Test plan name, matched case-insensitively")
	testPlansOutcomesCmd.Flags().StringVar(&testPlansOutcome, "outcome", "", fmt.Sprintf("Outcome filter: %s|%s|%s", ado.OutcomeFailed, ado.OutcomePassed, ado.OutcomeUnspecified))

	testPlansCmd.AddCommand(testPlansListCmd, testPlansPointsCmd, testPlansOutcomesCmd)
	rootCmd.AddCommand(testPlansCmd)
}

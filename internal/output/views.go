package output

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Ravio1i/azure-devops-server-mcp/internal/core/ado"
	"github.com/Ravio1i/azure-devops-server-mcp/internal/server"
	"github.com/Ravio1i/azure-devops-server-mcp/internal/tools"
)

// ToolsView lists registered tools with their effective guard policy.
func ToolsView(infos []tools.Info) View {
	view := View{
		Title:  "Tools",
		Data:   infos,
		Header: []string{"Name", "Group", "Write", "Quota/min", "Max payload MB", "Arguments"},
		Empty:  "(no tools registered)",
	}
	writes := 0
	for _, info := range infos {
		if info.Write {
			writes++
		}
		view.Rows = append(view.Rows, []string{
			info.Name,
			info.Group,
			yesNo(info.Write),
			quotaLabel(info.Policy.QuotaPerMinute),
			payloadLabel(info.Policy.MaxPayloadMB),
			strings.Join(info.Arguments, ", "),
		})
	}
	view.Footer = fmt.Sprintf("%d tools, %d write", len(infos), writes)
	return view
}

// RateLimitsView shows the sliding window state of each operation.
func RateLimitsView(report server.RateLimitReport) View {
	view := View{
		Title:  fmt.Sprintf("Rate limits (%ds window)", report.WindowSeconds),
		Data:   report,
		Header: []string{"Operation", "Calls", "Quota/min", "Remaining", "Resets at"},
		Empty:  "(no rate limit state)",
	}
	for _, entry := range report.Operations {
		remaining := "unlimited"
		if entry.Remaining >= 0 {
			remaining = strconv.Itoa(entry.Remaining)
		}
		reset := "-"
		if entry.ResetAt != nil {
			reset = entry.ResetAt.UTC().Format(time.RFC3339)
		}
		view.Rows = append(view.Rows, []string{
			entry.Operation,
			strconv.Itoa(entry.Count),
			quotaLabel(entry.Quota),
			remaining,
			reset,
		})
	}
	return view
}

// ProjectsView lists team projects.
func ProjectsView(projects []ado.Project) View {
	view := View{
		Title:  "Team projects",
		Data:   projects,
		Header: []string{"Name", "State", "Visibility", "ID"},
		Empty:  "(no projects)",
	}
	for _, p := range projects {
		view.Rows = append(view.Rows, []string{p.Name, deref(p.State), deref(p.Visibility), p.ID})
	}
	return view
}

// TestPlansView lists test plans.
func TestPlansView(plans []ado.TestPlan) View {
	view := View{
		Title:  "Test plans",
		Data:   plans,
		Header: []string{"ID", "Name", "State", "Iteration", "Updated"},
		Empty:  "(no test plans)",
	}
	for _, plan := range plans {
		view.Rows = append(view.Rows, []string{
			strconv.Itoa(plan.ID),
			plan.Name,
			plan.State,
			deref(plan.Iteration),
			deref(plan.UpdatedDate),
		})
	}
	return view
}

// TestPointsView lists the points of one suite.
func TestPointsView(points []ado.TestPoint) View {
	view := View{
		Title:  "Test points",
		Data:   points,
		Header: []string{"ID", "Test case", "Outcome", "State", "Tester"},
		Empty:  "(no test points)",
	}
	for _, point := range points {
		view.Rows = append(view.Rows, pointRow(point))
	}
	view.Footer = fmt.Sprintf("%d points", len(points))
	return view
}

// OutcomeView lists the points of a plan grouped by suite.
func OutcomeView(report *ado.OutcomeReport) View {
	title := fmt.Sprintf("Plan %d", report.PlanID)
	if report.PlanName != "" {
		title = fmt.Sprintf("%s (plan %d)", report.PlanName, report.PlanID)
	}
	view := View{
		Title:  title,
		Data:   report,
		Header: []string{"Suite", "ID", "Test case", "Outcome", "State", "Tester"},
		Empty:  "(no matching test points)",
	}
	total := 0
	for _, suite := range report.Suites {
		for _, point := range suite.Points {
			view.Rows = append(view.Rows, append([]string{suite.SuiteName}, pointRow(point)...))
			total++
		}
	}
	view.Footer = fmt.Sprintf("%d points in %d suites", total, len(report.Suites))
	return view
}

func pointRow(point ado.TestPoint) []string {
	return []string{
		strconv.Itoa(point.ID),
		point.TestCaseName,
		point.Outcome,
		deref(point.State),
		deref(point.Tester),
	}
}

func quotaLabel(quota int) string {
	if quota <= 0 {
		return "unlimited"
	}
	return strconv.Itoa(quota)
}

func payloadLabel(mb float64) string {
	if mb <= 0 {
		return "unlimited"
	}
	return strconv.FormatFloat(mb, 'f', -1, 64)
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

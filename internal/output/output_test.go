package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/Ravio1i/azure-devops-server-mcp/internal/core/ado"
	"github.com/Ravio1i/azure-devops-server-mcp/internal/core/guard"
	"github.com/Ravio1i/azure-devops-server-mcp/internal/server"
	"github.com/Ravio1i/azure-devops-server-mcp/internal/tools"
)

func strPtr(value string) *string { return &value }

func sampleTools() []tools.Info {
	return []tools.Info{
		{Name: "get_work_item", Group: "WorkItems", Arguments: []string{"id"}, Policy: guard.Policy{QuotaPerMinute: 60, MaxPayloadMB: 1}},
		{Name: "create_work_item", Group: "WorkItems", Write: true, Arguments: []string{"project", "title"}, Policy: guard.Policy{QuotaPerMinute: 20, MaxPayloadMB: 0.5}},
	}
}

func TestParseFormat(t *testing.T) {
	cases := map[string]Format{
		"table":    FormatTable,
		"JSON":     FormatJSON,
		"":         FormatTable,
		"yml":      FormatYAML,
		"yaml":     FormatYAML,
		"md":       FormatMarkdown,
		"markdown": FormatMarkdown,
	}
	for input, want := range cases {
		got, err := ParseFormat(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}

	_, err := ParseFormat("csv")
	require.Error(t, err)
}

func TestToolsViewTable(t *testing.T) {
	rendered, err := NewFormatter(FormatTable).Format(ToolsView(sampleTools()))
	require.NoError(t, err)

	assert.Contains(t, rendered, "get_work_item")
	assert.Contains(t, rendered, "project, title")
	assert.Contains(t, rendered, "0.5")
	assert.Contains(t, rendered, "2 tools, 1 write")
}

func TestTableKeepsFooterCase(t *testing.T) {
	view := View{
		Header: []string{"Plan", "State"},
		Rows:   [][]string{{"Sprint 12", "Active"}},
		Footer: "1 plan, last updated 2d ago",
	}

	rendered, err := NewFormatter(FormatTable).Format(view)
	require.NoError(t, err)
	assert.Contains(t, rendered, "1 plan, last updated 2d ago")
	assert.NotContains(t, rendered, "1 PLAN")
}

func TestToolsViewStructured(t *testing.T) {
	rendered, err := NewFormatter(FormatJSON).Format(ToolsView(sampleTools()))
	require.NoError(t, err)

	var decoded []tools.Info
	require.NoError(t, json.Unmarshal([]byte(rendered), &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, 20, decoded[1].Policy.QuotaPerMinute)

	rendered, err = NewFormatter(FormatYAML).Format(ToolsView(sampleTools()))
	require.NoError(t, err)
	assert.Contains(t, rendered, "quota_per_minute: 60")

	var fromYAML []tools.Info
	require.NoError(t, yaml.Unmarshal([]byte(rendered), &fromYAML))
	assert.Equal(t, "create_work_item", fromYAML[1].Name)
}

func TestMarkdownEscaping(t *testing.T) {
	view := View{
		Title:  "Plans",
		Header: []string{"Name"},
		Rows:   [][]string{{"alpha|beta\ngamma"}},
		Footer: "1 plan",
	}

	rendered, err := NewFormatter(FormatMarkdown).Format(view)
	require.NoError(t, err)
	assert.Contains(t, rendered, "## Plans")
	assert.Contains(t, rendered, "| alpha\\|beta gamma |")
	assert.Contains(t, rendered, "**1 plan**")
}

func TestEmptyViews(t *testing.T) {
	rendered, err := NewFormatter(FormatTable).Format(TestPlansView(nil))
	require.NoError(t, err)
	assert.Equal(t, "(no test plans)", rendered)

	rendered, err = NewFormatter(FormatMarkdown).Format(ProjectsView(nil))
	require.NoError(t, err)
	assert.Contains(t, rendered, "(no projects)")
}

func TestRateLimitsView(t *testing.T) {
	reset := time.Date(2026, 10, 19, 12, 1, 0, 0, time.UTC)
	report := server.RateLimitReport{
		WindowSeconds: 60,
		Operations: []server.RateLimitEntry{
			{Operation: "get_work_item", Count: 3, Quota: 60, Remaining: 57, ResetAt: &reset},
			{Operation: "list_items", Count: 0, Quota: 0, Remaining: -1},
		},
	}

	view := RateLimitsView(report)
	require.Len(t, view.Rows, 2)
	assert.Equal(t, []string{"get_work_item", "3", "60", "57", "2026-10-19T12:01:00Z"}, view.Rows[0])
	assert.Equal(t, []string{"list_items", "0", "unlimited", "unlimited", "-"}, view.Rows[1])
	assert.Contains(t, view.Title, "60s")
}

func TestOutcomeView(t *testing.T) {
	report := &ado.OutcomeReport{
		PlanID:   7,
		PlanName: "Release 1.0",
		Outcomes: []string{"Failed"},
		Suites: []ado.SuitePoints{
			{SuiteID: 1, SuiteName: "Smoke", Points: []ado.TestPoint{
				{ID: 11, TestCaseName: "Login", Outcome: "Failed", Tester: strPtr("Dana")},
			}},
			{SuiteID: 2, SuiteName: "Regression", Points: []ado.TestPoint{
				{ID: 12, TestCaseName: "Logout", Outcome: "Failed"},
			}},
		},
	}

	view := OutcomeView(report)
	assert.Equal(t, "Release 1.0 (plan 7)", view.Title)
	require.Len(t, view.Rows, 2)
	assert.Equal(t, []string{"Smoke", "11", "Login", "Failed", "-", "Dana"}, view.Rows[0])
	assert.Equal(t, "2 points in 2 suites", view.Footer)
}

func TestWriteAppendsNewline(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatJSON, ProjectsView([]ado.Project{{ID: "p1", Name: "Fabrikam"}})))
	assert.True(t, strings.HasSuffix(buf.String(), "\n"))
	assert.Contains(t, buf.String(), `"name": "Fabrikam"`)
}

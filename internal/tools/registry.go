// Package tools exposes the Azure DevOps operations as MCP tools, each one
// running behind the call guard.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/Ravio1i/azure-devops-server-mcp/internal/core/ado"
	"github.com/Ravio1i/azure-devops-server-mcp/internal/core/guard"
	"github.com/Ravio1i/azure-devops-server-mcp/internal/metrics"
)

// ServerName is the MCP implementation name announced to clients.
const ServerName = "adosmcp"

// Backend is the Azure DevOps surface the tools call.
type Backend interface {
	ListTeamProjects(ctx context.Context) ([]ado.Project, error)
	GetTeamProject(ctx context.Context, projectIDOrName string) (*ado.Project, error)
	ListTeams(ctx context.Context, projectIDOrName string) ([]ado.Team, error)

	ListWorkItems(ctx context.Context, project, query string, limit int) ([]ado.WorkItem, error)
	GetWorkItem(ctx context.Context, id int) (*ado.WorkItem, error)
	CreateWorkItem(ctx context.Context, project, workItemType string, fields ado.WorkItemFields) (*ado.WorkItem, error)
	UpdateWorkItem(ctx context.Context, id int, fields ado.WorkItemFields) (*ado.WorkItem, error)
	QueryWorkItems(ctx context.Context, q ado.WorkItemQuery) ([]ado.WorkItem, error)

	ListRepositories(ctx context.Context, project string) ([]ado.Repository, error)
	GetRepository(ctx context.Context, project, repositoryID string) (*ado.Repository, error)
	ListBranches(ctx context.Context, project, repositoryID string, limit int) ([]ado.Branch, error)
	GetCommits(ctx context.Context, project, repositoryID, branch string, limit int) ([]ado.Commit, error)
	GetFileContent(ctx context.Context, project, repositoryID, path, branch string) (*ado.FileContent, error)
	ListItems(ctx context.Context, project, repositoryID, path, branch string, limit int) ([]ado.Item, error)

	ListPullRequests(ctx context.Context, project, repositoryID, status string, limit int) ([]ado.PullRequest, error)
	GetPullRequest(ctx context.Context, project, repositoryID string, pullRequestID int) (*ado.PullRequestDetail, error)
	CreatePullRequest(ctx context.Context, project, repositoryID string, in ado.NewPullRequest) (*ado.PullRequestDetail, error)
	GetPullRequestComments(ctx context.Context, project, repositoryID string, pullRequestID, limit int) ([]ado.Thread, error)
	UpdatePullRequest(ctx context.Context, project, repositoryID string, pullRequestID int, update ado.PullRequestUpdate) (*ado.PullRequestDetail, error)

	ListTestPlans(ctx context.Context, project string, filter ado.PlanFilter) ([]ado.TestPlan, error)
	ListTestSuites(ctx context.Context, project string, planID int) ([]ado.TestSuite, error)
	ListTestPoints(ctx context.Context, project string, planID, suiteID int) ([]ado.TestPoint, error)
	GetTestPointsByOutcome(ctx context.Context, q ado.OutcomeQuery) (*ado.OutcomeReport, error)
}

// Tool is one guarded operation together with its MCP definition.
type Tool struct {
	Operation  guard.Operation
	Write      bool
	Definition mcp.Tool
	Run        guard.Handler[any]
}

// Info summarizes a registered tool for listings.
type Info struct {
	Name        string       `json:"name" yaml:"name"`
	Group       string       `json:"group" yaml:"group"`
	Description string       `json:"description" yaml:"description"`
	Write       bool         `json:"write" yaml:"write"`
	Arguments   []string     `json:"arguments" yaml:"arguments"`
	Policy      guard.Policy `json:"policy" yaml:"policy"`
}

// Registry holds every tool and the guarded handler built for it.
type Registry struct {
	guard    *guard.Guard
	policies PolicySet
	tools    []Tool
	calls    map[string]guard.Handler[any]
	handlers map[string]server.ToolHandlerFunc
}

// ErrUnknownTool is returned by Call for names that are not registered.
var ErrUnknownTool = errors.New("unknown tool")

// NewRegistry builds the full tool set over backend. Each handler is composed
// once here with its resolved policy.
func NewRegistry(backend Backend, g *guard.Guard, policies PolicySet) *Registry {
	if g == nil {
		g = guard.New()
	}
	r := &Registry{
		guard:    g,
		policies: policies,
		calls:    make(map[string]guard.Handler[any]),
		handlers: make(map[string]server.ToolHandlerFunc),
	}
	for _, group := range [][]Tool{
		projectTools(backend),
		workItemTools(backend),
		gitTools(backend),
		pullRequestTools(backend),
		testPlanTools(backend),
	} {
		for _, tool := range group {
			r.add(tool)
		}
	}
	return r
}

func (r *Registry) add(tool Tool) {
	policy := r.policies.Resolve(tool.Operation.Name, tool.Write)
	call := guard.Wrap(r.guard, tool.Operation, policy, tool.Run)
	r.tools = append(r.tools, tool)
	r.calls[tool.Operation.Name] = call
	r.handlers[tool.Operation.Name] = toolHandler(tool.Operation, call)
}

// Tools returns the registered tools in registration order.
func (r *Registry) Tools() []Tool {
	out := make([]Tool, len(r.tools))
	copy(out, r.tools)
	return out
}

// Handler returns the guarded MCP handler for name.
func (r *Registry) Handler(name string) (server.ToolHandlerFunc, bool) {
	h, ok := r.handlers[name]
	return h, ok
}

// Call runs the guarded operation name outside of MCP. Guard failures are
// returned as *guard.Failure.
func (r *Registry) Call(ctx context.Context, name string, args guard.Args) (any, error) {
	call, ok := r.calls[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	if args == nil {
		args = guard.Args{}
	}
	result, err := call(ctx, args)
	metrics.RecordToolCall(name, err == nil)
	return result, err
}

// Describe lists the tools with their effective policies.
func (r *Registry) Describe() []Info {
	infos := make([]Info, 0, len(r.tools))
	for _, tool := range r.tools {
		args := make([]string, 0, len(tool.Definition.InputSchema.Properties))
		for name := range tool.Definition.InputSchema.Properties {
			args = append(args, name)
		}
		sort.Strings(args)
		infos = append(infos, Info{
			Name:        tool.Operation.Name,
			Group:       tool.Operation.Group,
			Description: tool.Definition.Description,
			Write:       tool.Write,
			Arguments:   args,
			Policy:      r.policies.Resolve(tool.Operation.Name, tool.Write),
		})
	}
	return infos
}

// Register adds every tool to s.
func (r *Registry) Register(s *server.MCPServer) {
	for _, tool := range r.tools {
		s.AddTool(tool.Definition, r.handlers[tool.Operation.Name])
	}
}

// NewServer creates the MCP server with every tool registered.
func NewServer(version string, r *Registry) *server.MCPServer {
	s := server.NewMCPServer(
		ServerName,
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)
	r.Register(s)
	return s
}

// toolHandler adapts a guarded call to the MCP handler signature. Failures and
// panics are reported as tool errors so the client sees the normalized message.
func toolHandler(op guard.Operation, call guard.Handler[any]) server.ToolHandlerFunc {
	name := op.Name
	label := guard.ContextLabel(op.Group, guard.DefaultGroupPrefix)
	return func(ctx context.Context, req mcp.CallToolRequest) (out *mcp.CallToolResult, err error) {
		defer func() {
			if rec := recover(); rec != nil {
				metrics.RecordPanic("tool")
				metrics.RecordToolCall(name, false)
				out = mcp.NewToolResultError(fmt.Sprintf("Unexpected error in %s%s: %v", guard.OperationWords(name), label, rec))
				err = nil
			}
		}()

		args := guard.Args(req.GetArguments())
		if args == nil {
			args = guard.Args{}
		}

		result, callErr := call(ctx, args)
		if callErr != nil {
			metrics.RecordToolCall(name, false)
			return mcp.NewToolResultError(callErr.Error()), nil
		}

		payload, encErr := json.Marshal(result)
		if encErr != nil {
			metrics.RecordToolCall(name, false)
			return mcp.NewToolResultError(fmt.Sprintf("Unexpected error in %s%s: encode result: %v", guard.OperationWords(name), label, encErr)), nil
		}
		metrics.RecordToolCall(name, true)
		return mcp.NewToolResultText(string(payload)), nil
	}
}

const instructions = `Tools for an on-premises Azure DevOps Server (TFS) collection.

Projects, teams, work items, Git repositories, pull requests and test plans are available.
Every tool is rate limited per tool name over a rolling minute and rejects oversized text
arguments. When a tool reports "Rate limit exceeded", wait before calling it again.
List tools accept a limit that is clamped to a safe maximum.`

func newTool(group, name string, write bool, run guard.Handler[any], opts ...mcp.ToolOption) Tool {
	return Tool{
		Operation:  guard.Operation{Name: name, Group: group},
		Write:      write,
		Definition: mcp.NewTool(name, opts...),
		Run:        run,
	}
}

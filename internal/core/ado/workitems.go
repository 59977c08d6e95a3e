package ado

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// GroupWorkItems is the operation group for work item tracking.
const GroupWorkItems = "AzureDevOpsWorkItems"

// Work item fields addressed by the tools.
const (
	FieldTitle       = "System.Title"
	FieldDescription = "System.Description"
	FieldAssignedTo  = "System.AssignedTo"
	FieldState       = "System.State"
	FieldType        = "System.WorkItemType"
	FieldPriority    = "Microsoft.VSTS.Common.Priority"
)

// WorkItemBatchSize bounds the ids sent per batch request.
const WorkItemBatchSize = 20

const batchConcurrency = 4

// WorkItem is a flattened work item.
type WorkItem struct {
	ID           int    `json:"id"`
	Title        string `json:"title"`
	State        string `json:"state"`
	WorkItemType string `json:"work_item_type"`
	AssignedTo   string `json:"assigned_to"`
	URL          string `json:"url"`
	Rev          int    `json:"rev"`
}

// WorkItemFields carries the optional fields for create and update.
type WorkItemFields struct {
	Title       string
	Description string
	AssignedTo  string
	State       string
	Priority    string
}

// WorkItemQuery filters query_work_items.
type WorkItemQuery struct {
	Project      string
	WorkItemType string
	State        string
	AssignedTo   string
	Limit        int
}

type wireWorkItem struct {
	ID     int            `json:"id"`
	Rev    int            `json:"rev"`
	Fields map[string]any `json:"fields"`
	URL    string         `json:"url"`
}

type patchOperation struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value"`
}

type wiqlResult struct {
	WorkItems []struct {
		ID int `json:"id"`
	} `json:"workItems"`
}

// DefaultWIQL selects every work item of project.
func DefaultWIQL(project string) string {
	return "SELECT [System.Id], [System.Title], [System.State], [System.AssignedTo], [System.WorkItemType] " +
		"FROM WorkItems WHERE [System.TeamProject] = '" + wiqlQuote(project) + "'"
}

// BuildWorkItemQuery renders the WIQL used by query_work_items. Limit must
// already be clamped.
func BuildWorkItemQuery(q WorkItemQuery) string {
	conditions := []string{fmt.Sprintf("[System.TeamProject] = '%s'", wiqlQuote(q.Project))}
	if q.WorkItemType != "" {
		conditions = append(conditions, fmt.Sprintf("[System.WorkItemType] = '%s'", wiqlQuote(q.WorkItemType)))
	}
	if q.State != "" {
		conditions = append(conditions, fmt.Sprintf("[System.State] = '%s'", wiqlQuote(q.State)))
	}
	if q.AssignedTo != "" {
		conditions = append(conditions, fmt.Sprintf("[System.AssignedTo] = '%s'", wiqlQuote(q.AssignedTo)))
	}
	return fmt.Sprintf("SELECT TOP %d [System.Id], [System.Title], [System.State], [System.AssignedTo], "+
		"[System.WorkItemType], [System.ChangedDate] FROM WorkItems WHERE %s ORDER BY [System.ChangedDate] DESC",
		q.Limit, strings.Join(conditions, " AND "))
}

func wiqlQuote(value string) string {
	return strings.ReplaceAll(value, "'", "''")
}

// ListWorkItems runs query (or the project default) and fetches up to limit
// of the matching items. Batches that fail are logged and skipped.
func (c *Client) ListWorkItems(ctx context.Context, project, query string, limit int) ([]WorkItem, error) {
	if strings.TrimSpace(project) == "" {
		return nil, errors.New("project name is required")
	}
	if strings.TrimSpace(query) == "" {
		query = DefaultWIQL(project)
	}

	c.logInfo("Executing WIQL query", zap.String("project", project), zap.String("query", query))

	var result wiqlResult
	err := c.do(ctx, request{
		method:   http.MethodPost,
		segments: []string{project, "_apis", "wit", "wiql"},
		body:     map[string]string{"query": query},
	}, &result)
	if err != nil {
		return nil, err
	}
	if len(result.WorkItems) == 0 {
		c.logInfo("No work items found", zap.String("project", project))
		return []WorkItem{}, nil
	}

	ids := make([]int, 0, len(result.WorkItems))
	for _, wi := range result.WorkItems {
		if limit > 0 && len(ids) >= limit {
			break
		}
		ids = append(ids, wi.ID)
	}

	batches := chunk(ids, WorkItemBatchSize)
	fetched := make([][]wireWorkItem, len(batches))

	var g errgroup.Group
	g.SetLimit(batchConcurrency)
	for i, batch := range batches {
		g.Go(func() error {
			items, err := c.fetchWorkItems(ctx, batch)
			if err != nil {
				c.logError("Error processing work item batch",
					zap.Int("batch", i+1),
					zap.Int("size", len(batch)),
					zap.Error(err))
				return nil
			}
			fetched[i] = items
			return nil
		})
	}
	_ = g.Wait()

	items := make([]WorkItem, 0, len(ids))
	for _, batch := range fetched {
		for _, wi := range batch {
			items = append(items, wi.record())
		}
	}
	return items, nil
}

func (c *Client) fetchWorkItems(ctx context.Context, ids []int) ([]wireWorkItem, error) {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, strconv.Itoa(id))
	}
	query := map[string][]string{
		"ids":     {strings.Join(parts, ",")},
		"$expand": {"Fields"},
	}
	var resp listResponse[wireWorkItem]
	if err := c.get(ctx, &resp, query, "_apis", "wit", "workitems"); err != nil {
		return nil, err
	}
	return resp.Value, nil
}

// QueryWorkItems builds a filtered WIQL query and lists its results.
func (c *Client) QueryWorkItems(ctx context.Context, q WorkItemQuery) ([]WorkItem, error) {
	return c.ListWorkItems(ctx, q.Project, BuildWorkItemQuery(q), q.Limit)
}

// GetWorkItem fetches one work item with all relations expanded.
func (c *Client) GetWorkItem(ctx context.Context, id int) (*WorkItem, error) {
	if id <= 0 {
		return nil, errors.New("valid work item ID is required")
	}
	var wi wireWorkItem
	query := map[string][]string{"$expand": {"All"}}
	if err := c.get(ctx, &wi, query, "_apis", "wit", "workitems", strconv.Itoa(id)); err != nil {
		return nil, err
	}
	record := wi.record()
	return &record, nil
}

// CreateWorkItem creates a work item of workItemType in project.
func (c *Client) CreateWorkItem(ctx context.Context, project, workItemType string, fields WorkItemFields) (*WorkItem, error) {
	switch {
	case strings.TrimSpace(project) == "":
		return nil, errors.New("project name is required")
	case strings.TrimSpace(workItemType) == "":
		return nil, errors.New("work item type is required")
	case strings.TrimSpace(fields.Title) == "":
		return nil, errors.New("title is required")
	}

	var wi wireWorkItem
	err := c.do(ctx, request{
		method:      http.MethodPost,
		segments:    []string{project, "_apis", "wit", "workitems", "$" + workItemType},
		body:        fields.patch("add"),
		contentType: "application/json-patch+json",
	}, &wi)
	if err != nil {
		return nil, err
	}
	record := wi.record()
	return &record, nil
}

// UpdateWorkItem replaces the non-empty fields of work item id.
func (c *Client) UpdateWorkItem(ctx context.Context, id int, fields WorkItemFields) (*WorkItem, error) {
	if id <= 0 {
		return nil, errors.New("valid work item ID is required")
	}
	document := fields.patch("replace")
	if len(document) == 0 {
		return nil, errors.New("no valid fields provided for update")
	}

	var wi wireWorkItem
	err := c.do(ctx, request{
		method:      http.MethodPatch,
		segments:    []string{"_apis", "wit", "workitems", strconv.Itoa(id)},
		body:        document,
		contentType: "application/json-patch+json",
	}, &wi)
	if err != nil {
		return nil, err
	}
	record := wi.record()
	return &record, nil
}

func (f WorkItemFields) patch(op string) []patchOperation {
	var document []patchOperation
	add := func(field, value string) {
		if value == "" {
			return
		}
		document = append(document, patchOperation{Op: op, Path: "/fields/" + field, Value: value})
	}
	add(FieldTitle, f.Title)
	add(FieldDescription, f.Description)
	add(FieldAssignedTo, f.AssignedTo)
	add(FieldState, f.State)
	add(FieldPriority, f.Priority)
	return document
}

func (w wireWorkItem) record() WorkItem {
	return WorkItem{
		ID:           w.ID,
		Title:        stringField(w.Fields, FieldTitle),
		State:        stringField(w.Fields, FieldState),
		WorkItemType: stringField(w.Fields, FieldType),
		AssignedTo:   identityName(w.Fields[FieldAssignedTo]),
		URL:          w.URL,
		Rev:          w.Rev,
	}
}

func stringField(fields map[string]any, name string) string {
	value, ok := fields[name]
	if !ok || value == nil {
		return ""
	}
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprint(value)
}

// identityName renders an identity reference, which the server returns either
// as an object or as a plain string.
func identityName(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case map[string]any:
		if name, ok := v["displayName"].(string); ok && name != "" {
			return name
		}
		if name, ok := v["uniqueName"].(string); ok {
			return name
		}
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func chunk(ids []int, size int) [][]int {
	var batches [][]int
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		batches = append(batches, ids[start:end])
	}
	return batches
}

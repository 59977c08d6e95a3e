package ado

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// GroupTestPlans is the operation group for test plan reporting.
const GroupTestPlans = "AzureDevOpsTestPlans"

// TestAPIVersion is the api-version the test management endpoints are pinned to.
const TestAPIVersion = "4.0"

// Test point outcomes accepted as a filter.
const (
	OutcomeFailed      = "Failed"
	OutcomePassed      = "Passed"
	OutcomeUnspecified = "Unspecified"
)

// DefaultOutcomes is used when no outcome filter is given.
var DefaultOutcomes = []string{OutcomeFailed, OutcomePassed, OutcomeUnspecified}

const suiteConcurrency = 4

// TestPlan is a flattened test plan.
type TestPlan struct {
	ID          int     `json:"id"`
	Name        string  `json:"name"`
	State       string  `json:"state"`
	UpdatedDate *string `json:"updated_date"`
	StartDate   *string `json:"start_date"`
	EndDate     *string `json:"end_date"`
	Iteration   *string `json:"iteration"`
	URL         *string `json:"url"`
}

// TestSuite is a flattened test suite.
type TestSuite struct {
	ID            int     `json:"id"`
	Name          string  `json:"name"`
	SuiteType     *string `json:"suite_type"`
	TestCaseCount int     `json:"test_case_count"`
	URL           *string `json:"url"`
}

// TestPoint is a flattened test point.
type TestPoint struct {
	ID           int     `json:"id"`
	TestCaseID   *string `json:"test_case_id"`
	TestCaseName string  `json:"test_case_name"`
	Outcome      string  `json:"outcome"`
	State        *string `json:"state"`
	Tester       *string `json:"tester"`
	LastUpdated  *string `json:"last_updated_date"`
	URL          *string `json:"url"`
}

// SuitePoints groups the matching points of one suite.
type SuitePoints struct {
	SuiteID   int         `json:"suite_id"`
	SuiteName string      `json:"suite_name"`
	Points    []TestPoint `json:"points"`
}

// OutcomeReport is the result of get_test_points_by_outcome.
type OutcomeReport struct {
	PlanID   int           `json:"plan_id"`
	PlanName string        `json:"plan_name,omitempty"`
	Outcomes []string      `json:"outcomes"`
	Suites   []SuitePoints `json:"suites"`
}

// PlanFilter narrows list_test_plans. Filters apply in order: active, last
// days, latest.
type PlanFilter struct {
	Active   bool
	LastDays int
	Latest   bool
}

// OutcomeQuery selects a plan by id or name and an optional outcome.
type OutcomeQuery struct {
	Project  string
	PlanID   int
	PlanName string
	Outcome  string
}

type wireNamedRef struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	DisplayName *string `json:"displayName"`
}

type wireTestPlan struct {
	ID          int     `json:"id"`
	Name        string  `json:"name"`
	State       string  `json:"state"`
	UpdatedDate *string `json:"updatedDate"`
	StartDate   *string `json:"startDate"`
	EndDate     *string `json:"endDate"`
	Iteration   *string `json:"iteration"`
	URL         *string `json:"url"`
}

type wireTestSuite struct {
	ID            int     `json:"id"`
	Name          string  `json:"name"`
	SuiteType     *string `json:"suiteType"`
	TestCaseCount int     `json:"testCaseCount"`
	URL           *string `json:"url"`
}

type wireTestPoint struct {
	ID              int           `json:"id"`
	TestCase        *wireNamedRef `json:"testCase"`
	Outcome         string        `json:"outcome"`
	State           *string       `json:"state"`
	AssignedTo      *wireNamedRef `json:"assignedTo"`
	LastUpdatedDate *string       `json:"lastUpdatedDate"`
	URL             *string       `json:"url"`
}

// ErrPlanNotFound is returned when a plan name matches no plan.
var ErrPlanNotFound = errors.New("test plan not found")

// ValidOutcome reports whether outcome is an accepted filter value.
func ValidOutcome(outcome string) bool {
	for _, o := range DefaultOutcomes {
		if o == outcome {
			return true
		}
	}
	return false
}

// ListTestPlans lists the test plans of project and applies filter, using now
// as the reference time for LastDays.
func (c *Client) ListTestPlans(ctx context.Context, project string, filter PlanFilter) ([]TestPlan, error) {
	plans, err := c.fetchTestPlans(ctx, project)
	if err != nil {
		return nil, err
	}
	return FilterPlans(plans, filter, c.now()), nil
}

func (c *Client) fetchTestPlans(ctx context.Context, project string) ([]TestPlan, error) {
	if strings.TrimSpace(project) == "" {
		return nil, errors.New("project name is required")
	}
	var resp listResponse[wireTestPlan]
	err := c.do(ctx, request{
		method:     http.MethodGet,
		segments:   []string{project, "_apis", "test", "plans"},
		query:      url.Values{"includePlanDetails": {"true"}},
		apiVersion: TestAPIVersion,
	}, &resp)
	if err != nil {
		return nil, err
	}
	plans := make([]TestPlan, 0, len(resp.Value))
	for _, p := range resp.Value {
		plans = append(plans, TestPlan(p))
	}
	return plans, nil
}

// FilterPlans applies filter to plans relative to now.
func FilterPlans(plans []TestPlan, filter PlanFilter, now time.Time) []TestPlan {
	filtered := plans
	if filter.Active {
		kept := make([]TestPlan, 0, len(filtered))
		for _, p := range filtered {
			if strings.EqualFold(p.State, "active") {
				kept = append(kept, p)
			}
		}
		filtered = kept
	}
	if filter.LastDays > 0 {
		cutoff := now.Add(-time.Duration(filter.LastDays) * 24 * time.Hour)
		kept := make([]TestPlan, 0, len(filtered))
		for _, p := range filtered {
			if updated, ok := ParsePlanDate(p.UpdatedDate); ok && !updated.Before(cutoff) {
				kept = append(kept, p)
			}
		}
		filtered = kept
	}
	if filter.Latest && len(filtered) > 0 {
		latest := 0
		var latestAt time.Time
		for i, p := range filtered {
			updated, _ := ParsePlanDate(p.UpdatedDate)
			if i == 0 || updated.After(latestAt) {
				latest, latestAt = i, updated
			}
		}
		filtered = []TestPlan{filtered[latest]}
	}
	return filtered
}

// ParsePlanDate parses a server timestamp. Values that are not RFC 3339 are
// read from their first 19 characters as UTC.
func ParsePlanDate(value *string) (time.Time, bool) {
	if value == nil || *value == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339Nano, *value); err == nil {
		return t.UTC(), true
	}
	raw := *value
	if len(raw) > 19 {
		raw = raw[:19]
	}
	t, err := time.Parse("2006-01-02T15:04:05", raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ListTestSuites lists the suites of a plan.
func (c *Client) ListTestSuites(ctx context.Context, project string, planID int) ([]TestSuite, error) {
	if strings.TrimSpace(project) == "" {
		return nil, errors.New("project name is required")
	}
	if planID <= 0 {
		return nil, errors.New("valid test plan ID is required")
	}
	var resp listResponse[wireTestSuite]
	err := c.do(ctx, request{
		method:     http.MethodGet,
		segments:   []string{project, "_apis", "test", "plans", strconv.Itoa(planID), "suites"},
		apiVersion: TestAPIVersion,
	}, &resp)
	if err != nil {
		return nil, err
	}
	suites := make([]TestSuite, 0, len(resp.Value))
	for _, s := range resp.Value {
		suites = append(suites, TestSuite(s))
	}
	return suites, nil
}

// ListTestPoints lists the points of one suite.
func (c *Client) ListTestPoints(ctx context.Context, project string, planID, suiteID int) ([]TestPoint, error) {
	if strings.TrimSpace(project) == "" {
		return nil, errors.New("project name is required")
	}
	if planID <= 0 || suiteID <= 0 {
		return nil, errors.New("valid test plan and suite IDs are required")
	}
	var resp listResponse[wireTestPoint]
	err := c.do(ctx, request{
		method: http.MethodGet,
		segments: []string{
			project, "_apis", "test", "plans", strconv.Itoa(planID),
			"suites", strconv.Itoa(suiteID), "points",
		},
		apiVersion: TestAPIVersion,
	}, &resp)
	if err != nil {
		return nil, err
	}
	points := make([]TestPoint, 0, len(resp.Value))
	for _, p := range resp.Value {
		points = append(points, p.record())
	}
	return points, nil
}

// ResolvePlanID finds the plan whose name matches name case-insensitively.
func (c *Client) ResolvePlanID(ctx context.Context, project, name string) (int, error) {
	plans, err := c.fetchTestPlans(ctx, project)
	if err != nil {
		return 0, err
	}
	for _, p := range plans {
		if strings.EqualFold(p.Name, name) {
			return p.ID, nil
		}
	}
	return 0, fmt.Errorf("%w: %q in project %q", ErrPlanNotFound, name, project)
}

// GetTestPointsByOutcome walks every suite of a plan and returns the suites
// that have points matching the outcome filter, in suite order.
func (c *Client) GetTestPointsByOutcome(ctx context.Context, q OutcomeQuery) (*OutcomeReport, error) {
	if q.PlanID <= 0 && strings.TrimSpace(q.PlanName) == "" {
		return nil, errors.New("test plan ID or name is required")
	}
	if q.Outcome != "" && !ValidOutcome(q.Outcome) {
		return nil, fmt.Errorf("outcome must be one of %s", strings.Join(DefaultOutcomes, ", "))
	}

	planID := q.PlanID
	if planID <= 0 {
		resolved, err := c.ResolvePlanID(ctx, q.Project, q.PlanName)
		if err != nil {
			return nil, err
		}
		planID = resolved
		c.logInfo("Resolved test plan", zap.String("plan_name", q.PlanName), zap.Int("plan_id", planID))
	}

	suites, err := c.ListTestSuites(ctx, q.Project, planID)
	if err != nil {
		return nil, err
	}

	outcomes := DefaultOutcomes
	if q.Outcome != "" {
		outcomes = []string{q.Outcome}
	}
	allowed := make(map[string]bool, len(outcomes))
	for _, o := range outcomes {
		allowed[o] = true
	}

	matched := make([][]TestPoint, len(suites))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(suiteConcurrency)
	for i, suite := range suites {
		g.Go(func() error {
			points, err := c.ListTestPoints(gctx, q.Project, planID, suite.ID)
			if err != nil {
				return fmt.Errorf("suite %d: %w", suite.ID, err)
			}
			for _, p := range points {
				if allowed[p.Outcome] {
					matched[i] = append(matched[i], p)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &OutcomeReport{
		PlanID:   planID,
		PlanName: q.PlanName,
		Outcomes: outcomes,
		Suites:   []SuitePoints{},
	}
	for i, suite := range suites {
		if len(matched[i]) == 0 {
			continue
		}
		report.Suites = append(report.Suites, SuitePoints{
			SuiteID:   suite.ID,
			SuiteName: suite.Name,
			Points:    matched[i],
		})
	}
	return report, nil
}

// SortPlansByUpdated orders plans newest first; plans without a date sort last.
func SortPlansByUpdated(plans []TestPlan) {
	sort.SliceStable(plans, func(i, j int) bool {
		a, aok := ParsePlanDate(plans[i].UpdatedDate)
		b, bok := ParsePlanDate(plans[j].UpdatedDate)
		if aok != bok {
			return aok
		}
		return a.After(b)
	})
}

func (w wireTestPoint) record() TestPoint {
	p := TestPoint{
		ID:          w.ID,
		Outcome:     w.Outcome,
		State:       w.State,
		LastUpdated: w.LastUpdatedDate,
		URL:         w.URL,
	}
	if p.Outcome == "" {
		p.Outcome = "Unknown"
	}
	if w.TestCase != nil {
		id := w.TestCase.ID
		p.TestCaseID = &id
		p.TestCaseName = w.TestCase.Name
	}
	if p.TestCaseName == "" {
		p.TestCaseName = "Unknown"
	}
	if w.AssignedTo != nil {
		p.Tester = w.AssignedTo.DisplayName
	}
	return p
}

package ado

import (
	"context"
	"errors"
	"strings"
)

// GroupTeamProjects is the operation group for project and team lookups.
const GroupTeamProjects = "AzureDevOpsTeamProjects"

// Project is a flattened team project.
type Project struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Description    *string `json:"description"`
	URL            *string `json:"url"`
	State          *string `json:"state"`
	Revision       *int64  `json:"revision"`
	Visibility     *string `json:"visibility"`
	LastUpdateTime *string `json:"last_update_time"`
}

// Team is a flattened project team.
type Team struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	URL         *string `json:"url"`
	Description *string `json:"description"`
	IdentityURL *string `json:"identity_url"`
}

type wireProject struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Description    *string `json:"description"`
	URL            *string `json:"url"`
	State          *string `json:"state"`
	Revision       *int64  `json:"revision"`
	Visibility     *string `json:"visibility"`
	LastUpdateTime *string `json:"lastUpdateTime"`
}

type wireTeam struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	URL         *string `json:"url"`
	Description *string `json:"description"`
	IdentityURL *string `json:"identityUrl"`
}

type listResponse[T any] struct {
	Count int `json:"count"`
	Value []T `json:"value"`
}

// ListTeamProjects lists every project in the collection.
func (c *Client) ListTeamProjects(ctx context.Context) ([]Project, error) {
	var resp listResponse[wireProject]
	if err := c.get(ctx, &resp, nil, "_apis", "projects"); err != nil {
		return nil, err
	}
	projects := make([]Project, 0, len(resp.Value))
	for _, p := range resp.Value {
		projects = append(projects, p.record())
	}
	return projects, nil
}

// GetTeamProject fetches one project by id or name.
func (c *Client) GetTeamProject(ctx context.Context, projectIDOrName string) (*Project, error) {
	if strings.TrimSpace(projectIDOrName) == "" {
		return nil, errors.New("project ID or name is required")
	}
	var p wireProject
	if err := c.get(ctx, &p, nil, "_apis", "projects", projectIDOrName); err != nil {
		return nil, err
	}
	record := p.record()
	return &record, nil
}

// ListTeams lists the teams of a project.
func (c *Client) ListTeams(ctx context.Context, projectIDOrName string) ([]Team, error) {
	if strings.TrimSpace(projectIDOrName) == "" {
		return nil, errors.New("project ID or name is required")
	}
	var resp listResponse[wireTeam]
	if err := c.get(ctx, &resp, nil, "_apis", "projects", projectIDOrName, "teams"); err != nil {
		return nil, err
	}
	teams := make([]Team, 0, len(resp.Value))
	for _, t := range resp.Value {
		teams = append(teams, Team(t))
	}
	return teams, nil
}

func (p wireProject) record() Project {
	return Project(p)
}

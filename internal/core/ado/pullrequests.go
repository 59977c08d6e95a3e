package ado

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// GroupPullRequests is the operation group for pull request workflows.
const GroupPullRequests = "AzureDevOpsPullRequests"

// Pull request statuses accepted by the list and update operations.
const (
	PRStatusActive    = "active"
	PRStatusCompleted = "completed"
	PRStatusAbandoned = "abandoned"
	PRStatusAll       = "all"
)

// IdentityRef is a user reference.
type IdentityRef struct {
	DisplayName *string `json:"display_name"`
	UniqueName  *string `json:"unique_name"`
	ID          *string `json:"id"`
}

// RepositoryRef identifies the repository of a pull request.
type RepositoryRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CommitRef is a bare commit id.
type CommitRef struct {
	CommitID *string `json:"commit_id"`
}

// Reviewer is a pull request reviewer with their vote.
type Reviewer struct {
	DisplayName *string `json:"display_name"`
	UniqueName  *string `json:"unique_name"`
	ID          *string `json:"id"`
	Vote        int     `json:"vote"`
	IsRequired  bool    `json:"is_required"`
}

// ResourceRef links a work item to a pull request.
type ResourceRef struct {
	ID  *string `json:"id"`
	URL *string `json:"url"`
}

// PullRequest is the summary form returned by list_pull_requests.
type PullRequest struct {
	PullRequestID int            `json:"pull_request_id"`
	Title         string         `json:"title"`
	Description   *string        `json:"description"`
	Status        string         `json:"status"`
	CreationDate  *string        `json:"creation_date"`
	SourceRefName string         `json:"source_ref_name"`
	TargetRefName string         `json:"target_ref_name"`
	CreatedBy     *IdentityRef   `json:"created_by"`
	Repository    *RepositoryRef `json:"repository"`
	URL           *string        `json:"url"`
	IsDraft       bool           `json:"is_draft"`
}

// PullRequestDetail extends PullRequest with merge and review state.
type PullRequestDetail struct {
	PullRequest
	ClosedDate            *string       `json:"closed_date"`
	MergeStatus           *string       `json:"merge_status"`
	MergeID               *string       `json:"merge_id"`
	LastMergeSourceCommit *CommitRef    `json:"last_merge_source_commit"`
	LastMergeTargetCommit *CommitRef    `json:"last_merge_target_commit"`
	Reviewers             []Reviewer    `json:"reviewers"`
	WorkItemRefs          []ResourceRef `json:"work_item_refs"`
}

// LineRef is a line position inside a thread context.
type LineRef struct {
	Line *int `json:"line"`
}

// ThreadContext anchors a thread to a file.
type ThreadContext struct {
	FilePath       *string  `json:"file_path"`
	LeftFileStart  *LineRef `json:"left_file_start"`
	RightFileStart *LineRef `json:"right_file_start"`
}

// Comment is one comment in a thread.
type Comment struct {
	ID              *int         `json:"id"`
	Content         *string      `json:"content"`
	PublishedDate   *string      `json:"published_date"`
	LastUpdatedDate *string      `json:"last_updated_date"`
	Author          *IdentityRef `json:"author"`
	CommentType     *string      `json:"comment_type"`
}

// Thread is a pull request comment thread.
type Thread struct {
	ID              int            `json:"id"`
	Status          *string        `json:"status"`
	ThreadContext   *ThreadContext `json:"thread_context"`
	Comments        []Comment      `json:"comments"`
	IsDeleted       bool           `json:"is_deleted"`
	LastUpdatedDate *string        `json:"last_updated_date"`
	PublishedDate   *string        `json:"published_date"`
}

// NewPullRequest describes a pull request to create.
type NewPullRequest struct {
	Title        string
	Description  string
	SourceBranch string
	TargetBranch string
	Reviewers    []string
}

// PullRequestUpdate carries the optional fields of update_pull_request.
type PullRequestUpdate struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status,omitempty"`
}

type wireIdentity struct {
	DisplayName *string `json:"displayName"`
	UniqueName  *string `json:"uniqueName"`
	ID          *string `json:"id"`
	Vote        int     `json:"vote"`
	IsRequired  bool    `json:"isRequired"`
}

type wireCommitRef struct {
	CommitID *string `json:"commitId"`
}

type wirePullRequest struct {
	PullRequestID         int            `json:"pullRequestId"`
	Title                 string         `json:"title"`
	Description           *string        `json:"description"`
	Status                string         `json:"status"`
	CreationDate          *string        `json:"creationDate"`
	ClosedDate            *string        `json:"closedDate"`
	SourceRefName         string         `json:"sourceRefName"`
	TargetRefName         string         `json:"targetRefName"`
	CreatedBy             *wireIdentity  `json:"createdBy"`
	Repository            *RepositoryRef `json:"repository"`
	URL                   *string        `json:"url"`
	IsDraft               bool           `json:"isDraft"`
	MergeStatus           *string        `json:"mergeStatus"`
	MergeID               *string        `json:"mergeId"`
	LastMergeSourceCommit *wireCommitRef `json:"lastMergeSourceCommit"`
	LastMergeTargetCommit *wireCommitRef `json:"lastMergeTargetCommit"`
	Reviewers             []wireIdentity `json:"reviewers"`
	WorkItemRefs          []ResourceRef  `json:"workItemRefs"`
}

type wireThreadContext struct {
	FilePath       *string  `json:"filePath"`
	LeftFileStart  *LineRef `json:"leftFileStart"`
	RightFileStart *LineRef `json:"rightFileStart"`
}

type wireComment struct {
	ID              *int          `json:"id"`
	Content         *string       `json:"content"`
	PublishedDate   *string       `json:"publishedDate"`
	LastUpdatedDate *string       `json:"lastUpdatedDate"`
	Author          *wireIdentity `json:"author"`
	CommentType     *string       `json:"commentType"`
}

type wireThread struct {
	ID              int                `json:"id"`
	Status          *string            `json:"status"`
	ThreadContext   *wireThreadContext `json:"threadContext"`
	Comments        []wireComment      `json:"comments"`
	IsDeleted       bool               `json:"isDeleted"`
	LastUpdatedDate *string            `json:"lastUpdatedDate"`
	PublishedDate   *string            `json:"publishedDate"`
}

// NormalizePRStatus maps a user supplied status to a search status; unknown
// values fall back to active.
func NormalizePRStatus(status string) string {
	switch s := strings.ToLower(strings.TrimSpace(status)); s {
	case PRStatusActive, PRStatusCompleted, PRStatusAbandoned, PRStatusAll:
		return s
	default:
		return PRStatusActive
	}
}

// BranchRef qualifies a bare branch name with refs/heads/.
func BranchRef(branch string) string {
	if strings.HasPrefix(branch, "refs/") {
		return branch
	}
	return headsPrefix + branch
}

func requirePullRequest(project, repositoryID string, pullRequestID int) error {
	if err := requireRepo(project, repositoryID); err != nil {
		return err
	}
	if pullRequestID <= 0 {
		return errors.New("valid pull request ID is required")
	}
	return nil
}

func pullRequestSegments(project, repositoryID string, extra ...string) []string {
	return append([]string{project, "_apis", "git", "repositories", repositoryID, "pullrequests"}, extra...)
}

// ListPullRequests lists up to limit pull requests with the given status.
func (c *Client) ListPullRequests(ctx context.Context, project, repositoryID, status string, limit int) ([]PullRequest, error) {
	if err := requireRepo(project, repositoryID); err != nil {
		return nil, err
	}
	query := url.Values{
		"searchCriteria.status": {NormalizePRStatus(status)},
		"maxCommentLength":      {"100"},
		"$skip":                 {"0"},
		"$top":                  {strconv.Itoa(limit)},
	}
	var resp listResponse[wirePullRequest]
	if err := c.get(ctx, &resp, query, pullRequestSegments(project, repositoryID)...); err != nil {
		return nil, err
	}
	prs := make([]PullRequest, 0, len(resp.Value))
	for _, pr := range resp.Value {
		prs = append(prs, pr.summary())
	}
	return prs, nil
}

// GetPullRequest fetches one pull request with commits and work item refs.
func (c *Client) GetPullRequest(ctx context.Context, project, repositoryID string, pullRequestID int) (*PullRequestDetail, error) {
	if err := requirePullRequest(project, repositoryID, pullRequestID); err != nil {
		return nil, err
	}
	query := url.Values{
		"maxCommentLength":    {"1000"},
		"includeCommits":      {"true"},
		"includeWorkItemRefs": {"true"},
	}
	var pr wirePullRequest
	segments := pullRequestSegments(project, repositoryID, strconv.Itoa(pullRequestID))
	if err := c.get(ctx, &pr, query, segments...); err != nil {
		return nil, err
	}
	detail := pr.detail()
	return &detail, nil
}

// CreatePullRequest opens a pull request from SourceBranch into TargetBranch.
func (c *Client) CreatePullRequest(ctx context.Context, project, repositoryID string, in NewPullRequest) (*PullRequestDetail, error) {
	if err := requireRepo(project, repositoryID); err != nil {
		return nil, err
	}
	switch {
	case strings.TrimSpace(in.Title) == "":
		return nil, errors.New("title is required")
	case strings.TrimSpace(in.SourceBranch) == "":
		return nil, errors.New("source branch is required")
	case strings.TrimSpace(in.TargetBranch) == "":
		return nil, errors.New("target branch is required")
	}

	reviewers := make([]map[string]string, 0, len(in.Reviewers))
	for _, reviewer := range in.Reviewers {
		reviewers = append(reviewers, map[string]string{
			"id":          reviewer,
			"displayName": reviewer,
			"uniqueName":  reviewer,
		})
	}
	body := map[string]any{
		"sourceRefName": BranchRef(in.SourceBranch),
		"targetRefName": BranchRef(in.TargetBranch),
		"title":         in.Title,
		"description":   in.Description,
		"reviewers":     reviewers,
	}

	var pr wirePullRequest
	err := c.do(ctx, request{
		method:   http.MethodPost,
		segments: pullRequestSegments(project, repositoryID),
		body:     body,
	}, &pr)
	if err != nil {
		return nil, err
	}
	detail := pr.detail()
	return &detail, nil
}

// GetPullRequestComments lists up to limit comment threads.
func (c *Client) GetPullRequestComments(ctx context.Context, project, repositoryID string, pullRequestID, limit int) ([]Thread, error) {
	if err := requirePullRequest(project, repositoryID, pullRequestID); err != nil {
		return nil, err
	}
	var resp listResponse[wireThread]
	segments := pullRequestSegments(project, repositoryID, strconv.Itoa(pullRequestID), "threads")
	if err := c.get(ctx, &resp, nil, segments...); err != nil {
		return nil, err
	}
	threads := resp.Value
	if limit > 0 && len(threads) > limit {
		threads = threads[:limit]
	}
	out := make([]Thread, 0, len(threads))
	for _, t := range threads {
		out = append(out, t.record())
	}
	return out, nil
}

// UpdatePullRequest applies the non-empty fields of update.
func (c *Client) UpdatePullRequest(ctx context.Context, project, repositoryID string, pullRequestID int, update PullRequestUpdate) (*PullRequestDetail, error) {
	if err := requirePullRequest(project, repositoryID, pullRequestID); err != nil {
		return nil, err
	}
	if update.Status != "" {
		switch s := strings.ToLower(update.Status); s {
		case PRStatusActive, PRStatusCompleted, PRStatusAbandoned:
			update.Status = s
		}
	}
	if update == (PullRequestUpdate{}) {
		return nil, errors.New("at least one field to update is required")
	}

	var pr wirePullRequest
	err := c.do(ctx, request{
		method:   http.MethodPatch,
		segments: pullRequestSegments(project, repositoryID, strconv.Itoa(pullRequestID)),
		body:     update,
	}, &pr)
	if err != nil {
		return nil, err
	}
	detail := pr.detail()
	return &detail, nil
}

func (w *wireIdentity) identity() *IdentityRef {
	if w == nil {
		return nil
	}
	return &IdentityRef{DisplayName: w.DisplayName, UniqueName: w.UniqueName, ID: w.ID}
}

func (w *wireCommitRef) ref() *CommitRef {
	if w == nil {
		return nil
	}
	return &CommitRef{CommitID: w.CommitID}
}

func (w wirePullRequest) summary() PullRequest {
	return PullRequest{
		PullRequestID: w.PullRequestID,
		Title:         w.Title,
		Description:   w.Description,
		Status:        w.Status,
		CreationDate:  w.CreationDate,
		SourceRefName: w.SourceRefName,
		TargetRefName: w.TargetRefName,
		CreatedBy:     w.CreatedBy.identity(),
		Repository:    w.Repository,
		URL:           w.URL,
		IsDraft:       w.IsDraft,
	}
}

func (w wirePullRequest) detail() PullRequestDetail {
	reviewers := make([]Reviewer, 0, len(w.Reviewers))
	for _, r := range w.Reviewers {
		reviewers = append(reviewers, Reviewer(r))
	}
	refs := w.WorkItemRefs
	if refs == nil {
		refs = []ResourceRef{}
	}
	return PullRequestDetail{
		PullRequest:           w.summary(),
		ClosedDate:            w.ClosedDate,
		MergeStatus:           w.MergeStatus,
		MergeID:               w.MergeID,
		LastMergeSourceCommit: w.LastMergeSourceCommit.ref(),
		LastMergeTargetCommit: w.LastMergeTargetCommit.ref(),
		Reviewers:             reviewers,
		WorkItemRefs:          refs,
	}
}

func (w wireThread) record() Thread {
	t := Thread{
		ID:              w.ID,
		Status:          w.Status,
		Comments:        make([]Comment, 0, len(w.Comments)),
		IsDeleted:       w.IsDeleted,
		LastUpdatedDate: w.LastUpdatedDate,
		PublishedDate:   w.PublishedDate,
	}
	if w.ThreadContext != nil {
		tc := ThreadContext(*w.ThreadContext)
		t.ThreadContext = &tc
	}
	for _, cm := range w.Comments {
		t.Comments = append(t.Comments, Comment{
			ID:              cm.ID,
			Content:         cm.Content,
			PublishedDate:   cm.PublishedDate,
			LastUpdatedDate: cm.LastUpdatedDate,
			Author:          cm.Author.identity(),
			CommentType:     cm.CommentType,
		})
	}
	return t
}

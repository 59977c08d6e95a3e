package ado

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"
)

// GroupGitRepositories is the operation group for Git repository browsing.
const GroupGitRepositories = "AzureDevOpsGitRepositories"

// DefaultBranch is used when a tool call names no branch.
const DefaultBranch = "main"

const headsPrefix = "refs/heads/"

// ProjectRef identifies the project a repository belongs to.
type ProjectRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Repository is a flattened Git repository.
type Repository struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	URL           *string     `json:"url"`
	SSHURL        *string     `json:"ssh_url"`
	WebURL        *string     `json:"web_url"`
	DefaultBranch *string     `json:"default_branch"`
	Size          *int64      `json:"size"`
	IsFork        *bool       `json:"is_fork"`
	Project       *ProjectRef `json:"project"`
}

// Branch is a head ref with the refs/heads/ prefix removed.
type Branch struct {
	Name     string  `json:"name"`
	ObjectID string  `json:"object_id"`
	URL      *string `json:"url"`
	IsLocked bool    `json:"is_locked"`
}

// Signature is a commit author or committer.
type Signature struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
	Date  *string `json:"date"`
}

// Commit is a flattened commit reference.
type Commit struct {
	CommitID  *string    `json:"commit_id"`
	Author    *Signature `json:"author"`
	Committer *Signature `json:"committer"`
	Comment   *string    `json:"comment"`
	URL       *string    `json:"url"`
	RemoteURL *string    `json:"remote_url"`
}

// ContentMetadata describes file content returned by get_file_content.
type ContentMetadata struct {
	Encoding    *int    `json:"encoding"`
	ContentType *string `json:"content_type"`
	FileName    *string `json:"file_name"`
	IsBinary    bool    `json:"is_binary"`
	IsImage     bool    `json:"is_image"`
	VSLink      *string `json:"vs_link"`
}

// FileContent is a single item with its content.
type FileContent struct {
	ObjectID        string           `json:"object_id"`
	Path            string           `json:"path"`
	Content         *string          `json:"content"`
	ContentMetadata *ContentMetadata `json:"content_metadata"`
	URL             *string          `json:"url"`
	IsFolder        bool             `json:"is_folder"`
	Size            *int64           `json:"size"`
}

// Item is one entry of a directory listing.
type Item struct {
	ObjectID      string  `json:"object_id"`
	Path          string  `json:"path"`
	IsFolder      bool    `json:"is_folder"`
	Size          *int64  `json:"size"`
	URL           *string `json:"url"`
	GitObjectType *string `json:"git_object_type"`
}

type wireRepository struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	URL           *string     `json:"url"`
	SSHURL        *string     `json:"sshUrl"`
	WebURL        *string     `json:"webUrl"`
	DefaultBranch *string     `json:"defaultBranch"`
	Size          *int64      `json:"size"`
	IsFork        *bool       `json:"isFork"`
	Project       *ProjectRef `json:"project"`
}

type wireRef struct {
	Name     string  `json:"name"`
	ObjectID string  `json:"objectId"`
	URL      *string `json:"url"`
	IsLocked bool    `json:"isLocked"`
}

type wireCommit struct {
	CommitID  *string    `json:"commitId"`
	Author    *Signature `json:"author"`
	Committer *Signature `json:"committer"`
	Comment   *string    `json:"comment"`
	URL       *string    `json:"url"`
	RemoteURL *string    `json:"remoteUrl"`
}

type wireContentMetadata struct {
	Encoding    *int    `json:"encoding"`
	ContentType *string `json:"contentType"`
	FileName    *string `json:"fileName"`
	IsBinary    bool    `json:"isBinary"`
	IsImage     bool    `json:"isImage"`
	VSLink      *string `json:"vsLink"`
}

type wireItem struct {
	ObjectID        string               `json:"objectId"`
	Path            string               `json:"path"`
	Content         *string              `json:"content"`
	ContentMetadata *wireContentMetadata `json:"contentMetadata"`
	URL             *string              `json:"url"`
	IsFolder        bool                 `json:"isFolder"`
	Size            *int64               `json:"size"`
	GitObjectType   *string              `json:"gitObjectType"`
}

func requireRepo(project, repositoryID string) error {
	if strings.TrimSpace(project) == "" {
		return errors.New("project name is required")
	}
	if strings.TrimSpace(repositoryID) == "" {
		return errors.New("repository ID or name is required")
	}
	return nil
}

func branchOrDefault(branch string) string {
	if strings.TrimSpace(branch) == "" {
		return DefaultBranch
	}
	return branch
}

// ListRepositories lists the Git repositories of project.
func (c *Client) ListRepositories(ctx context.Context, project string) ([]Repository, error) {
	if strings.TrimSpace(project) == "" {
		return nil, errors.New("project name is required")
	}
	var resp listResponse[wireRepository]
	if err := c.get(ctx, &resp, nil, project, "_apis", "git", "repositories"); err != nil {
		return nil, err
	}
	repos := make([]Repository, 0, len(resp.Value))
	for _, r := range resp.Value {
		repos = append(repos, Repository(r))
	}
	return repos, nil
}

// GetRepository fetches one repository by id or name.
func (c *Client) GetRepository(ctx context.Context, project, repositoryID string) (*Repository, error) {
	if err := requireRepo(project, repositoryID); err != nil {
		return nil, err
	}
	var r wireRepository
	if err := c.get(ctx, &r, nil, project, "_apis", "git", "repositories", repositoryID); err != nil {
		return nil, err
	}
	repo := Repository(r)
	return &repo, nil
}

// ListBranches lists up to limit branch heads. Limit must already be clamped.
func (c *Client) ListBranches(ctx context.Context, project, repositoryID string, limit int) ([]Branch, error) {
	if err := requireRepo(project, repositoryID); err != nil {
		return nil, err
	}
	var resp listResponse[wireRef]
	query := url.Values{"filter": {"heads/"}}
	if err := c.get(ctx, &resp, query, project, "_apis", "git", "repositories", repositoryID, "refs"); err != nil {
		return nil, err
	}
	refs := resp.Value
	if limit > 0 && len(refs) > limit {
		refs = refs[:limit]
	}
	branches := make([]Branch, 0, len(refs))
	for _, ref := range refs {
		branches = append(branches, Branch{
			Name:     strings.TrimPrefix(ref.Name, headsPrefix),
			ObjectID: ref.ObjectID,
			URL:      ref.URL,
			IsLocked: ref.IsLocked,
		})
	}
	return branches, nil
}

// GetCommits lists up to limit commits reachable from branch.
func (c *Client) GetCommits(ctx context.Context, project, repositoryID, branch string, limit int) ([]Commit, error) {
	if err := requireRepo(project, repositoryID); err != nil {
		return nil, err
	}
	query := url.Values{
		"searchCriteria.itemVersion.version":     {branchOrDefault(branch)},
		"searchCriteria.itemVersion.versionType": {"branch"},
		"searchCriteria.$top":                    {strconv.Itoa(limit)},
	}
	var resp listResponse[wireCommit]
	if err := c.get(ctx, &resp, query, project, "_apis", "git", "repositories", repositoryID, "commits"); err != nil {
		return nil, err
	}
	commits := make([]Commit, 0, len(resp.Value))
	for _, cm := range resp.Value {
		commits = append(commits, Commit(cm))
	}
	return commits, nil
}

// GetFileContent fetches path at branch with its content.
func (c *Client) GetFileContent(ctx context.Context, project, repositoryID, path, branch string) (*FileContent, error) {
	if err := requireRepo(project, repositoryID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("file path is required")
	}
	query := url.Values{
		"path":                          {path},
		"includeContent":                {"true"},
		"includeContentMetadata":        {"true"},
		"versionDescriptor.version":     {branchOrDefault(branch)},
		"versionDescriptor.versionType": {"branch"},
	}
	var item wireItem
	if err := c.get(ctx, &item, query, project, "_apis", "git", "repositories", repositoryID, "items"); err != nil {
		return nil, err
	}
	file := &FileContent{
		ObjectID: item.ObjectID,
		Path:     item.Path,
		Content:  item.Content,
		URL:      item.URL,
		IsFolder: item.IsFolder,
		Size:     item.Size,
	}
	if item.ContentMetadata != nil {
		meta := ContentMetadata(*item.ContentMetadata)
		file.ContentMetadata = &meta
	}
	return file, nil
}

// ListItems lists the direct children of path at branch, excluding path itself.
func (c *Client) ListItems(ctx context.Context, project, repositoryID, path, branch string, limit int) ([]Item, error) {
	if err := requireRepo(project, repositoryID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(path) == "" {
		path = "/"
	}
	query := url.Values{
		"scopePath":                     {path},
		"recursionLevel":                {"OneLevel"},
		"versionDescriptor.version":     {branchOrDefault(branch)},
		"versionDescriptor.versionType": {"branch"},
	}
	var resp listResponse[wireItem]
	if err := c.get(ctx, &resp, query, project, "_apis", "git", "repositories", repositoryID, "items"); err != nil {
		return nil, err
	}
	items := make([]Item, 0, len(resp.Value))
	for _, it := range resp.Value {
		if it.Path == path {
			continue
		}
		if limit > 0 && len(items) >= limit {
			break
		}
		items = append(items, Item{
			ObjectID:      it.ObjectID,
			Path:          it.Path,
			IsFolder:      it.IsFolder,
			Size:          it.Size,
			URL:           it.URL,
			GitObjectType: it.GitObjectType,
		})
	}
	return items, nil
}

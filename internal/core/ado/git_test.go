package ado

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListBranchesStripsPrefix(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/DefaultCollection/Fabrikam/_apis/git/repositories/app/refs", r.URL.Path)
		assert.Equal(t, "heads/", r.URL.Query().Get("filter"))
		writeJSON(w, http.StatusOK, `{"count":3,"value":[
			{"name":"refs/heads/main","objectId":"a1"},
			{"name":"refs/heads/feature/x","objectId":"b2","isLocked":true},
			{"name":"refs/heads/dev","objectId":"c3"}]}`)
	})

	branches, err := client.ListBranches(context.Background(), "Fabrikam", "app", 2)
	require.NoError(t, err)
	require.Len(t, branches, 2)
	assert.Equal(t, "main", branches[0].Name)
	assert.Equal(t, "feature/x", branches[1].Name)
	assert.True(t, branches[1].IsLocked)
}

func TestGetCommitsQuery(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "main", q.Get("searchCriteria.itemVersion.version"))
		assert.Equal(t, "branch", q.Get("searchCriteria.itemVersion.versionType"))
		assert.Equal(t, "10", q.Get("searchCriteria.$top"))
		writeJSON(w, http.StatusOK, `{"count":1,"value":[{"commitId":"abc","comment":"fix","author":{"name":"Dev","email":"dev@example.com","date":"2025-01-01T00:00:00Z"}}]}`)
	})

	commits, err := client.GetCommits(context.Background(), "Fabrikam", "app", "", 10)
	require.NoError(t, err)
	require.Len(t, commits, 1)
	require.NotNil(t, commits[0].CommitID)
	assert.Equal(t, "abc", *commits[0].CommitID)
	require.NotNil(t, commits[0].Author)
	assert.Equal(t, "dev@example.com", *commits[0].Author.Email)
	assert.Nil(t, commits[0].Committer)
}

func TestGetFileContent(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/README.md", q.Get("path"))
		assert.Equal(t, "true", q.Get("includeContent"))
		assert.Equal(t, "release", q.Get("versionDescriptor.version"))
		writeJSON(w, http.StatusOK, `{"objectId":"o1","path":"/README.md","content":"# Hello","contentMetadata":{"fileName":"README.md","isBinary":false}}`)
	})

	file, err := client.GetFileContent(context.Background(), "Fabrikam", "app", "/README.md", "release")
	require.NoError(t, err)
	require.NotNil(t, file.Content)
	assert.Equal(t, "# Hello", *file.Content)
	require.NotNil(t, file.ContentMetadata)
	assert.Equal(t, "README.md", *file.ContentMetadata.FileName)

	_, err = client.GetFileContent(context.Background(), "Fabrikam", "app", "", "main")
	require.EqualError(t, err, "file path is required")
}

func TestListItemsExcludesScopePath(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/src", q.Get("scopePath"))
		assert.Equal(t, "OneLevel", q.Get("recursionLevel"))
		writeJSON(w, http.StatusOK, `{"count":4,"value":[
			{"objectId":"0","path":"/src","isFolder":true},
			{"objectId":"1","path":"/src/a.go","gitObjectType":"blob"},
			{"objectId":"2","path":"/src/b.go"},
			{"objectId":"3","path":"/src/pkg","isFolder":true}]}`)
	})

	items, err := client.ListItems(context.Background(), "Fabrikam", "app", "/src", "main", 2)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "/src/a.go", items[0].Path)
	assert.Equal(t, "/src/b.go", items[1].Path)
}

func TestRepositoryValidation(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s", r.URL.Path)
	})

	_, err := client.ListRepositories(context.Background(), "")
	require.EqualError(t, err, "project name is required")
	_, err = client.GetRepository(context.Background(), "Fabrikam", "")
	require.EqualError(t, err, "repository ID or name is required")
}

func TestListRepositories(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/DefaultCollection/Fabrikam/_apis/git/repositories", r.URL.Path)
		writeJSON(w, http.StatusOK, `{"count":1,"value":[{"id":"r1","name":"app","defaultBranch":"refs/heads/main","sshUrl":"ssh://x","project":{"id":"p1","name":"Fabrikam"}}]}`)
	})

	repos, err := client.ListRepositories(context.Background(), "Fabrikam")
	require.NoError(t, err)
	require.Len(t, repos, 1)
	assert.Equal(t, "refs/heads/main", *repos[0].DefaultBranch)
	assert.Equal(t, "Fabrikam", repos[0].Project.Name)
	assert.Nil(t, repos[0].IsFork)
}

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ravio1i/azure-devops-server-mcp/internal/core/guard"
	apperrors "github.com/Ravio1i/azure-devops-server-mcp/internal/errors"
	"github.com/Ravio1i/azure-devops-server-mcp/internal/tools"
)

// fakeRunner guards a single echo tool with a private limiter.
type fakeRunner struct {
	limiter *guard.RateLimiter
	policy  guard.Policy
	backend guard.Handler[any]
}

func newFakeRunner(policy guard.Policy, backend guard.Handler[any]) *fakeRunner {
	if backend == nil {
		backend = func(_ context.Context, args guard.Args) (any, error) {
			return map[string]any{"echo": args["project"]}, nil
		}
	}
	return &fakeRunner{
		limiter: guard.NewRateLimiter(time.Now),
		policy:  policy,
		backend: backend,
	}
}

func (f *fakeRunner) Call(ctx context.Context, name string, args guard.Args) (any, error) {
	if name != "get_work_item" {
		return nil, tools.ErrUnknownTool
	}
	g := guard.New(guard.WithLimiter(f.limiter))
	op := guard.Operation{Name: name, Group: "WorkItems"}
	return guard.Wrap(g, op, f.policy, f.backend)(ctx, args)
}

func (f *fakeRunner) Describe() []tools.Info {
	return []tools.Info{{Name: "get_work_item", Group: "WorkItems", Policy: f.policy}}
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) apperrors.HTTPErrorResponse {
	t.Helper()
	var body apperrors.HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func serve(srv *Server, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestServerUsesStandardErrorHandlers(t *testing.T) {
	srv := New(Options{Host: "127.0.0.1"})

	rec := serve(srv, http.MethodGet, "/does-not-exist", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, apperrors.CodeNotFound, decodeError(t, rec).Error.Code)

	rec = serve(srv, http.MethodDelete, "/api/ratelimits", "")
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, apperrors.CodeMethodNotAllowed, decodeError(t, rec).Error.Code)
}

func TestToolRoutesRequireRunner(t *testing.T) {
	srv := New(Options{})

	rec := serve(srv, http.MethodGet, "/api/tools", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMCPHandlerMounted(t *testing.T) {
	mcp := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
	srv := New(Options{MCP: mcp})

	rec := serve(srv, http.MethodPost, "/mcp", `{"jsonrpc":"2.0"}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestCallTool(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		srv := New(Options{Tools: newFakeRunner(guard.Policy{QuotaPerMinute: 10, MaxPayloadMB: 1}, nil)})

		rec := serve(srv, http.MethodPost, "/api/tools/get_work_item", `{"project":"Fabrikam"}`)
		require.Equal(t, http.StatusOK, rec.Code)

		var body map[string]any
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, "Fabrikam", body["echo"])
	})

	t.Run("EmptyBody", func(t *testing.T) {
		srv := New(Options{Tools: newFakeRunner(guard.Policy{}, nil)})

		rec := serve(srv, http.MethodPost, "/api/tools/get_work_item", "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("RateLimited", func(t *testing.T) {
		srv := New(Options{Tools: newFakeRunner(guard.Policy{QuotaPerMinute: 1}, nil)})

		first := serve(srv, http.MethodPost, "/api/tools/get_work_item", `{}`)
		require.Equal(t, http.StatusOK, first.Code)

		second := serve(srv, http.MethodPost, "/api/tools/get_work_item", `{}`)
		require.Equal(t, http.StatusTooManyRequests, second.Code)
		assert.Equal(t, apperrors.CodeRateLimited, decodeError(t, second).Error.Code)
	})

	t.Run("PayloadTooLarge", func(t *testing.T) {
		srv := New(Options{Tools: newFakeRunner(guard.Policy{MaxPayloadMB: 0.000001}, nil)})

		rec := serve(srv, http.MethodPost, "/api/tools/get_work_item", `{"description":"`+strings.Repeat("x", 64)+`"}`)
		require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		assert.Equal(t, apperrors.CodePayloadTooLarge, decodeError(t, rec).Error.Code)
	})

	t.Run("BodyOverRequestCap", func(t *testing.T) {
		srv := New(Options{
			Tools:           newFakeRunner(guard.Policy{MaxPayloadMB: 32}, nil),
			MaxRequestBytes: 128,
		})

		rec := serve(srv, http.MethodPost, "/api/tools/get_work_item", `{"description":"`+strings.Repeat("x", 256)+`"}`)
		require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		resp := decodeError(t, rec)
		assert.Equal(t, apperrors.CodePayloadTooLarge, resp.Error.Code)
		assert.Contains(t, resp.Error.Message, "exceeds 128 bytes")
	})

	t.Run("UnknownTool", func(t *testing.T) {
		srv := New(Options{Tools: newFakeRunner(guard.Policy{}, nil)})

		rec := serve(srv, http.MethodPost, "/api/tools/drop_database", `{}`)
		require.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, decodeError(t, rec).Error.Message, "drop_database")
	})

	t.Run("InvalidBody", func(t *testing.T) {
		srv := New(Options{Tools: newFakeRunner(guard.Policy{}, nil)})

		rec := serve(srv, http.MethodPost, "/api/tools/get_work_item", `[1,2,3]`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, apperrors.CodeInvalidInput, decodeError(t, rec).Error.Code)
	})
}

func TestRequestCapFor(t *testing.T) {
	assert.Equal(t, int64(DefaultMaxRequestBytes), RequestCapFor(nil))
	assert.Equal(t, int64(DefaultMaxRequestBytes), RequestCapFor([]tools.Info{{Policy: guard.Policy{MaxPayloadMB: 1}}}))
	assert.Equal(t, int64(65<<20), RequestCapFor([]tools.Info{
		{Policy: guard.Policy{MaxPayloadMB: 4}},
		{Policy: guard.Policy{MaxPayloadMB: 32}},
	}))
}

func TestListTools(t *testing.T) {
	srv := New(Options{Tools: newFakeRunner(guard.Policy{QuotaPerMinute: 5}, nil)})

	rec := serve(srv, http.MethodGet, "/api/tools", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var infos []tools.Info
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&infos))
	require.Len(t, infos, 1)
	assert.Equal(t, "get_work_item", infos[0].Name)
	assert.Equal(t, 5, infos[0].Policy.QuotaPerMinute)
}

func TestRateLimitsEndpoint(t *testing.T) {
	runner := newFakeRunner(guard.Policy{QuotaPerMinute: 3}, nil)
	srv := New(Options{Tools: runner, Limiter: runner.limiter})

	require.Equal(t, http.StatusOK, serve(srv, http.MethodPost, "/api/tools/get_work_item", `{}`).Code)

	rec := serve(srv, http.MethodGet, "/api/ratelimits", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var report RateLimitReport
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&report))
	assert.Equal(t, 60, report.WindowSeconds)
	require.Len(t, report.Operations, 1)

	entry := report.Operations[0]
	assert.Equal(t, "get_work_item", entry.Operation)
	assert.Equal(t, 1, entry.Count)
	assert.Equal(t, 3, entry.Quota)
	assert.Equal(t, 2, entry.Remaining)
	require.NotNil(t, entry.ResetAt)
	assert.Equal(t, entry.Oldest.Add(guard.Window), *entry.ResetAt)
}

func TestBuildRateLimitReport(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	limiter := guard.NewRateLimiter(func() time.Time { return now })
	require.NoError(t, limiter.Admit("list_pull_requests", 10))

	report := BuildRateLimitReport(limiter, []tools.Info{
		{Name: "get_work_item", Policy: guard.Policy{QuotaPerMinute: 60}},
		{Name: "create_work_item", Policy: guard.Policy{QuotaPerMinute: -1}},
	})

	require.Len(t, report.Operations, 3)

	idle := report.Operations[0]
	assert.Equal(t, 0, idle.Count)
	assert.Equal(t, 60, idle.Remaining)
	assert.Nil(t, idle.Oldest)

	assert.Equal(t, -1, report.Operations[1].Remaining)

	untracked := report.Operations[2]
	assert.Equal(t, "list_pull_requests", untracked.Operation)
	assert.Equal(t, 1, untracked.Count)
	assert.Equal(t, -1, untracked.Remaining)
	require.NotNil(t, untracked.Oldest)
	assert.Equal(t, now, *untracked.Oldest)
}

func TestShutdownWithoutStart(t *testing.T) {
	srv := New(Options{Port: 8080})
	assert.NoError(t, srv.Shutdown(context.Background()))
	assert.Equal(t, 8080, srv.Port())
}

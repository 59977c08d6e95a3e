package integration

import (
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"syscall"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Ravio1i/azure-devops-server-mcp/internal/core/ado"
	"github.com/Ravio1i/azure-devops-server-mcp/internal/core/guard"
	"github.com/Ravio1i/azure-devops-server-mcp/internal/metrics"
	"github.com/Ravio1i/azure-devops-server-mcp/internal/observability"
	"github.com/Ravio1i/azure-devops-server-mcp/internal/server"
	"github.com/Ravio1i/azure-devops-server-mcp/internal/tools"

	mcpserver "github.com/mark3labs/mcp-go/server"
)

// cleanupMetrics tears down global telemetry state so each test starts clean.
// This matters in sandboxes where lingering exporters can block future binds.
func cleanupMetrics(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		if observability.PrometheusExporter != nil {
			_ = observability.PrometheusExporter.Stop()
			observability.PrometheusExporter = nil
		}
		observability.TelemetrySystem = nil
	})
}

// isPermissionError normalizes OS-specific permission errors (macOS/Linux/BSD)
// so we can gracefully skip when loopback sockets are blocked.
func isPermissionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, os.ErrPermission) || errors.Is(err, syscall.EACCES) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, fragment := range []string{"permission denied", "operation not permitted", "not permitted"} {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}

// initMetricsOrSkip attempts to start the metrics exporter; if the environment
// forbids network binds we skip instead of failing the entire suite.
func initMetricsOrSkip(t *testing.T) {
	t.Helper()
	if err := observability.InitMetrics("test", 0); err != nil {
		if isPermissionError(err) {
			t.Skipf("skipping metrics tests due to sandbox permissions: %v", err)
		}
		require.NoError(t, err)
	}
	cleanupMetrics(t)
}

// listen binds IPv4 loopback explicitly and skips when the sandbox refuses
// to open sockets.
func listen(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()
	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		if isPermissionError(err) {
			t.Skipf("skipping server setup: %v", err)
		}
		require.NoError(t, err)
	}

	ts := &httptest.Server{
		Listener: listener,
		Config:   &http.Server{Handler: handler},
	}
	ts.Start()
	t.Cleanup(ts.Close)
	return ts
}

// fakeCollection answers the Azure DevOps REST calls used by the tests.
func fakeCollection(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/DefaultCollection/_apis/projects":
		_, _ = w.Write([]byte(`{"count":2,"value":[{"id":"p1","name":"Fabrikam"},{"id":"p2","name":"Contoso"}]}`))
	case "/DefaultCollection/_apis/projects/Fabrikam":
		_, _ = w.Write([]byte(`{"id":"p1","name":"Fabrikam","state":"wellFormed"}`))
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"TF200016: The following project does not exist.","typeKey":"ProjectDoesNotExistWithNameException"}`))
	}
}

type stack struct {
	ts       *httptest.Server
	limiter  *guard.RateLimiter
	registry *tools.Registry
}

// newStack wires the fake collection, a guarded registry and the HTTP server
// the way serve does for the http transport.
func newStack(t *testing.T, policies tools.PolicySet) stack {
	t.Helper()

	backend := listen(t, http.HandlerFunc(fakeCollection))
	client, err := ado.NewClient(ado.Config{ServerURL: backend.URL, Token: "pat", Collection: "DefaultCollection"})
	require.NoError(t, err)
	client.OnRequest = func(info ado.RequestInfo) {
		metrics.RecordBackendRequest(info.Area, info.Method, info.Status, info.Duration)
	}

	limiter := guard.NewRateLimiter(nil)
	g := guard.New(guard.WithLimiter(limiter), guard.WithObserver(metrics.GuardObserver{}))
	registry := tools.NewRegistry(client, g, policies)

	srv := server.New(server.Options{
		MCP:     mcpserver.NewStreamableHTTPServer(tools.NewServer("test", registry)),
		Tools:   registry,
		Limiter: limiter,
	})
	return stack{ts: listen(t, srv.Handler()), limiter: limiter, registry: registry}
}

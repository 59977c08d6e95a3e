package metrics

import (
	"strconv"
	"time"

	"github.com/Ravio1i/azure-devops-server-mcp/internal/core/guard"
	"github.com/Ravio1i/azure-devops-server-mcp/internal/observability"
)

// Application-level metrics following Prometheus conventions
const (
	// Tool call metrics
	ToolCallsTotal = "tool_calls_total"

	// Guard decision metrics
	GuardRejectionsTotal = "guard_rejections_total"
	GuardFailuresTotal   = "guard_failures_total"

	// Backend transport metrics
	BackendRequestsTotal   = "backend_requests_total"
	BackendRequestDuration = "backend_request_duration_ms"

	// Server lifecycle metrics
	ServerStartTime = "app_server_start_time_seconds"
)

// RecordToolCall records one MCP tool invocation with its outcome
func RecordToolCall(tool string, success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	count(ToolCallsTotal, map[string]string{"tool": tool, "status": status})
}

// RecordGuardRejection records a call refused before reaching the backend
func RecordGuardRejection(operation string, kind guard.Kind) {
	count(GuardRejectionsTotal, map[string]string{"operation": operation, "kind": string(kind)})
}

// RecordGuardFailure records a backend failure after normalization
func RecordGuardFailure(operation string, kind guard.Kind) {
	count(GuardFailuresTotal, map[string]string{"operation": operation, "kind": string(kind)})
}

// RecordBackendRequest records one HTTP exchange with Azure DevOps.
// A zero status means the request never got a response.
func RecordBackendRequest(area, method string, status int, duration time.Duration) {
	if observability.TelemetrySystem == nil {
		return
	}
	statusLabel := "error"
	if status > 0 {
		statusLabel = strconv.Itoa(status)
	}
	count(BackendRequestsTotal, map[string]string{
		"area":   area,
		"method": method,
		"status": statusLabel,
	})
	_ = observability.TelemetrySystem.Histogram(
		BackendRequestDuration,
		duration,
		map[string]string{
			"area": area,
		},
	)
}

// SetServerStartTime records the server start time (Unix timestamp)
func SetServerStartTime(timestamp int64) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(
			ServerStartTime,
			float64(timestamp),
			nil,
		)
	}
}

// GuardObserver forwards guard decisions to telemetry.
type GuardObserver struct{}

// Rejected implements guard.Observer.
func (GuardObserver) Rejected(op guard.Operation, failure *guard.Failure) {
	RecordGuardRejection(op.Name, failure.Kind)
}

// Normalized implements guard.Observer.
func (GuardObserver) Normalized(op guard.Operation, failure *guard.Failure) {
	RecordGuardFailure(op.Name, failure.Kind)
}

// count is a no-op until telemetry is initialized.
func count(name string, labels map[string]string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(name, 1, labels)
	}
}

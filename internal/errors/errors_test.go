package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ravio1i/azure-devops-server-mcp/internal/core/guard"
	"github.com/Ravio1i/azure-devops-server-mcp/internal/server/middleware"
)

func TestFromGuardFailure(t *testing.T) {
	tests := []struct {
		name    string
		failure *guard.Failure
		code    string
		status  int
		context map[string]interface{}
	}{
		{
			name:    "RateLimited",
			failure: &guard.Failure{Kind: guard.KindRateLimited, Operation: "get_work_item", Quota: 60, Message: "Rate limit exceeded"},
			code:    CodeRateLimited,
			status:  http.StatusTooManyRequests,
			context: map[string]interface{}{"operation": "get_work_item", "quota_per_minute": 60},
		},
		{
			name:    "PayloadTooLarge",
			failure: &guard.Failure{Kind: guard.KindPayloadTooLarge, Operation: "create_work_item", Argument: "description", MaxPayloadMB: 1, Message: "Payload too large"},
			code:    CodePayloadTooLarge,
			status:  http.StatusRequestEntityTooLarge,
			context: map[string]interface{}{"argument": "description", "max_payload_mb": 1.0},
		},
		{
			name:    "BackendReported",
			failure: &guard.Failure{Kind: guard.KindBackendReported, Operation: "get_team_project", Message: "Failed to get team project"},
			code:    CodeExternalService,
			status:  http.StatusBadGateway,
			context: map[string]interface{}{"kind": "backend_reported"},
		},
		{
			name:    "Unexpected",
			failure: &guard.Failure{Kind: guard.KindUnexpected, Operation: "list_items", Message: "Unexpected error in list items"},
			code:    CodeInternal,
			status:  http.StatusInternalServerError,
			context: map[string]interface{}{"kind": "unexpected"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			envelope := FromGuardFailure(context.Background(), tt.failure)
			require.NotNil(t, envelope)

			assert.Equal(t, tt.code, envelope.Code)
			assert.Equal(t, tt.failure.Message, envelope.Message)
			assert.Equal(t, tt.status, HTTPStatusFromEnvelope(envelope))
			assert.NotEmpty(t, envelope.CorrelationID)
			for key, want := range tt.context {
				assert.Equal(t, want, envelope.Context[key], key)
			}
		})
	}
}

func TestFromGuardFailureUsesRequestID(t *testing.T) {
	var correlationID string
	handler := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		correlationID = FromGuardFailure(r.Context(), &guard.Failure{Kind: guard.KindRateLimited}).CorrelationID
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(middleware.RequestIDHeader, "req-123")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "req-123", correlationID)
}

func TestFromGuardFailureWithPlainError(t *testing.T) {
	envelope := FromGuardFailure(context.Background(), stderrors.New("boom"))
	assert.Equal(t, CodeInternal, envelope.Code)
	assert.Equal(t, "boom", envelope.Context["wrapped_error"])
}

func TestEnsureEnvelope(t *testing.T) {
	assert.Equal(t, CodeInternal, EnsureEnvelope(nil).Code)

	original := NewNotFoundError("missing")
	assert.Same(t, original, EnsureEnvelope(original))

	wrapped := EnsureEnvelope(&guard.Failure{Kind: guard.KindPayloadTooLarge, Message: "too big"})
	assert.Equal(t, CodePayloadTooLarge, wrapped.Code)

	plain := EnsureEnvelope(stderrors.New("disk full"))
	assert.Equal(t, CodeInternal, plain.Code)
	assert.Equal(t, "disk full", plain.Context["wrapped_error"])
}

func TestRespondWithError(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/tools/get_work_item", nil)
	rec := httptest.NewRecorder()

	RespondWithError(rec, req, &guard.Failure{Kind: guard.KindRateLimited, Operation: "get_work_item", Quota: 1, Message: "Rate limit exceeded"})

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	var body HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, CodeRateLimited, body.Error.Code)
	assert.Equal(t, "get_work_item", body.Error.Details["operation"])
}

func TestCodeForKind(t *testing.T) {
	assert.Equal(t, CodeInternal, CodeForKind(""))
	assert.Equal(t, CodeRateLimited, CodeForKind(guard.KindRateLimited))
}

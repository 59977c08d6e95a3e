package ado

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ServiceError is the structured error body Azure DevOps returns for failed
// API calls. It is reported to the guard as a backend-reported failure.
type ServiceError struct {
	StatusCode int    `json:"-"`
	Message    string `json:"message"`
	TypeName   string `json:"typeName"`
	TypeKey    string `json:"typeKey"`
	ErrorCode  int    `json:"errorCode"`
	EventID    int    `json:"eventId"`
}

func (e *ServiceError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// BackendReported marks ServiceError as the backend's own structured error.
func (e *ServiceError) BackendReported() bool { return true }

// HTTPError is a failed response without a structured error body, such as an
// authentication challenge or a proxy error page.
type HTTPError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPError) Error() string {
	if e == nil {
		return ""
	}
	if e.Body == "" {
		return fmt.Sprintf("azure devops request failed: %s", e.Status)
	}
	return fmt.Sprintf("azure devops request failed: %s: %s", e.Status, e.Body)
}

// StatusCode extracts the HTTP status of a backend error, or 0.
func StatusCode(err error) int {
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr.StatusCode
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	return 0
}

func parseErrorResponse(resp *http.Response, payload []byte) error {
	var serviceErr ServiceError
	if err := json.Unmarshal(payload, &serviceErr); err == nil && strings.TrimSpace(serviceErr.Message) != "" {
		serviceErr.StatusCode = resp.StatusCode
		return &serviceErr
	}

	body := strings.TrimSpace(string(payload))
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	if strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		body = ""
	}
	return &HTTPError{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       body,
	}
}

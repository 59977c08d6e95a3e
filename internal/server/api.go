package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Ravio1i/azure-devops-server-mcp/internal/core/guard"
	apperrors "github.com/Ravio1i/azure-devops-server-mcp/internal/errors"
	"github.com/Ravio1i/azure-devops-server-mcp/internal/tools"
)

// DefaultMaxRequestBytes caps /api/tools bodies when Options.MaxRequestBytes is zero.
const DefaultMaxRequestBytes = 16 << 20

// RequestCapFor returns the /api/tools body cap for infos: twice the largest
// payload budget plus 1 MiB, never below DefaultMaxRequestBytes.
func RequestCapFor(infos []tools.Info) int64 {
	limit := int64(DefaultMaxRequestBytes)
	for _, info := range infos {
		budget := int64(guard.MaxPayloadBytes(info.Policy.MaxPayloadMB))
		if need := 2*budget + 1<<20; need > limit {
			limit = need
		}
	}
	return limit
}

// RateLimitEntry is one operation's window as reported by /api/ratelimits.
type RateLimitEntry struct {
	Operation string     `json:"operation"`
	Count     int        `json:"count"`
	Quota     int        `json:"quota_per_minute"`
	Remaining int        `json:"remaining"`
	Oldest    *time.Time `json:"oldest,omitempty"`
	ResetAt   *time.Time `json:"reset_at,omitempty"`
}

// RateLimitReport is the /api/ratelimits response body.
type RateLimitReport struct {
	WindowSeconds int              `json:"window_seconds"`
	Operations    []RateLimitEntry `json:"operations"`
}

// BuildRateLimitReport joins limiter state with the configured quotas. Tools
// without calls in the window are listed with a zero count.
func BuildRateLimitReport(limiter *guard.RateLimiter, infos []tools.Info) RateLimitReport {
	report := RateLimitReport{
		WindowSeconds: int(guard.Window / time.Second),
		Operations:    []RateLimitEntry{},
	}

	states := make(map[string]guard.WindowState)
	for _, state := range limiter.Snapshot() {
		states[state.Key] = state
	}

	seen := make(map[string]bool, len(infos))
	for _, info := range infos {
		seen[info.Name] = true
		report.Operations = append(report.Operations, rateLimitEntry(info.Name, info.Policy.QuotaPerMinute, states[info.Name]))
	}
	for _, state := range limiter.Snapshot() {
		if !seen[state.Key] {
			report.Operations = append(report.Operations, rateLimitEntry(state.Key, 0, state))
		}
	}
	return report
}

func rateLimitEntry(name string, quota int, state guard.WindowState) RateLimitEntry {
	entry := RateLimitEntry{Operation: name, Count: state.Count, Quota: quota, Remaining: -1}
	if quota > 0 {
		entry.Remaining = max(quota-state.Count, 0)
	}
	if state.Count > 0 {
		oldest := state.Oldest.UTC()
		reset := oldest.Add(guard.Window)
		entry.Oldest = &oldest
		entry.ResetAt = &reset
	}
	return entry
}

func (s *Server) rateLimitsHandler(w http.ResponseWriter, r *http.Request) {
	limiter := s.opts.Limiter
	if limiter == nil {
		limiter = guard.Shared()
	}
	var infos []tools.Info
	if s.opts.Tools != nil {
		infos = s.opts.Tools.Describe()
	}
	writeJSON(w, http.StatusOK, BuildRateLimitReport(limiter, infos))
}

func (s *Server) listToolsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.opts.Tools.Describe())
}

// callToolHandler runs one tool with a JSON object of arguments. Guard
// failures map to 413, 429, 502 or 500 error envelopes.
func (s *Server) callToolHandler(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	args := guard.Args{}
	limit := s.opts.MaxRequestBytes
	if limit <= 0 {
		limit = DefaultMaxRequestBytes
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			HandleError(w, r, apperrors.NewPayloadTooLargeError(name, tooLarge.Limit))
			return
		}
		HandleError(w, r, apperrors.NewInvalidInputError("could not read request body"))
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &args); err != nil {
			HandleError(w, r, apperrors.NewInvalidInputError("request body must be a JSON object of tool arguments"))
			return
		}
	}

	result, err := s.opts.Tools.Call(r.Context(), name, args)
	if err != nil {
		if errors.Is(err, tools.ErrUnknownTool) {
			HandleError(w, r, apperrors.NewNotFoundError("unknown tool "+name))
			return
		}
		HandleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

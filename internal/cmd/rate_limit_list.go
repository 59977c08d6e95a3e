package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	apperrors "github.com/Ravio1i/azure-devops-server-mcp/internal/errors"
	"github.com/Ravio1i/azure-devops-server-mcp/internal/output"
	"github.com/Ravio1i/azure-devops-server-mcp/internal/server"
)

var (
	rateLimitListURL    string
	rateLimitListActive bool
	rateLimitListPrefix string
)

var rateLimitClient = &http.Client{Timeout: 10 * time.Second}

var rateLimitCmd = &cobra.Command{
	Use:   "rate-limit",
	Short: "Inspect the sliding window rate limits of a running server",
}

var rateLimitListCmd = &cobra.Command{
	Use:   "list",
	Short: "List per-tool call counts and remaining quota",
	Long: `List per-tool call counts and remaining quota of a server started with
'serve --transport http'. Counts cover the last 60 seconds.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		report, err := fetchRateLimits(cmd.Context(), rateLimitListURL)
		if err != nil {
			return err
		}
		return render(cmd, output.RateLimitsView(filterRateLimits(report, rateLimitListActive, rateLimitListPrefix)))
	},
}

func fetchRateLimits(ctx context.Context, baseURL string) (server.RateLimitReport, error) {
	var report server.RateLimitReport
	if ctx == nil {
		ctx = context.Background()
	}

	endpoint := strings.TrimRight(strings.TrimSpace(baseURL), "/") + "/api/ratelimits"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return report, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := rateLimitClient.Do(req)
	if err != nil {
		return report, fmt.Errorf("query %s: %w", endpoint, err)
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup

	if resp.StatusCode != http.StatusOK {
		var body apperrors.HTTPErrorResponse
		if json.NewDecoder(resp.Body).Decode(&body) == nil && body.Error.Message != "" {
			return report, fmt.Errorf("query %s: %s (%s)", endpoint, body.Error.Message, body.Error.Code)
		}
		return report, fmt.Errorf("query %s: unexpected status %d", endpoint, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return report, fmt.Errorf("decode rate limit report: %w", err)
	}
	return report, nil
}

func filterRateLimits(report server.RateLimitReport, activeOnly bool, prefix string) server.RateLimitReport {
	prefix = strings.TrimSpace(prefix)
	filtered := report
	filtered.Operations = make([]server.RateLimitEntry, 0, len(report.Operations))
	for _, entry := range report.Operations {
		if activeOnly && entry.Count == 0 {
			continue
		}
		if prefix != "" && !strings.HasPrefix(entry.Operation, prefix) {
			continue
		}
		filtered.Operations = append(filtered.Operations, entry)
	}
	return filtered
}

func init() {
	rateLimitListCmd.Flags().StringVar(&rateLimitListURL, "url", "http://localhost:8080", "Base URL of the running server")
	rateLimitListCmd.Flags().BoolVar(&rateLimitListActive, "active", false, "Only operations with calls in the current window")
	rateLimitListCmd.Flags().StringVar(&rateLimitListPrefix, "prefix", "", "Only operations whose name starts with prefix")
	addOutputFlags(rateLimitListCmd)

	rateLimitCmd.AddCommand(rateLimitListCmd)
	rootCmd.AddCommand(rateLimitCmd)
}

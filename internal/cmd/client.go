package cmd

import (
	"github.com/Ravio1i/azure-devops-server-mcp/internal/config"
	"github.com/Ravio1i/azure-devops-server-mcp/internal/core/ado"
	"github.com/Ravio1i/azure-devops-server-mcp/internal/core/guard"
	"github.com/Ravio1i/azure-devops-server-mcp/internal/metrics"
	"github.com/Ravio1i/azure-devops-server-mcp/internal/observability"
	"github.com/Ravio1i/azure-devops-server-mcp/internal/tools"
)

// newBackend builds the Azure DevOps client from cfg. Backend requests are
// logged through the active logger and recorded as metrics.
func newBackend(cfg *config.Config) (*ado.Client, error) {
	if err := cfg.RequireBackend(); err != nil {
		return nil, err
	}

	az := cfg.AzureDevOps
	client, err := ado.NewClient(ado.Config{
		ServerURL:  az.ServerURL,
		Token:      az.Token,
		Collection: az.Collection,
		APIVersion: az.APIVersion,
		Timeout:    az.Timeout,
		Breaker: ado.BreakerConfig{
			Enabled:             az.Breaker.Enabled,
			ConsecutiveFailures: az.Breaker.ConsecutiveFailures,
			MaxRequests:         az.Breaker.MaxRequests,
			Interval:            az.Breaker.Interval,
			Timeout:             az.Breaker.Timeout,
		},
	})
	if err != nil {
		return nil, err
	}

	if logger := observability.Logger(); logger != nil {
		client.Logger = logger
	}
	client.OnRequest = func(info ado.RequestInfo) {
		metrics.RecordBackendRequest(info.Area, info.Method, info.Status, info.Duration)
	}
	return client, nil
}

// newGuard builds the call guard over the process-wide limiter.
func newGuard() *guard.Guard {
	opts := []guard.Option{
		guard.WithLimiter(guard.Shared()),
		guard.WithObserver(metrics.GuardObserver{}),
	}
	if logger := observability.Logger(); logger != nil {
		opts = append(opts, guard.WithLogger(logger))
	}
	return guard.New(opts...)
}

// policiesFrom converts the guard section of cfg into a tool policy set.
func policiesFrom(cfg *config.Config) tools.PolicySet {
	return tools.PolicySet{
		Default:             cfg.Guard.Default,
		WriteQuotaPerMinute: cfg.Guard.WriteQuotaPerMinute,
		Operations:          cfg.Guard.Operations,
	}
}

// newRegistry builds the guarded tool registry over backend. backend may be
// nil for commands that only describe tools.
func newRegistry(cfg *config.Config, backend tools.Backend) *tools.Registry {
	return tools.NewRegistry(backend, newGuard(), policiesFrom(cfg))
}

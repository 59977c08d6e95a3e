package tools

import "github.com/Ravio1i/azure-devops-server-mcp/internal/core/guard"

// Default guard limits applied when configuration is silent.
const (
	DefaultQuotaPerMinute      = 60
	DefaultMaxPayloadMB        = 1.0
	DefaultWriteQuotaPerMinute = 20
)

// PolicySet resolves the guard policy of each tool. Zero fields inherit from
// the level below; negative values disable the corresponding check.
type PolicySet struct {
	Default             guard.Policy
	WriteQuotaPerMinute int
	Operations          map[string]guard.Policy
}

// DefaultPolicies returns the built-in limits.
func DefaultPolicies() PolicySet {
	return PolicySet{
		Default: guard.Policy{
			QuotaPerMinute: DefaultQuotaPerMinute,
			MaxPayloadMB:   DefaultMaxPayloadMB,
		},
		WriteQuotaPerMinute: DefaultWriteQuotaPerMinute,
	}
}

// Resolve layers the default policy, the write quota for mutating tools, and
// the per-operation override for name.
func (p PolicySet) Resolve(name string, write bool) guard.Policy {
	policy := p.Default
	if write && p.WriteQuotaPerMinute != 0 {
		policy.QuotaPerMinute = p.WriteQuotaPerMinute
	}
	if override, ok := p.Operations[name]; ok {
		if override.QuotaPerMinute != 0 {
			policy.QuotaPerMinute = override.QuotaPerMinute
		}
		if override.MaxPayloadMB != 0 {
			policy.MaxPayloadMB = override.MaxPayloadMB
		}
	}
	return policy
}

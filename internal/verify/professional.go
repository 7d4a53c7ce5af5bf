package verify

import (
	"context"
	"strings"

	"github.com/leadworks/salesfilter/internal/model"
	"github.com/leadworks/salesfilter/internal/scoring"
)

// Professional is a simulated professional-network check. It is an
// explicit stand-in: real profile lookups require partner API access, so
// the result is derived from the strongest available local evidence, a
// business mail domain paired with a plausible full name.
type Professional struct {
	rules *scoring.Rules
}

func NewProfessional(rules *scoring.Rules) *Professional {
	return &Professional{rules: rules}
}

func (p *Professional) Name() string { return "professional" }

func (p *Professional) Check(_ context.Context, name, _, domain string) model.VerificationResult {
	if domain == "" || p.rules.IsFreeProvider(domain) {
		return model.VerificationResult{Detail: "no business domain to correlate"}
	}
	if len(strings.Fields(name)) >= 2 {
		return model.VerificationResult{
			Verified: true,
			Matched:  true,
			Detail:   "business domain with full name, profile match simulated",
		}
	}
	return model.VerificationResult{
		Verified: true,
		Detail:   "business domain present, no name to match",
	}
}

package verify

import (
	"context"

	"github.com/leadworks/salesfilter/internal/model"
	"github.com/leadworks/salesfilter/internal/scoring"
)

// Social is a simulated social-network check. Consumer mail accounts
// almost always carry a social footprint, business accounts usually do
// but cannot be tied to a person without a real lookup.
type Social struct {
	rules *scoring.Rules
}

func NewSocial(rules *scoring.Rules) *Social {
	return &Social{rules: rules}
}

func (s *Social) Name() string { return "social" }

func (s *Social) Check(_ context.Context, _, _, domain string) model.VerificationResult {
	if domain == "" {
		return model.VerificationResult{Detail: "no domain"}
	}
	if s.rules.IsFreeProvider(domain) {
		return model.VerificationResult{
			Verified: true,
			Matched:  true,
			Detail:   "consumer provider, social presence simulated",
		}
	}
	return model.VerificationResult{
		Verified: true,
		Detail:   "business domain, social presence plausible",
	}
}

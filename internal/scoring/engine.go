package scoring

import (
	"fmt"
	"strings"

	"github.com/leadworks/salesfilter/internal/model"
)

// Engine evaluates the full detector chain for one lead. It is pure: the
// same inputs always produce the same score, rationale and breakdown.
type Engine struct {
	rules *Rules
}

func NewEngine(rules *Rules) *Engine {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Engine{rules: rules}
}

func (e *Engine) Rules() *Rules { return e.rules }

// Clamp bounds a raw total to the configured score range.
func (r *Rules) Clamp(n int) int {
	if n < r.MinScore {
		return r.MinScore
	}
	if n > r.MaxScore {
		return r.MaxScore
	}
	return n
}

// Score evaluates name and email against the rule set, folding in any
// verification outcomes. Detectors run in a fixed order so the rationale
// string is reproducible. Consumer mail domains are scored on a reduced
// track: the business-oriented detectors do not apply to them.
func (e *Engine) Score(name, email string, v model.Verification) (int, string, model.ScoreBreakdown) {
	r := e.rules
	var bd model.ScoreBreakdown

	domain := ExtractDomain(email)
	if domain == "" {
		bd.DomainType = "invalid"
		bd.Signals = []model.SignalScore{{Kind: "domain_class", Points: 0, Rationale: "invalid email address"}}
		return 0, "invalid email address, total = 0", bd
	}

	local := strings.SplitN(strings.ToLower(strings.TrimSpace(email)), "@", 2)[0]
	tld := TLD(domain)
	free := r.IsFreeProvider(domain)

	base, domainType := detectDomainClass(r, domain)
	bd.DomainType = domainType
	signals := []model.SignalScore{base}

	if !free {
		signals = append(signals, detectTLDBonus(r, tld)...)
		signals = append(signals, detectGeographic(r, tld)...)
		signals = append(signals, detectEmailPattern(r, local)...)
	}
	signals = append(signals, detectConsistency(r, name, local)...)
	signals = append(signals, detectExecutive(r, name)...)
	if !free {
		signals = append(signals, detectTechnical(r, name, local, tld)...)
		signals = append(signals, detectB2B(r, local)...)
		signals = append(signals, detectSuspicious(r, name, local)...)
		industrySignals, industry := detectIndustry(r, domain)
		signals = append(signals, industrySignals...)
		bd.DetectedIndustry = industry
	}
	signals = append(signals, detectNameFormat(r, name)...)
	signals = append(signals, e.verificationSignals(free, v)...)

	total := 0
	for _, s := range signals {
		total += s.Points
		switch s.Kind {
		case "email_pattern":
			bd.EmailPatternScore += s.Points
		case "consistency":
			bd.ConsistencyScore += s.Points
		case "executive":
			bd.ExecutiveScore += s.Points
		case "technical":
			bd.TechnicalScore += s.Points
		case "b2b":
			bd.B2BScore += s.Points
		case "suspicious":
			bd.SuspiciousScore += s.Points
		case "geographic":
			bd.GeographicScore += s.Points
		case "industry":
			bd.IndustryScore += s.Points
		}
	}
	total = r.Clamp(total)
	bd.Signals = signals

	return total, Rationale(signals, total), bd
}

// verificationSignals converts adapter outcomes into score bonuses.
// Liveness only counts for business domains; consumer providers are
// always reachable so the signal carries no information there.
func (e *Engine) verificationSignals(free bool, v model.Verification) []model.SignalScore {
	r := e.rules
	var out []model.SignalScore
	if !free && v.DomainAlive {
		out = append(out, signal("verification", r.DomainAlivePoints, "domain is live"))
	}
	for _, provider := range []string{"professional", "social", "codehost"} {
		bonus, ok := r.Verification[provider]
		if !ok {
			continue
		}
		check := v.Check(provider)
		switch {
		case check.Verified && check.Matched:
			out = append(out, signal("verification", bonus.MatchPoints, "%s network match", provider))
		case check.Verified:
			out = append(out, signal("verification", bonus.FoundPoints, "%s presence found", provider))
		}
	}
	return out
}

// Rationale renders the audit trail for a set of fired signals.
func Rationale(signals []model.SignalScore, total int) string {
	parts := make([]string, 0, len(signals)+1)
	for _, s := range signals {
		parts = append(parts, s.Rationale)
	}
	parts = append(parts, fmt.Sprintf("total = %d", total))
	return strings.Join(parts, ", ")
}

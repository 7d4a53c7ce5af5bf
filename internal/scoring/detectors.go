package scoring

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/leadworks/salesfilter/internal/model"
)

var (
	firstLastRe   = regexp.MustCompile(`^[a-z]{2,}\.[a-z]{2,}$`)
	initialLastRe = regexp.MustCompile(`^[a-z]\.[a-z]{2,}$`)
	birthYearRe   = regexp.MustCompile(`(19[5-9]\d|20[0-2]\d)`)
	digitRunRe    = regexp.MustCompile(`\d{3,}`)
	trailingNumRe = regexp.MustCompile(`\d{2,}$`)
	alphaRe       = regexp.MustCompile(`^[a-z]+$`)
)

func signal(kind string, points int, format string, args ...any) model.SignalScore {
	return model.SignalScore{Kind: kind, Points: points, Rationale: fmt.Sprintf(format, args...)}
}

// detectDomainClass classifies the domain into exactly one base category.
// First match wins: free, telecom operator, enterprise, then corporate as
// the fallback for any other business domain.
func detectDomainClass(r *Rules, domain string) (model.SignalScore, string) {
	switch {
	case r.IsFreeProvider(domain):
		return signal("domain_class", r.Base.Free, "free email provider"), "free"
	case containsString(r.TelecomOperators, domain):
		return signal("domain_class", r.Base.Telecom, "telecom operator domain"), "telecom"
	case containsString(r.EnterpriseDomains, domain):
		return signal("domain_class", r.Base.Enterprise, "enterprise domain"), "enterprise"
	default:
		return signal("domain_class", r.Base.Corporate, "corporate domain"), "corporate"
	}
}

func detectTLDBonus(r *Rules, tld string) []model.SignalScore {
	if tld != "" && containsString(r.TelecomTLDs, tld) {
		return []model.SignalScore{signal("tld", r.TLDBonus, "telecom-friendly TLD %s", tld)}
	}
	return nil
}

// detectGeographic maps the TLD through the geo tier table. Sanctioned
// tiers mark the rationale so the penalty is auditable downstream; the
// row is still scored.
func detectGeographic(r *Rules, tld string) []model.SignalScore {
	tier, ok := r.GeoTiers[tld]
	if !ok {
		return nil
	}
	switch {
	case tier.Sanctioned:
		return []model.SignalScore{signal("geographic", tier.Points, "high-risk region %s (%s), sanctions", tier.Country, tld)}
	case tier.Points < 0:
		return []model.SignalScore{signal("geographic", tier.Points, "restricted region %s (%s)", tier.Country, tld)}
	default:
		return []model.SignalScore{signal("geographic", tier.Points, "favorable region %s (%s)", tier.Country, tld)}
	}
}

// detectEmailPattern scores the structure of the local part. Multiple
// sub-signals may stack.
func detectEmailPattern(r *Rules, local string) []model.SignalScore {
	ep := r.EmailPattern
	var out []model.SignalScore

	switch {
	case firstLastRe.MatchString(local):
		out = append(out, signal("email_pattern", ep.FirstLastPoints, "first.last address format"))
	case initialLastRe.MatchString(local):
		out = append(out, signal("email_pattern", ep.InitialLastPoints, "initial.last address format"))
	case strings.Contains(local, "."):
		out = append(out, signal("email_pattern", ep.DottedPoints, "structured dotted address"))
	}

	switch {
	case containsKeyword(ep.ExecutiveRoles, local):
		out = append(out, signal("email_pattern", ep.ExecutivePoints, "executive role address"))
	case containsKeyword(ep.ManagementRoles, local):
		out = append(out, signal("email_pattern", ep.ManagementPoints, "management role address"))
	case containsKeyword(ep.TechnicalRoles, local):
		out = append(out, signal("email_pattern", ep.TechnicalPoints, "technical role address"))
	}

	if containsKeyword(ep.GenericKeywords, local) {
		out = append(out, signal("email_pattern", ep.GenericPenalty, "generic mailbox"))
	}
	if containsKeyword(ep.AutomatedKeywords, local) {
		out = append(out, signal("email_pattern", ep.AutomatedPenalty, "automated or bulk mailbox"))
	}

	n := len(local)
	switch {
	case n >= ep.GoodLengthMin && n <= ep.GoodLengthMax:
		out = append(out, signal("email_pattern", ep.GoodLengthBonus, "professional address length"))
	case n < ep.ShortLength || n > ep.LongLength:
		out = append(out, signal("email_pattern", ep.LengthPenalty, "unusual address length"))
	}

	if alphaRe.MatchString(strings.ReplaceAll(local, ".", "")) {
		out = append(out, signal("email_pattern", ep.AlphaBonus, "clean alphabetic address"))
	}
	if birthYearRe.MatchString(local) {
		out = append(out, signal("email_pattern", ep.BirthYearPenalty, "birth year in address"))
	}
	if digitRunRe.MatchString(local) {
		out = append(out, signal("email_pattern", ep.DigitRunPenalty, "long digit sequence in address"))
	}
	return out
}

// detectConsistency compares the lead name against the email local part.
// Tiers are mutually exclusive; only the strongest match scores.
func detectConsistency(r *Rules, name, local string) []model.SignalScore {
	c := r.Consistency
	tokens := nameTokens(name)
	if len(tokens) == 0 {
		return nil
	}
	first := tokens[0]
	last := tokens[len(tokens)-1]

	switch {
	case len(tokens) >= 2 && (local == first+"."+last || local == first+last || local == last+"."+first):
		return []model.SignalScore{signal("consistency", c.ExactPoints, "email matches full name")}
	case len(tokens) >= 2 && (local == first[:1]+"."+last || local == first[:1]+last || local == first+"."+last[:1]):
		return []model.SignalScore{signal("consistency", c.InitialPoints, "email matches name initials")}
	case (len(first) >= 3 && strings.Contains(local, first)) || (len(last) >= 3 && strings.Contains(local, last)):
		return []model.SignalScore{signal("consistency", c.PartialPoints, "email contains name component")}
	case len(tokens) >= 2 && len(first) >= 3 && len(last) >= 3 &&
		strings.Contains(local, first[:3]) && strings.Contains(local, last[:3]):
		return []model.SignalScore{signal("consistency", c.ComponentsPoints, "email contains name fragments")}
	case anyTokenPrefixIn(tokens, local):
		return []model.SignalScore{signal("consistency", c.SubstringPoints, "email loosely related to name")}
	case alphaRe.MatchString(local) && len(local) > c.MismatchMinLen:
		return []model.SignalScore{signal("consistency", c.MismatchPenalty, "email unrelated to name")}
	}
	return nil
}

// detectExecutive looks for title markers inside the name field itself.
func detectExecutive(r *Rules, name string) []model.SignalScore {
	if name == "" {
		return nil
	}
	upper := strings.ToUpper(name)
	e := r.Executive
	switch {
	case containsKeyword(e.ExecutiveTitles, upper):
		return []model.SignalScore{signal("executive", e.ExecutivePoints, "executive title in name")}
	case containsKeyword(e.ManagementTitles, upper):
		return []model.SignalScore{signal("executive", e.ManagementPoints, "management title in name")}
	case containsKeyword(e.ProfessionalTitles, upper):
		return []model.SignalScore{signal("executive", e.ProfessionalPoints, "professional title in name")}
	}
	return nil
}

// detectTechnical scores independent technical markers in the local part,
// the TLD and the name. The markers stack.
func detectTechnical(r *Rules, name, local, tld string) []model.SignalScore {
	t := r.Technical
	var out []model.SignalScore
	if containsKeyword(t.LocalKeywords, local) {
		out = append(out, signal("technical", t.LocalPoints, "technical keyword in address"))
	}
	if tld != "" && containsString(t.TLDs, tld) {
		out = append(out, signal("technical", t.TLDPoints, "technology TLD %s", tld))
	}
	if name != "" && containsKeyword(t.NameTerms, strings.ToLower(name)) {
		out = append(out, signal("technical", t.NamePoints, "technical role in name"))
	}
	return out
}

func detectB2B(r *Rules, local string) []model.SignalScore {
	b := r.B2B
	var out []model.SignalScore
	if strings.Contains(local, ".") && !strings.ContainsAny(local, "0123456789") {
		out = append(out, signal("b2b", b.DottedPoints, "business-style dotted address"))
	}
	if containsKeyword(b.CorporateKeywords, local) {
		out = append(out, signal("b2b", b.CorporatePoints, "corporate indicator in address"))
	}
	if containsKeyword(b.ConsumerKeywords, local) {
		out = append(out, signal("b2b", b.ConsumerPenalty, "consumer indicator in address"))
	}
	if birthYearRe.MatchString(local) {
		out = append(out, signal("b2b", b.BirthYearPenalty, "personal birth year marker"))
	}
	return out
}

// detectSuspicious flags generated or throwaway account patterns.
func detectSuspicious(r *Rules, name, local string) []model.SignalScore {
	s := r.Suspicious
	var out []model.SignalScore
	if trailingNumRe.MatchString(local) {
		out = append(out, signal("suspicious", s.TrailingDigitPenalty, "trailing digits in address"))
	}
	if len(local) >= 6 && charDiversity(local) < s.DiversityRatio {
		out = append(out, signal("suspicious", s.DiversityPenalty, "low character diversity"))
	}
	if containsKeyword(s.FakeKeywords, local) {
		out = append(out, signal("suspicious", s.FakePenalty, "test or placeholder address"))
	}
	if containsKeyword(s.BulkKeywords, local) {
		out = append(out, signal("suspicious", s.BulkPenalty, "bulk mailing address"))
	}
	tokens := nameTokens(name)
	if len(tokens) >= 2 && len(local) >= 5 && alphaRe.MatchString(local) && !anyTokenPrefixIn(tokens, local) {
		out = append(out, signal("suspicious", s.MismatchPenalty, "address conflicts with name"))
	}
	return out
}

// detectIndustry walks the ordered tier table; the first tier with a
// keyword hit in the domain wins and also labels the lead.
func detectIndustry(r *Rules, domain string) ([]model.SignalScore, string) {
	for _, tier := range r.Industries {
		for _, kw := range tier.Keywords {
			if strings.Contains(domain, kw) {
				return []model.SignalScore{
					signal("industry", tier.Points, "%s industry domain", strings.ToLower(tier.Name)),
				}, tier.Name
			}
		}
	}
	return nil, ""
}

func detectNameFormat(r *Rules, name string) []model.SignalScore {
	switch n := len(nameTokens(name)); {
	case n >= 2:
		return []model.SignalScore{signal("name_format", r.NameFormat.FullNamePoints, "full name provided")}
	case n == 1:
		return []model.SignalScore{signal("name_format", r.NameFormat.SingleNamePoints, "single name provided")}
	}
	return nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsKeyword(list []string, s string) bool {
	for _, kw := range list {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

func nameTokens(name string) []string {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(name)))
	out := fields[:0]
	for _, f := range fields {
		f = strings.Trim(f, ".,")
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

func anyTokenPrefixIn(tokens []string, local string) bool {
	for _, t := range tokens {
		if len(t) >= 3 && strings.Contains(local, t[:3]) {
			return true
		}
	}
	return false
}

func charDiversity(s string) float64 {
	if s == "" {
		return 1
	}
	seen := map[rune]bool{}
	for _, r := range s {
		seen[r] = true
	}
	return float64(len(seen)) / float64(len([]rune(s)))
}

package scoring

import "strings"

// ExtractDomain returns the lowercase domain part of an email address.
// It is defined only for addresses with exactly one "@" followed by a
// non-empty suffix; anything else yields "". Repeated application is
// idempotent.
func ExtractDomain(email string) string {
	s := strings.ToLower(strings.TrimSpace(email))
	if strings.Count(s, "@") != 1 {
		return ""
	}
	at := strings.Index(s, "@")
	domain := s[at+1:]
	if domain == "" {
		return ""
	}
	return domain
}

// secondLevelTLDs are country registries where the meaningful suffix spans
// two labels (example.co.uk -> .co.uk).
var secondLevelTLDs = map[string]bool{
	".co.uk":  true,
	".co.il":  true,
	".co.jp":  true,
	".co.kr":  true,
	".co.nz":  true,
	".com.au": true,
	".com.br": true,
	".com.cn": true,
	".org.uk": true,
	".ac.uk":  true,
}

// TLD returns the dotted suffix of a domain, preferring known two-label
// registry suffixes over the bare last label.
func TLD(domain string) string {
	domain = strings.ToLower(strings.TrimSpace(domain))
	parts := strings.Split(domain, ".")
	if len(parts) < 2 {
		return ""
	}
	if len(parts) >= 3 {
		two := "." + parts[len(parts)-2] + "." + parts[len(parts)-1]
		if secondLevelTLDs[two] {
			return two
		}
	}
	return "." + parts[len(parts)-1]
}

// IsFreeProvider reports whether the domain belongs to a consumer mail
// provider, either by exact match or by a known provider prefix covering
// regional variants (outlook.de, yahoo.fr and the like).
func (r *Rules) IsFreeProvider(domain string) bool {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		return false
	}
	for _, d := range r.FreeProviders {
		if domain == d {
			return true
		}
	}
	for _, prefix := range r.FreeProviderPrefixes {
		if strings.HasPrefix(domain, prefix) {
			return true
		}
	}
	return false
}

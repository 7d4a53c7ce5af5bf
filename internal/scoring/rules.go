// Package scoring implements the deterministic multi-factor lead scoring
// engine. The factor table (weights, keyword sets, domain sets, TLD tiers)
// is data, not code: it lives in a Rules value that can be loaded from YAML,
// so swapping rule sets is configuration.
package scoring

import (
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// GeoTier describes the scoring consequence of one country TLD.
type GeoTier struct {
	Country    string `yaml:"country" json:"country"`
	Points     int    `yaml:"points" json:"points"`
	Sanctioned bool   `yaml:"sanctioned,omitempty" json:"sanctioned,omitempty"`
}

// IndustryTier is one entry in the ordered industry keyword table.
// First matching tier wins.
type IndustryTier struct {
	Name     string   `yaml:"name" json:"name"`
	Points   int      `yaml:"points" json:"points"`
	Keywords []string `yaml:"keywords" json:"keywords"`
}

// BaseScores holds the per-category base points for domain classification.
type BaseScores struct {
	Free       int `yaml:"free" json:"free"`
	Telecom    int `yaml:"telecom" json:"telecom"`
	Enterprise int `yaml:"enterprise" json:"enterprise"`
	Corporate  int `yaml:"corporate" json:"corporate"`
}

// EmailPatternRules configures the email-structure detector.
type EmailPatternRules struct {
	FirstLastPoints   int `yaml:"first_last_points" json:"first_last_points"`
	InitialLastPoints int `yaml:"initial_last_points" json:"initial_last_points"`
	DottedPoints      int `yaml:"dotted_points" json:"dotted_points"`

	ExecutiveRoles   []string `yaml:"executive_roles" json:"executive_roles"`
	ManagementRoles  []string `yaml:"management_roles" json:"management_roles"`
	TechnicalRoles   []string `yaml:"technical_roles" json:"technical_roles"`
	ExecutivePoints  int      `yaml:"executive_points" json:"executive_points"`
	ManagementPoints int      `yaml:"management_points" json:"management_points"`
	TechnicalPoints  int      `yaml:"technical_points" json:"technical_points"`

	GenericKeywords   []string `yaml:"generic_keywords" json:"generic_keywords"`
	GenericPenalty    int      `yaml:"generic_penalty" json:"generic_penalty"`
	AutomatedKeywords []string `yaml:"automated_keywords" json:"automated_keywords"`
	AutomatedPenalty  int      `yaml:"automated_penalty" json:"automated_penalty"`

	GoodLengthMin   int `yaml:"good_length_min" json:"good_length_min"`
	GoodLengthMax   int `yaml:"good_length_max" json:"good_length_max"`
	GoodLengthBonus int `yaml:"good_length_bonus" json:"good_length_bonus"`
	ShortLength     int `yaml:"short_length" json:"short_length"`
	LongLength      int `yaml:"long_length" json:"long_length"`
	LengthPenalty   int `yaml:"length_penalty" json:"length_penalty"`

	AlphaBonus       int `yaml:"alpha_bonus" json:"alpha_bonus"`
	BirthYearPenalty int `yaml:"birth_year_penalty" json:"birth_year_penalty"`
	DigitRunPenalty  int `yaml:"digit_run_penalty" json:"digit_run_penalty"`
}

// ConsistencyRules configures the name/email consistency detector.
type ConsistencyRules struct {
	ExactPoints      int `yaml:"exact_points" json:"exact_points"`
	InitialPoints    int `yaml:"initial_points" json:"initial_points"`
	PartialPoints    int `yaml:"partial_points" json:"partial_points"`
	ComponentsPoints int `yaml:"components_points" json:"components_points"`
	SubstringPoints  int `yaml:"substring_points" json:"substring_points"`
	MismatchPenalty  int `yaml:"mismatch_penalty" json:"mismatch_penalty"`
	MismatchMinLen   int `yaml:"mismatch_min_len" json:"mismatch_min_len"`
}

// ExecutiveRules configures the title-in-name detector.
type ExecutiveRules struct {
	ExecutiveTitles    []string `yaml:"executive_titles" json:"executive_titles"`
	ManagementTitles   []string `yaml:"management_titles" json:"management_titles"`
	ProfessionalTitles []string `yaml:"professional_titles" json:"professional_titles"`
	ExecutivePoints    int      `yaml:"executive_points" json:"executive_points"`
	ManagementPoints   int      `yaml:"management_points" json:"management_points"`
	ProfessionalPoints int      `yaml:"professional_points" json:"professional_points"`
}

// TechnicalRules configures the technical-professional detector.
type TechnicalRules struct {
	LocalKeywords []string `yaml:"local_keywords" json:"local_keywords"`
	LocalPoints   int      `yaml:"local_points" json:"local_points"`
	TLDs          []string `yaml:"tlds" json:"tlds"`
	TLDPoints     int      `yaml:"tld_points" json:"tld_points"`
	NameTerms     []string `yaml:"name_terms" json:"name_terms"`
	NamePoints    int      `yaml:"name_points" json:"name_points"`
}

// B2BRules configures the B2B/B2C classification detector.
type B2BRules struct {
	DottedPoints       int      `yaml:"dotted_points" json:"dotted_points"`
	CorporateKeywords  []string `yaml:"corporate_keywords" json:"corporate_keywords"`
	CorporatePoints    int      `yaml:"corporate_points" json:"corporate_points"`
	ConsumerKeywords   []string `yaml:"consumer_keywords" json:"consumer_keywords"`
	ConsumerPenalty    int      `yaml:"consumer_penalty" json:"consumer_penalty"`
	BirthYearPenalty   int      `yaml:"birth_year_penalty" json:"birth_year_penalty"`
}

// SuspiciousRules configures the generated/fake-account detector.
type SuspiciousRules struct {
	TrailingDigitPenalty int      `yaml:"trailing_digit_penalty" json:"trailing_digit_penalty"`
	DiversityRatio       float64  `yaml:"diversity_ratio" json:"diversity_ratio"`
	DiversityPenalty     int      `yaml:"diversity_penalty" json:"diversity_penalty"`
	FakeKeywords         []string `yaml:"fake_keywords" json:"fake_keywords"`
	FakePenalty          int      `yaml:"fake_penalty" json:"fake_penalty"`
	BulkKeywords         []string `yaml:"bulk_keywords" json:"bulk_keywords"`
	BulkPenalty          int      `yaml:"bulk_penalty" json:"bulk_penalty"`
	MismatchPenalty      int      `yaml:"mismatch_penalty" json:"mismatch_penalty"`
}

// NameFormatRules configures the name-format detector.
type NameFormatRules struct {
	FullNamePoints   int `yaml:"full_name_points" json:"full_name_points"`
	SingleNamePoints int `yaml:"single_name_points" json:"single_name_points"`
}

// VerificationBonus holds the points awarded for one verification provider.
type VerificationBonus struct {
	MatchPoints int `yaml:"match_points" json:"match_points"`
	FoundPoints int `yaml:"found_points" json:"found_points"`
}

// Rules is the complete, externally configurable factor table.
type Rules struct {
	MinScore int `yaml:"min_score" json:"min_score"`
	MaxScore int `yaml:"max_score" json:"max_score"`

	FreeProviders        []string `yaml:"free_providers" json:"free_providers"`
	FreeProviderPrefixes []string `yaml:"free_provider_prefixes" json:"free_provider_prefixes"`
	TelecomOperators     []string `yaml:"telecom_operators" json:"telecom_operators"`
	EnterpriseDomains    []string `yaml:"enterprise_domains" json:"enterprise_domains"`

	Base BaseScores `yaml:"base" json:"base"`

	TelecomTLDs []string `yaml:"telecom_tlds" json:"telecom_tlds"`
	TLDBonus    int      `yaml:"tld_bonus" json:"tld_bonus"`

	GeoTiers map[string]GeoTier `yaml:"geo_tiers" json:"geo_tiers"`

	EmailPattern EmailPatternRules `yaml:"email_pattern" json:"email_pattern"`
	Consistency  ConsistencyRules  `yaml:"consistency" json:"consistency"`
	Executive    ExecutiveRules    `yaml:"executive" json:"executive"`
	Technical    TechnicalRules    `yaml:"technical" json:"technical"`
	B2B          B2BRules          `yaml:"b2b" json:"b2b"`
	Suspicious   SuspiciousRules   `yaml:"suspicious" json:"suspicious"`
	Industries   []IndustryTier    `yaml:"industries" json:"industries"`
	NameFormat   NameFormatRules   `yaml:"name_format" json:"name_format"`

	DomainAlivePoints int                          `yaml:"domain_alive_points" json:"domain_alive_points"`
	Verification      map[string]VerificationBonus `yaml:"verification" json:"verification"`
}

// DefaultRules returns the canonical factor table.
func DefaultRules() *Rules {
	return &Rules{
		MinScore: -50,
		MaxScore: 150,

		FreeProviders: []string{
			"gmail.com", "yahoo.com", "outlook.com", "hotmail.com",
			"aol.com", "icloud.com", "protonmail.com", "yandex.com",
			"mail.com", "gmx.com", "web.de", "freenet.de",
			"live.com", "msn.com", "me.com", "mac.com",
			"googlemail.com", "proton.me", "zoho.com", "fastmail.com",
		},
		FreeProviderPrefixes: []string{"outlook.", "yahoo.", "hotmail.", "gmail."},
		TelecomOperators: []string{
			"vodafone.com", "vodafone.co.uk", "vodafone.de", "vodafone.it",
			"t-mobile.com", "t-mobile.de", "t-mobile.nl", "tmobile.com",
			"orange.com", "orange.fr", "orange.es", "orange.pl",
			"telefonica.com", "telefonica.es", "telefonica.de",
			"verizon.com", "att.com", "sprint.com",
			"bell.ca", "rogers.com", "telus.com",
			"bt.com", "ee.co.uk", "three.co.uk", "o2.co.uk",
			"swisscom.ch", "telekom.de", "kpn.com", "proximus.be",
			"telenor.com", "telia.com", "tele2.com", "elisa.fi",
			"mtn.com", "etisalat.ae", "stc.com.sa", "zain.com",
			"airtel.in", "jio.com", "singtel.com",
			"ntt.com", "nttdocomo.com", "softbank.jp", "kddi.com",
			"sktelecom.com", "kt.com", "globaltel.net",
		},
		EnterpriseDomains: []string{
			"microsoft.com", "google.com", "amazon.com", "apple.com",
			"meta.com", "netflix.com", "tesla.com",
			"salesforce.com", "oracle.com", "ibm.com", "cisco.com",
			"intel.com", "nvidia.com", "amd.com", "qualcomm.com",
			"hp.com", "dell.com", "lenovo.com", "sony.com",
			"samsung.com", "lg.com", "siemens.com", "ge.com",
			"visa.com", "mastercard.com", "jpmorgan.com", "wellsfargo.com",
			"boeing.com", "airbus.com", "toyota.com", "ford.com",
			"shell.com", "bp.com", "chevron.com",
		},

		Base: BaseScores{Free: 5, Telecom: 40, Enterprise: 30, Corporate: 15},

		TelecomTLDs: []string{
			".net", ".tel", ".io", ".us", ".de", ".co.il", ".co.uk",
			".fr", ".nl", ".be", ".ch", ".at", ".it", ".es", ".pt",
			".pl", ".cz", ".sk", ".fi", ".se", ".no", ".dk",
		},
		TLDBonus: 10,

		GeoTiers: map[string]GeoTier{
			".de": {Country: "Germany", Points: 15},
			".nl": {Country: "Netherlands", Points: 15},
			".ch": {Country: "Switzerland", Points: 15},
			".at": {Country: "Austria", Points: 15},
			".se": {Country: "Sweden", Points: 12},
			".no": {Country: "Norway", Points: 12},
			".dk": {Country: "Denmark", Points: 12},
			".fi": {Country: "Finland", Points: 12},
			".ca": {Country: "Canada", Points: 12},
			".uk": {Country: "United Kingdom", Points: 12},
			".fr": {Country: "France", Points: 12},
			".sg": {Country: "Singapore", Points: 10},
			".hk": {Country: "Hong Kong", Points: 10},
			".au": {Country: "Australia", Points: 10},
			".jp": {Country: "Japan", Points: 8},
			".kr": {Country: "South Korea", Points: 8},
			".cn": {Country: "China", Points: -20},
			".ru": {Country: "Russia", Points: -50, Sanctioned: true},
			".by": {Country: "Belarus", Points: -30, Sanctioned: true},
			".ir": {Country: "Iran", Points: -40, Sanctioned: true},
			".kp": {Country: "North Korea", Points: -50, Sanctioned: true},
		},

		EmailPattern: EmailPatternRules{
			FirstLastPoints:   15,
			InitialLastPoints: 12,
			DottedPoints:      8,
			ExecutiveRoles:    []string{"ceo", "president", "director", "vp", "vice.president", "managing.director"},
			ManagementRoles:   []string{"manager", "lead", "head", "supervisor", "chief"},
			TechnicalRoles:    []string{"admin", "tech", "developer", "engineer", "dev"},
			ExecutivePoints:   20,
			ManagementPoints:  15,
			TechnicalPoints:   10,
			GenericKeywords:   []string{"info", "contact", "sales", "support", "hello", "enquiry", "inquiry"},
			GenericPenalty:    -5,
			AutomatedKeywords: []string{"noreply", "no.reply", "donotreply", "automated", "bulk", "marketing"},
			AutomatedPenalty:  -15,
			GoodLengthMin:     6,
			GoodLengthMax:     12,
			GoodLengthBonus:   5,
			ShortLength:       4,
			LongLength:        20,
			LengthPenalty:     -5,
			AlphaBonus:        5,
			BirthYearPenalty:  -3,
			DigitRunPenalty:   -10,
		},

		Consistency: ConsistencyRules{
			ExactPoints:      10,
			InitialPoints:    8,
			PartialPoints:    6,
			ComponentsPoints: 5,
			SubstringPoints:  3,
			MismatchPenalty:  -5,
			MismatchMinLen:   5,
		},

		Executive: ExecutiveRules{
			ExecutiveTitles: []string{
				"CEO", "CTO", "CFO", "CMO", "COO", "PRESIDENT", "VP",
				"VICE PRESIDENT", "MANAGING DIRECTOR", "EXECUTIVE DIRECTOR",
				"CHAIRMAN", "FOUNDER",
			},
			ManagementTitles:   []string{"DIRECTOR", "MANAGER", "HEAD OF", "LEAD", "SENIOR", "PRINCIPAL"},
			ProfessionalTitles: []string{"DR.", "DR ", "PROF.", "PROFESSOR", "MR.", "MS.", "MRS."},
			ExecutivePoints:    25,
			ManagementPoints:   15,
			ProfessionalPoints: 10,
		},

		Technical: TechnicalRules{
			LocalKeywords: []string{
				"dev", "developer", "tech", "engineer", "eng",
				"sysadmin", "devops", "architect", "programmer", "coder",
			},
			LocalPoints: 15,
			TLDs:        []string{".io", ".dev", ".tech", ".ai", ".cloud"},
			TLDPoints:   10,
			NameTerms:   []string{"developer", "engineer", "programmer", "architect", "devops", "sysadmin"},
			NamePoints:  12,
		},

		B2B: B2BRules{
			DottedPoints:      10,
			CorporateKeywords: []string{"corp", "company", "group", "ltd", "llc", "inc"},
			CorporatePoints:   8,
			ConsumerKeywords:  []string{"nickname", "personal", "family"},
			ConsumerPenalty:   -5,
			BirthYearPenalty:  -3,
		},

		Suspicious: SuspiciousRules{
			TrailingDigitPenalty: -10,
			DiversityRatio:       0.7,
			DiversityPenalty:     -15,
			FakeKeywords:         []string{"test", "temp", "fake", "dummy", "sample", "example"},
			FakePenalty:          -20,
			BulkKeywords:         []string{"newsletter", "marketing", "bulk", "mass", "list"},
			BulkPenalty:          -15,
			MismatchPenalty:      -20,
		},

		Industries: []IndustryTier{
			{Name: "Telecom", Points: 20, Keywords: []string{
				"telecom", "telco", "mobile", "cellular", "wireless", "network",
				"isp", "broadband", "5g", "fiber", "voip", "pbx",
			}},
			{Name: "Technology", Points: 15, Keywords: []string{
				"tech", "software", "cloud", "saas", "digital", "cyber",
				"data", "iot", "api", "platform",
			}},
			{Name: "Financial Services", Points: 12, Keywords: []string{
				"bank", "finance", "financial", "invest", "capital", "fund",
				"insurance", "fintech", "trading", "wealth",
			}},
			{Name: "Healthcare", Points: 8, Keywords: []string{
				"health", "medical", "hospital", "clinic", "pharma", "bio",
				"medtech", "healthcare", "wellness",
			}},
			{Name: "Manufacturing", Points: 10, Keywords: []string{
				"manufacturing", "industrial", "factory", "production",
				"automotive", "aerospace", "chemical", "steel",
			}},
		},

		NameFormat: NameFormatRules{FullNamePoints: 10, SingleNamePoints: 5},

		DomainAlivePoints: 20,
		Verification: map[string]VerificationBonus{
			"professional": {MatchPoints: 10, FoundPoints: 5},
			"social":       {MatchPoints: 10, FoundPoints: 5},
			"codehost":     {MatchPoints: 15, FoundPoints: 10},
		},
	}
}

// LoadRules reads a YAML rule set from disk and validates it.
func LoadRules(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "scoring: read rules file")
	}
	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, eris.Wrap(err, "scoring: unmarshal rules")
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

// Validate checks that a rule set is internally consistent.
func (r *Rules) Validate() error {
	var errs []string

	if r.MinScore >= r.MaxScore {
		errs = append(errs, fmt.Sprintf("min_score (%d) must be < max_score (%d)", r.MinScore, r.MaxScore))
	}
	if r.Base.Free < 0 || r.Base.Telecom <= 0 || r.Base.Enterprise <= 0 || r.Base.Corporate <= 0 {
		errs = append(errs, "base scores for business categories must be positive")
	}
	if r.TLDBonus < 0 {
		errs = append(errs, "tld_bonus must be >= 0")
	}
	if r.Suspicious.DiversityRatio <= 0 || r.Suspicious.DiversityRatio > 1 {
		errs = append(errs, "suspicious.diversity_ratio must be in (0, 1]")
	}
	if r.EmailPattern.GoodLengthMin > r.EmailPattern.GoodLengthMax {
		errs = append(errs, "email_pattern good length range is inverted")
	}
	for i, tier := range r.Industries {
		if tier.Name == "" || len(tier.Keywords) == 0 {
			errs = append(errs, fmt.Sprintf("industries[%d] needs a name and keywords", i))
		}
	}
	for tld, tier := range r.GeoTiers {
		if !strings.HasPrefix(tld, ".") {
			errs = append(errs, fmt.Sprintf("geo tier key %q must start with a dot", tld))
		}
		if tier.Sanctioned && tier.Points >= 0 {
			errs = append(errs, fmt.Sprintf("sanctioned geo tier %s must carry a penalty", tld))
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("scoring: rules validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Package model defines the domain types shared across the scoring and
// job-processing packages.
package model

import "time"

// LeadRow is a single input record parsed from an upload. Absent cells are
// normalized to empty strings, never nil.
type LeadRow struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Date  string `json:"date,omitempty"`
}

// SignalScore is the output of one scoring detector: a signed point delta
// plus the human-readable rationale for the audit trail.
type SignalScore struct {
	Kind      string `json:"kind"`
	Points    int    `json:"points"`
	Rationale string `json:"rationale"`
}

// ScoreBreakdown aggregates the per-factor sub-scores for a lead along with
// the derived categorical fields.
type ScoreBreakdown struct {
	EmailPatternScore int    `json:"email_pattern_score"`
	ConsistencyScore  int    `json:"consistency_score"`
	ExecutiveScore    int    `json:"executive_score"`
	TechnicalScore    int    `json:"technical_score"`
	B2BScore          int    `json:"b2b_score"`
	SuspiciousScore   int    `json:"suspicious_score"`
	GeographicScore   int    `json:"geographic_score"`
	IndustryScore     int    `json:"industry_score"`
	DetectedIndustry  string `json:"detected_industry"`
	DomainType        string `json:"domain_type"`

	// Signals is the ordered list of every rule that fired, in evaluation
	// order. The rationale string is derived from this list.
	Signals []SignalScore `json:"signals,omitempty"`
}

// VerificationResult is the outcome of a single verification adapter call.
// Adapter failures degrade to Verified=false with a descriptive Detail;
// they never surface as errors into row processing.
type VerificationResult struct {
	Verified bool   `json:"verified"`
	Matched  bool   `json:"matched"`
	Detail   string `json:"detail"`
}

// ProviderCheck pairs a verification result with the provider that produced it.
type ProviderCheck struct {
	Provider string `json:"provider"`
	VerificationResult
}

// Verification collects all per-row verification outcomes.
type Verification struct {
	DomainAlive   bool   `json:"domain_alive"`
	DomainSkipped bool   `json:"domain_skipped"`
	DomainDetail  string `json:"domain_detail"`

	// Checks holds provider results in a fixed order so that scoring and
	// output generation stay deterministic.
	Checks []ProviderCheck `json:"checks"`
}

// Check returns the result for the named provider, or a zero result if the
// provider did not run.
func (v Verification) Check(provider string) VerificationResult {
	for _, c := range v.Checks {
		if c.Provider == provider {
			return c.VerificationResult
		}
	}
	return VerificationResult{}
}

// Enrichment holds optional company and phone intelligence fetched from
// external providers, plus the signed score adjustment they contribute.
type Enrichment struct {
	CompanyName       string     `json:"company_name,omitempty"`
	CompanyStatus     string     `json:"company_status,omitempty"`
	CompanyIndustry   string     `json:"company_industry,omitempty"`
	EmployeeCount     int        `json:"employee_count,omitempty"`
	IncorporationDate *time.Time `json:"incorporation_date,omitempty"`
	PhoneNumber       string     `json:"phone_number,omitempty"`
	PhoneType         string     `json:"phone_type,omitempty"`
	PhoneCarrier      string     `json:"phone_carrier,omitempty"`
	PhoneVerified     bool       `json:"phone_verified,omitempty"`
	DataSource        string     `json:"data_source,omitempty"`
	ScoreAdjustment   int        `json:"score_adjustment"`
}

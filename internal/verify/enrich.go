package verify

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/leadworks/salesfilter/internal/model"
	"github.com/leadworks/salesfilter/internal/scoring"
	"github.com/leadworks/salesfilter/pkg/numlookup"
	"github.com/leadworks/salesfilter/pkg/opencorp"
)

// Enricher augments leads with company registry and phone intelligence.
// Every failure degrades to a partial or empty enrichment; enrichment
// never fails a row.
type Enricher struct {
	rules     *scoring.Rules
	companies *opencorp.Client
	phones    *numlookup.Client
}

func NewEnricher(rules *scoring.Rules, companies *opencorp.Client, phones *numlookup.Client) *Enricher {
	return &Enricher{rules: rules, companies: companies, phones: phones}
}

// Enrich looks up the lead's company by domain and validates any phone
// number found in the raw row text. The returned adjustment is a signed
// delta applied on top of the rule-engine score.
func (e *Enricher) Enrich(ctx context.Context, lead model.LeadRow, domain string) *model.Enrichment {
	enr := &model.Enrichment{}

	if domain != "" && !e.rules.IsFreeProvider(domain) && e.companies != nil {
		company, err := e.companies.LookupDomain(ctx, domain)
		switch {
		case err != nil:
			zap.L().Debug("verify: company lookup failed", zap.String("domain", domain), zap.Error(err))
		case company != nil:
			enr.CompanyName = company.Name
			enr.CompanyStatus = company.Status
			enr.CompanyIndustry = company.Industry
			enr.EmployeeCount = company.EmployeeCount
			enr.IncorporationDate = company.IncorporationDate
			enr.DataSource = company.Source
			enr.ScoreAdjustment += companyAdjustment(company)
		}
	}

	if e.phones != nil {
		if raw := numlookup.ExtractPhone(lead.Name + " " + lead.Date); raw != "" {
			info, err := e.phones.Lookup(ctx, raw)
			if err != nil {
				zap.L().Debug("verify: phone lookup failed", zap.String("number", raw), zap.Error(err))
			} else {
				enr.PhoneNumber = info.Number
				enr.PhoneType = info.Type
				enr.PhoneCarrier = info.Carrier
				enr.PhoneVerified = info.Valid
				enr.ScoreAdjustment += phoneAdjustment(info)
			}
		}
	}

	if *enr == (model.Enrichment{}) {
		return nil
	}
	return enr
}

func companyAdjustment(c *opencorp.Company) int {
	adj := 0
	switch c.Status {
	case "active":
		adj += 5
	case "dissolved", "inactive":
		adj -= 10
	}
	switch {
	case c.EmployeeCount >= 250:
		adj += 10
	case c.EmployeeCount >= 50:
		adj += 5
	}
	if strings.Contains(strings.ToLower(c.Industry), "telecom") {
		adj += 10
	}
	return adj
}

func phoneAdjustment(p *numlookup.PhoneInfo) int {
	if !p.Valid {
		return -5
	}
	switch p.Type {
	case "mobile":
		return 5
	case "voip":
		return -5
	default:
		return 3
	}
}

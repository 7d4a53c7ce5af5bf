package job

import (
	"encoding/json"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/leadworks/salesfilter/internal/model"
)

// outputColumns is the artifact header. The order is part of the output
// contract: original lead fields first, then derived fields.
var outputColumns = []string{
	"name", "email", "date",
	"domain", "score", "reason",
	"detected_industry", "domain_type",
	"domain_alive", "professional_verified", "social_verified", "codehost_verified",
	"email_pattern_score", "consistency_score", "executive_score", "technical_score",
	"b2b_score", "suspicious_score", "geographic_score", "industry_score",
	"verification_details",
}

// WriteOutput renders the scored rows into an XLSX artifact at path. Rows
// are written in input order; the artifact is always regenerable from the
// persisted result rows.
func WriteOutput(path string, rows []model.ResultRow) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Scored Leads")
	if err != nil {
		return eris.Wrap(err, "job: add output sheet")
	}

	header := sheet.AddRow()
	for _, col := range outputColumns {
		header.AddCell().SetString(col)
	}

	for i := range rows {
		if err := writeOutputRow(sheet, &rows[i]); err != nil {
			return err
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "job: save output artifact %s", path)
	}
	return nil
}

func writeOutputRow(sheet *xlsx.Sheet, r *model.ResultRow) error {
	details, err := json.Marshal(struct {
		Verification model.Verification `json:"verification"`
		Enrichment   *model.Enrichment  `json:"enrichment,omitempty"`
	}{r.Verification, r.Enrichment})
	if err != nil {
		return eris.Wrap(err, "job: marshal verification details")
	}

	row := sheet.AddRow()
	for _, v := range []string{
		r.Name, r.Email, r.Date,
		r.Domain, strconv.Itoa(r.Score), r.Reason,
		r.Breakdown.DetectedIndustry, r.Breakdown.DomainType,
		boolCell(r.Verification.DomainAlive),
		boolCell(r.Verification.Check("professional").Verified),
		boolCell(r.Verification.Check("social").Verified),
		boolCell(r.Verification.Check("codehost").Verified),
		strconv.Itoa(r.Breakdown.EmailPatternScore),
		strconv.Itoa(r.Breakdown.ConsistencyScore),
		strconv.Itoa(r.Breakdown.ExecutiveScore),
		strconv.Itoa(r.Breakdown.TechnicalScore),
		strconv.Itoa(r.Breakdown.B2BScore),
		strconv.Itoa(r.Breakdown.SuspiciousScore),
		strconv.Itoa(r.Breakdown.GeographicScore),
		strconv.Itoa(r.Breakdown.IndustryScore),
		string(details),
	} {
		row.AddCell().SetString(v)
	}
	return nil
}

func boolCell(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadworks/salesfilter/internal/model"
)

func TestComputeStatsEmpty(t *testing.T) {
	stats := computeStats(0, nil)

	assert.Equal(t, 0, stats.TotalJobs)
	assert.Equal(t, 0, stats.TotalLeads)
	assert.Zero(t, stats.AverageScore)
	assert.Empty(t, stats.TopDomains)
}

func TestComputeStatsAggregates(t *testing.T) {
	rows := []model.ResultRow{
		{Domain: "a.com", Score: 40, Breakdown: model.ScoreBreakdown{DomainType: "corporate"},
			Verification: model.Verification{DomainAlive: true, Checks: []model.ProviderCheck{
				{Provider: "social", VerificationResult: model.VerificationResult{Verified: true}},
			}}},
		{Domain: "a.com", Score: 60, Breakdown: model.ScoreBreakdown{DomainType: "corporate"}},
		{Domain: "b.net", Score: 100, Breakdown: model.ScoreBreakdown{DomainType: "telecom"},
			Verification: model.Verification{DomainAlive: true}},
		{Domain: "c.org", Score: -20, Breakdown: model.ScoreBreakdown{DomainType: "corporate"}},
	}

	stats := computeStats(2, rows)

	assert.Equal(t, 2, stats.TotalJobs)
	assert.Equal(t, 4, stats.TotalLeads)
	assert.InDelta(t, 45.0, stats.AverageScore, 0.001)
	assert.Equal(t, 2, stats.DomainAliveCount)
	assert.InDelta(t, 0.5, stats.DomainAliveRate, 0.001)
	assert.Equal(t, 1, stats.VerifiedByChecker["social"])
	assert.InDelta(t, 0.25, stats.VerifiedRates["social"], 0.001)
	assert.Equal(t, map[string]int{"corporate": 3, "telecom": 1}, stats.CountsByDomainType)

	require.Len(t, stats.TopDomains, 3)
	assert.Equal(t, "a.com", stats.TopDomains[0].Domain)
	assert.Equal(t, 2, stats.TopDomains[0].Count)
	assert.InDelta(t, 50.0, stats.TopDomains[0].AvgScore, 0.001)
	// ties broken alphabetically for stable output
	assert.Equal(t, "b.net", stats.TopDomains[1].Domain)
	assert.Equal(t, "c.org", stats.TopDomains[2].Domain)
}

func TestComputeStatsTopDomainLimit(t *testing.T) {
	var rows []model.ResultRow
	for i := 0; i < 15; i++ {
		rows = append(rows, model.ResultRow{Domain: string(rune('a'+i)) + ".com", Score: 10})
	}
	stats := computeStats(1, rows)
	assert.Len(t, stats.TopDomains, topDomainLimit)
}

func TestSummarizeJobEmpty(t *testing.T) {
	job := &model.Job{ID: "j1", Status: model.JobStatusCompleted}
	summary := summarizeJob(job, nil)

	assert.Equal(t, "j1", summary.ID)
	assert.Zero(t, summary.AvgScore)
	assert.Empty(t, summary.VerifiedByChecker)
}

package store

import (
	"sort"

	"github.com/leadworks/salesfilter/internal/model"
)

const topDomainLimit = 10

// computeStats derives the read-side aggregates from persisted rows. Both
// store implementations share it so the numbers cannot drift between
// drivers.
func computeStats(totalJobs int, rows []model.ResultRow) *model.Stats {
	stats := &model.Stats{
		TotalJobs:          totalJobs,
		TotalLeads:         len(rows),
		VerifiedByChecker:  map[string]int{},
		VerifiedRates:      map[string]float64{},
		CountsByDomainType: map[string]int{},
	}
	if len(rows) == 0 {
		return stats
	}

	type domainAgg struct {
		count int
		sum   int
	}
	domains := map[string]*domainAgg{}

	sum := 0
	for _, r := range rows {
		sum += r.Score
		if r.Verification.DomainAlive {
			stats.DomainAliveCount++
		}
		for _, check := range r.Verification.Checks {
			if check.Verified {
				stats.VerifiedByChecker[check.Provider]++
			}
		}
		if r.Breakdown.DomainType != "" {
			stats.CountsByDomainType[r.Breakdown.DomainType]++
		}
		if r.Domain != "" {
			agg := domains[r.Domain]
			if agg == nil {
				agg = &domainAgg{}
				domains[r.Domain] = agg
			}
			agg.count++
			agg.sum += r.Score
		}
	}

	n := float64(len(rows))
	stats.AverageScore = float64(sum) / n
	stats.DomainAliveRate = float64(stats.DomainAliveCount) / n
	for provider, count := range stats.VerifiedByChecker {
		stats.VerifiedRates[provider] = float64(count) / n
	}

	for domain, agg := range domains {
		stats.TopDomains = append(stats.TopDomains, model.DomainStat{
			Domain:   domain,
			Count:    agg.count,
			AvgScore: float64(agg.sum) / float64(agg.count),
		})
	}
	sort.Slice(stats.TopDomains, func(i, j int) bool {
		if stats.TopDomains[i].Count != stats.TopDomains[j].Count {
			return stats.TopDomains[i].Count > stats.TopDomains[j].Count
		}
		return stats.TopDomains[i].Domain < stats.TopDomains[j].Domain
	})
	if len(stats.TopDomains) > topDomainLimit {
		stats.TopDomains = stats.TopDomains[:topDomainLimit]
	}
	return stats
}

// summarizeJob decorates a job with aggregates over its rows.
func summarizeJob(job *model.Job, rows []model.ResultRow) *model.JobSummary {
	summary := &model.JobSummary{Job: *job, VerifiedByChecker: map[string]int{}}
	if len(rows) == 0 {
		return summary
	}
	sum := 0
	for _, r := range rows {
		sum += r.Score
		if r.Verification.DomainAlive {
			summary.DomainAliveCount++
		}
		for _, check := range r.Verification.Checks {
			if check.Verified {
				summary.VerifiedByChecker[check.Provider]++
			}
		}
	}
	summary.AvgScore = float64(sum) / float64(len(rows))
	return summary
}

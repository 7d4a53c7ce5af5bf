package model

import "time"

// JobStatus represents the current state of a batch scoring job.
// Transitions are monotone: pending -> processing -> {completed|failed}.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether the status allows no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Job is one batch scoring run over an uploaded dataset.
type Job struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	RowCount   int       `json:"row_count"`
	Status     JobStatus `json:"status"`
	OutputPath string    `json:"output_path,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ResultRow is the persisted outcome for a single lead. Rows are owned by
// their Job and cascade-deleted with it.
type ResultRow struct {
	ID       int64  `json:"id"`
	JobID    string `json:"job_id"`
	RowIndex int    `json:"row_index"`

	Name   string `json:"name"`
	Email  string `json:"email"`
	Date   string `json:"date,omitempty"`
	Domain string `json:"domain"`

	Score  int    `json:"score"`
	Reason string `json:"reason"`

	Breakdown    ScoreBreakdown `json:"breakdown"`
	Verification Verification   `json:"verification"`
	Enrichment   *Enrichment    `json:"enrichment,omitempty"`
}

// LogEntry is an append-only progress record for a job. Entries are never
// mutated and are read back in insertion order.
type LogEntry struct {
	ID        int64          `json:"id"`
	JobID     string         `json:"job_id"`
	Timestamp time.Time      `json:"timestamp"`
	Level     string         `json:"level"` // info, warning, error, success
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
}

// ProgressSnapshot is the ephemeral in-memory status of a running job.
// The persisted Job/LogEntry rows remain the system of record; a snapshot
// may be evicted after the job completes.
type ProgressSnapshot struct {
	JobID         string     `json:"job_id"`
	TotalRows     int        `json:"total_rows"`
	ProcessedRows int        `json:"processed_rows"`
	CurrentStep   string     `json:"current_step"`
	Message       string     `json:"message"`
	LogTail       []LogEntry `json:"logs,omitempty"`
}

// JobSummary is a Job decorated with per-job aggregates for history listings.
type JobSummary struct {
	Job
	AvgScore          float64        `json:"avg_score"`
	DomainAliveCount  int            `json:"domains_alive_count"`
	VerifiedByChecker map[string]int `json:"verified_counts,omitempty"`
}

// DomainStat is one entry in the top-domains statistic.
type DomainStat struct {
	Domain   string  `json:"domain"`
	Count    int     `json:"count"`
	AvgScore float64 `json:"avg_score"`
}

// Stats is the read-side aggregation over all persisted results.
type Stats struct {
	TotalJobs          int                `json:"total_jobs"`
	TotalLeads         int                `json:"total_leads_processed"`
	AverageScore       float64            `json:"average_score"`
	DomainAliveCount   int                `json:"domains_alive_count"`
	DomainAliveRate    float64            `json:"domain_alive_rate"`
	VerifiedByChecker  map[string]int     `json:"verified_counts"`
	VerifiedRates      map[string]float64 `json:"verified_rates"`
	CountsByDomainType map[string]int     `json:"counts_by_domain_type"`
	TopDomains         []DomainStat       `json:"top_domains"`
}

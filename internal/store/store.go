// Package store persists jobs, per-lead results and job logs. Two
// implementations exist: SQLite for single-node deployments and Postgres
// for shared ones.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/leadworks/salesfilter/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = eris.New("not found")

// JobFilter specifies criteria for listing jobs.
type JobFilter struct {
	Status model.JobStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for the scoring pipeline.
type Store interface {
	// Jobs
	CreateJob(ctx context.Context, filename string, rowCount int) (*model.Job, error)
	UpdateJobStatus(ctx context.Context, jobID string, status model.JobStatus) error
	UpdateJobRowCount(ctx context.Context, jobID string, rowCount int) error
	SetJobOutput(ctx context.Context, jobID, outputPath string) error
	GetJob(ctx context.Context, jobID string) (*model.Job, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]model.Job, error)
	DeleteJob(ctx context.Context, jobID string) error

	// Results
	InsertResultRow(ctx context.Context, row *model.ResultRow) error
	ListResultRows(ctx context.Context, jobID string) ([]model.ResultRow, error)

	// Logs
	AppendLog(ctx context.Context, entry *model.LogEntry) error
	ListLogs(ctx context.Context, jobID string, afterID int64) ([]model.LogEntry, error)

	// Aggregates
	JobSummary(ctx context.Context, jobID string) (*model.JobSummary, error)
	Stats(ctx context.Context) (*model.Stats, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

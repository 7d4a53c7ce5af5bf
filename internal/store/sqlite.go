package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/leadworks/salesfilter/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS jobs (
	id          TEXT PRIMARY KEY,
	filename    TEXT NOT NULL,
	row_count   INTEGER NOT NULL DEFAULT 0,
	status      TEXT NOT NULL DEFAULT 'pending',
	output_path TEXT,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS result_rows (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	job_id       TEXT NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
	row_index    INTEGER NOT NULL,
	name         TEXT NOT NULL DEFAULT '',
	email        TEXT NOT NULL DEFAULT '',
	date         TEXT NOT NULL DEFAULT '',
	domain       TEXT NOT NULL DEFAULT '',
	score        INTEGER NOT NULL,
	reason       TEXT NOT NULL DEFAULT '',
	breakdown    TEXT NOT NULL,
	verification TEXT NOT NULL,
	enrichment   TEXT
);

CREATE TABLE IF NOT EXISTS job_logs (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	job_id    TEXT NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
	ts        DATETIME NOT NULL,
	level     TEXT NOT NULL,
	message   TEXT NOT NULL,
	details   TEXT
);

CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
CREATE INDEX IF NOT EXISTS idx_result_rows_job_id ON result_rows(job_id);
CREATE INDEX IF NOT EXISTS idx_job_logs_job_id ON job_logs(job_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateJob(ctx context.Context, filename string, rowCount int) (*model.Job, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, filename, row_count, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, filename, rowCount, string(model.JobStatusPending), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert job")
	}

	return &model.Job{
		ID:        id,
		Filename:  filename,
		RowCount:  rowCount,
		Status:    model.JobStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) UpdateJobStatus(ctx context.Context, jobID string, status model.JobStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), jobID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update job status %s", jobID)
	}
	return checkRowsAffected(res, "job", jobID)
}

func (s *SQLiteStore) UpdateJobRowCount(ctx context.Context, jobID string, rowCount int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET row_count = ?, updated_at = ? WHERE id = ?`,
		rowCount, time.Now().UTC(), jobID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update job row count %s", jobID)
	}
	return checkRowsAffected(res, "job", jobID)
}

func (s *SQLiteStore) SetJobOutput(ctx context.Context, jobID, outputPath string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET output_path = ?, updated_at = ? WHERE id = ?`,
		outputPath, time.Now().UTC(), jobID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set job output %s", jobID)
	}
	return checkRowsAffected(res, "job", jobID)
}

func (s *SQLiteStore) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, filename, row_count, status, output_path, created_at, updated_at FROM jobs WHERE id = ?`,
		jobID,
	)
	return scanJob(row)
}

func (s *SQLiteStore) ListJobs(ctx context.Context, filter JobFilter) ([]model.Job, error) {
	query := `SELECT id, filename, row_count, status, output_path, created_at, updated_at FROM jobs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list jobs")
	}
	defer rows.Close()

	var jobs []model.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *j)
	}
	return jobs, eris.Wrap(rows.Err(), "sqlite: list jobs iterate")
}

func (s *SQLiteStore) DeleteJob(ctx context.Context, jobID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, jobID)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete job %s", jobID)
	}
	return checkRowsAffected(res, "job", jobID)
}

func (s *SQLiteStore) InsertResultRow(ctx context.Context, row *model.ResultRow) error {
	breakdownJSON, verificationJSON, enrichmentJSON, err := marshalRowBlobs(row)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO result_rows (job_id, row_index, name, email, date, domain, score, reason, breakdown, verification, enrichment)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.JobID, row.RowIndex, row.Name, row.Email, row.Date, row.Domain,
		row.Score, row.Reason, breakdownJSON, verificationJSON, enrichmentJSON,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert result row for job %s", row.JobID)
	}
	if id, err := res.LastInsertId(); err == nil {
		row.ID = id
	}
	return nil
}

func (s *SQLiteStore) ListResultRows(ctx context.Context, jobID string) ([]model.ResultRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, job_id, row_index, name, email, date, domain, score, reason, breakdown, verification, enrichment
		 FROM result_rows WHERE job_id = ? ORDER BY row_index ASC`,
		jobID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list result rows for job %s", jobID)
	}
	defer rows.Close()

	var out []model.ResultRow
	for rows.Next() {
		r, err := scanResultRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list result rows iterate")
}

func (s *SQLiteStore) AppendLog(ctx context.Context, entry *model.LogEntry) error {
	var detailsJSON sql.NullString
	if len(entry.Details) > 0 {
		data, err := json.Marshal(entry.Details)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal log details")
		}
		detailsJSON = sql.NullString{String: string(data), Valid: true}
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO job_logs (job_id, ts, level, message, details) VALUES (?, ?, ?, ?, ?)`,
		entry.JobID, entry.Timestamp, entry.Level, entry.Message, detailsJSON,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: append log for job %s", entry.JobID)
	}
	if id, err := res.LastInsertId(); err == nil {
		entry.ID = id
	}
	return nil
}

func (s *SQLiteStore) ListLogs(ctx context.Context, jobID string, afterID int64) ([]model.LogEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, job_id, ts, level, message, details FROM job_logs
		 WHERE job_id = ? AND id > ? ORDER BY id ASC`,
		jobID, afterID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list logs for job %s", jobID)
	}
	defer rows.Close()

	var out []model.LogEntry
	for rows.Next() {
		var e model.LogEntry
		var detailsJSON sql.NullString
		if err := rows.Scan(&e.ID, &e.JobID, &e.Timestamp, &e.Level, &e.Message, &detailsJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan log entry")
		}
		if detailsJSON.Valid {
			if err := json.Unmarshal([]byte(detailsJSON.String), &e.Details); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal log details")
			}
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list logs iterate")
}

func (s *SQLiteStore) JobSummary(ctx context.Context, jobID string) (*model.JobSummary, error) {
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	rows, err := s.ListResultRows(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return summarizeJob(job, rows), nil
}

func (s *SQLiteStore) Stats(ctx context.Context) (*model.Stats, error) {
	var totalJobs int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM jobs`).Scan(&totalJobs); err != nil {
		return nil, eris.Wrap(err, "sqlite: count jobs")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, job_id, row_index, name, email, date, domain, score, reason, breakdown, verification, enrichment
		 FROM result_rows`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: stats rows")
	}
	defer rows.Close()

	var all []model.ResultRow
	for rows.Next() {
		r, err := scanResultRow(rows)
		if err != nil {
			return nil, err
		}
		all = append(all, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: stats rows iterate")
	}
	return computeStats(totalJobs, all), nil
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanJob(row scannable) (*model.Job, error) {
	var j model.Job
	var outputPath sql.NullString

	err := row.Scan(&j.ID, &j.Filename, &j.RowCount, &j.Status, &outputPath, &j.CreatedAt, &j.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.Wrap(ErrNotFound, "job")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan job")
	}
	j.OutputPath = outputPath.String
	return &j, nil
}

func scanResultRow(row scannable) (*model.ResultRow, error) {
	var r model.ResultRow
	var breakdownJSON, verificationJSON string
	var enrichmentJSON sql.NullString

	err := row.Scan(&r.ID, &r.JobID, &r.RowIndex, &r.Name, &r.Email, &r.Date, &r.Domain,
		&r.Score, &r.Reason, &breakdownJSON, &verificationJSON, &enrichmentJSON)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan result row")
	}
	if err := json.Unmarshal([]byte(breakdownJSON), &r.Breakdown); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal breakdown")
	}
	if err := json.Unmarshal([]byte(verificationJSON), &r.Verification); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal verification")
	}
	if enrichmentJSON.Valid {
		r.Enrichment = &model.Enrichment{}
		if err := json.Unmarshal([]byte(enrichmentJSON.String), r.Enrichment); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal enrichment")
		}
	}
	return &r, nil
}

func marshalRowBlobs(row *model.ResultRow) (string, string, sql.NullString, error) {
	breakdownJSON, err := json.Marshal(row.Breakdown)
	if err != nil {
		return "", "", sql.NullString{}, eris.Wrap(err, "store: marshal breakdown")
	}
	verificationJSON, err := json.Marshal(row.Verification)
	if err != nil {
		return "", "", sql.NullString{}, eris.Wrap(err, "store: marshal verification")
	}
	var enrichmentJSON sql.NullString
	if row.Enrichment != nil {
		data, err := json.Marshal(row.Enrichment)
		if err != nil {
			return "", "", sql.NullString{}, eris.Wrap(err, "store: marshal enrichment")
		}
		enrichmentJSON = sql.NullString{String: string(data), Valid: true}
	}
	return string(breakdownJSON), string(verificationJSON), enrichmentJSON, nil
}

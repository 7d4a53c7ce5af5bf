package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/leadworks/salesfilter/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies it
// in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool, mainly for tests.
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS jobs (
	id          TEXT PRIMARY KEY,
	filename    TEXT NOT NULL,
	row_count   INTEGER NOT NULL DEFAULT 0,
	status      TEXT NOT NULL DEFAULT 'pending',
	output_path TEXT,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS result_rows (
	id           BIGSERIAL PRIMARY KEY,
	job_id       TEXT NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
	row_index    INTEGER NOT NULL,
	name         TEXT NOT NULL DEFAULT '',
	email        TEXT NOT NULL DEFAULT '',
	date         TEXT NOT NULL DEFAULT '',
	domain       TEXT NOT NULL DEFAULT '',
	score        INTEGER NOT NULL,
	reason       TEXT NOT NULL DEFAULT '',
	breakdown    JSONB NOT NULL,
	verification JSONB NOT NULL,
	enrichment   JSONB
);

CREATE TABLE IF NOT EXISTS job_logs (
	id      BIGSERIAL PRIMARY KEY,
	job_id  TEXT NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
	ts      TIMESTAMPTZ NOT NULL,
	level   TEXT NOT NULL,
	message TEXT NOT NULL,
	details JSONB
);

CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
CREATE INDEX IF NOT EXISTS idx_result_rows_job_id ON result_rows(job_id);
CREATE INDEX IF NOT EXISTS idx_job_logs_job_id ON job_logs(job_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateJob(ctx context.Context, filename string, rowCount int) (*model.Job, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO jobs (id, filename, row_count, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, filename, rowCount, string(model.JobStatusPending), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert job")
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

func (s *PostgresStore) UpdateJobStatus(ctx context.Context, jobID string, status model.JobStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), jobID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update job status %s", jobID)
	}
	return checkTag(tag, "job", jobID)
}

func (s *PostgresStore) UpdateJobRowCount(ctx context.Context, jobID string, rowCount int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET row_count = $1, updated_at = $2 WHERE id = $3`,
		rowCount, time.Now().UTC(), jobID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update job row count %s", jobID)
	}
	return checkTag(tag, "job", jobID)
}

func (s *PostgresStore) SetJobOutput(ctx context.Context, jobID, outputPath string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET output_path = $1, updated_at = $2 WHERE id = $3`,
		outputPath, time.Now().UTC(), jobID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set job output %s", jobID)
	}
	return checkTag(tag, "job", jobID)
}

func (s *PostgresStore) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, filename, row_count, status, output_path, created_at, updated_at FROM jobs WHERE id = $1`,
		jobID,
	)
	return scanPgJob(row)
}

func (s *PostgresStore) ListJobs(ctx context.Context, filter JobFilter) ([]model.Job, error) {
	query := `SELECT id, filename, row_count, status, output_path, created_at, updated_at FROM jobs`
	var args []any

	if filter.Status != "" {
		query += ` WHERE status = $1`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += placeholder(` LIMIT`, len(args))

	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += placeholder(` OFFSET`, len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list jobs")
	}
	defer rows.Close()

	var jobs []model.Job
	for rows.Next() {
		j, err := scanPgJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *j)
	}
	return jobs, eris.Wrap(rows.Err(), "postgres: list jobs iterate")
}

func (s *PostgresStore) DeleteJob(ctx context.Context, jobID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM jobs WHERE id = $1`, jobID)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete job %s", jobID)
	}
	return checkTag(tag, "job", jobID)
}

func (s *PostgresStore) InsertResultRow(ctx context.Context, row *model.ResultRow) error {
	breakdownJSON, verificationJSON, enrichmentJSON, err := marshalRowBlobs(row)
	if err != nil {
		return err
	}

	var enrichment any
	if enrichmentJSON.Valid {
		enrichment = enrichmentJSON.String
	}

	err = s.pool.QueryRow(ctx,
		`INSERT INTO result_rows (job_id, row_index, name, email, date, domain, score, reason, breakdown, verification, enrichment)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) RETURNING id`,
		row.JobID, row.RowIndex, row.Name, row.Email, row.Date, row.Domain,
		row.Score, row.Reason, breakdownJSON, verificationJSON, enrichment,
	).Scan(&row.ID)
	if err != nil {
		return eris.Wrapf(err, "postgres: insert result row for job %s", row.JobID)
	}
	return nil
}

func (s *PostgresStore) ListResultRows(ctx context.Context, jobID string) ([]model.ResultRow, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, job_id, row_index, name, email, date, domain, score, reason, breakdown, verification, enrichment
		 FROM result_rows WHERE job_id = $1 ORDER BY row_index ASC`,
		jobID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list result rows for job %s", jobID)
	}
	defer rows.Close()

	var out []model.ResultRow
	for rows.Next() {
		r, err := scanPgResultRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list result rows iterate")
}

func (s *PostgresStore) AppendLog(ctx context.Context, entry *model.LogEntry) error {
	var details any
	if len(entry.Details) > 0 {
		data, err := json.Marshal(entry.Details)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal log details")
		}
		details = string(data)
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	err := s.pool.QueryRow(ctx,
		`INSERT INTO job_logs (job_id, ts, level, message, details) VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		entry.JobID, entry.Timestamp, entry.Level, entry.Message, details,
	).Scan(&entry.ID)
	if err != nil {
		return eris.Wrapf(err, "postgres: append log for job %s", entry.JobID)
	}
	return nil
}

func (s *PostgresStore) ListLogs(ctx context.Context, jobID string, afterID int64) ([]model.LogEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, job_id, ts, level, message, details FROM job_logs
		 WHERE job_id = $1 AND id > $2 ORDER BY id ASC`,
		jobID, afterID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list logs for job %s", jobID)
	}
	defer rows.Close()

	var out []model.LogEntry
	for rows.Next() {
		var e model.LogEntry
		var detailsJSON []byte
		if err := rows.Scan(&e.ID, &e.JobID, &e.Timestamp, &e.Level, &e.Message, &detailsJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan log entry")
		}
		if len(detailsJSON) > 0 {
			if err := json.Unmarshal(detailsJSON, &e.Details); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal log details")
			}
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list logs iterate")
}

func (s *PostgresStore) JobSummary(ctx context.Context, jobID string) (*model.JobSummary, error) {
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

func (s *PostgresStore) Stats(ctx context.Context) (*model.Stats, error) {
	var totalJobs int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM jobs`).Scan(&totalJobs); err != nil {
		return nil, eris.Wrap(err, "postgres: count jobs")
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, job_id, row_index, name, email, date, domain, score, reason, breakdown, verification, enrichment
		 FROM result_rows`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: stats rows")
	}
	defer rows.Close()

	var all []model.ResultRow
	for rows.Next() {
		r, err := scanPgResultRow(rows)
		if err != nil {
			return nil, err
		}
		all = append(all, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: stats rows iterate")
	}
	return computeStats(totalJobs, all), nil
}

// helpers

func checkTag(tag pgconn.CommandTag, entity, id string) error {
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

func placeholder(prefix string, n int) string {
	return fmt.Sprintf("%s $%d", prefix, n)
}

type pgScannable interface {
	Scan(dest ...any) error
}

func scanPgJob(row pgScannable) (*model.Job, error) {
	var j model.Job
	var outputPath sql.NullString

	err := row.Scan(&j.ID, &j.Filename, &j.RowCount, &j.Status, &outputPath, &j.CreatedAt, &j.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrap(ErrNotFound, "job")
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan job")
	}
	j.OutputPath = outputPath.String
	return &j, nil
}

func scanPgResultRow(row pgScannable) (*model.ResultRow, error) {
	var r model.ResultRow
	var breakdownJSON, verificationJSON []byte
	var enrichmentJSON []byte

	err := row.Scan(&r.ID, &r.JobID, &r.RowIndex, &r.Name, &r.Email, &r.Date, &r.Domain,
		&r.Score, &r.Reason, &breakdownJSON, &verificationJSON, &enrichmentJSON)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan result row")
	}
	if err := json.Unmarshal(breakdownJSON, &r.Breakdown); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal breakdown")
	}
	if err := json.Unmarshal(verificationJSON, &r.Verification); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal verification")
	}
	if len(enrichmentJSON) > 0 {
		r.Enrichment = &model.Enrichment{}
		if err := json.Unmarshal(enrichmentJSON, r.Enrichment); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal enrichment")
		}
	}
	return &r, nil
}

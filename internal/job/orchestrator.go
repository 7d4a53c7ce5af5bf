// Package job runs batch scoring jobs: parsing an upload into rows,
// scoring each row through the rule engine and verification adapters,
// persisting results, and producing the output artifact.
package job

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/leadworks/salesfilter/internal/fetcher"
	"github.com/leadworks/salesfilter/internal/model"
	"github.com/leadworks/salesfilter/internal/scoring"
	"github.com/leadworks/salesfilter/internal/store"
	"github.com/leadworks/salesfilter/internal/verify"
)

// Config tunes job execution.
type Config struct {
	// MaxConcurrent bounds how many jobs run at once. Additional
	// submissions queue for a free slot.
	MaxConcurrent int
	// OutputDir receives the generated artifacts.
	OutputDir string
}

func (c Config) withDefaults() Config {
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 2
	}
	if c.OutputDir == "" {
		c.OutputDir = os.TempDir()
	}
	return c
}

// Orchestrator owns the async job pipeline. Submissions return a job id
// immediately; the work itself runs on a bounded pool.
type Orchestrator struct {
	store    store.Store
	engine   *scoring.Engine
	registry *verify.Registry
	liveness *verify.Liveness
	enricher *verify.Enricher
	tracker  *Tracker
	cfg      Config

	pool *errgroup.Group
	// submitting covers the window between Submit returning and the job
	// registering with the pool, so Wait cannot race past a fresh submission.
	submitting sync.WaitGroup
}

func NewOrchestrator(
	st store.Store,
	engine *scoring.Engine,
	registry *verify.Registry,
	liveness *verify.Liveness,
	enricher *verify.Enricher,
	tracker *Tracker,
	cfg Config,
) *Orchestrator {
	cfg = cfg.withDefaults()
	pool := &errgroup.Group{}
	pool.SetLimit(cfg.MaxConcurrent)
	return &Orchestrator{
		store:    st,
		engine:   engine,
		registry: registry,
		liveness: liveness,
		enricher: enricher,
		tracker:  tracker,
		cfg:      cfg,
		pool:     pool,
	}
}

// Tracker exposes the progress tracker for the HTTP layer.
func (o *Orchestrator) Tracker() *Tracker { return o.tracker }

// Submit registers a job for the parsed upload and schedules it on the
// pool. The returned id is valid for progress queries immediately, before
// any row is scored.
func (o *Orchestrator) Submit(ctx context.Context, sheet *fetcher.Sheet, filename string) (string, error) {
	job, err := o.store.CreateJob(ctx, filename, len(sheet.Rows))
	if err != nil {
		return "", eris.Wrap(err, "job: create job")
	}
	o.tracker.Start(job.ID, len(sheet.Rows))

	o.submitting.Add(1)
	go func() {
		defer o.submitting.Done()
		o.pool.Go(func() error {
			o.process(context.Background(), job.ID, sheet)
			return nil
		})
	}()
	return job.ID, nil
}

// Run executes a job synchronously, for CLI use.
func (o *Orchestrator) Run(ctx context.Context, sheet *fetcher.Sheet, filename string) (string, error) {
	job, err := o.store.CreateJob(ctx, filename, len(sheet.Rows))
	if err != nil {
		return "", eris.Wrap(err, "job: create job")
	}
	o.tracker.Start(job.ID, len(sheet.Rows))
	o.process(ctx, job.ID, sheet)
	return job.ID, nil
}

// Wait blocks until all submitted jobs have drained.
func (o *Orchestrator) Wait() {
	o.submitting.Wait()
	_ = o.pool.Wait()
}

func (o *Orchestrator) process(ctx context.Context, jobID string, sheet *fetcher.Sheet) {
	start := time.Now()
	if err := o.store.UpdateJobStatus(ctx, jobID, model.JobStatusProcessing); err != nil {
		zap.L().Error("job: mark processing", zap.String("job_id", jobID), zap.Error(err))
	}
	o.tracker.Step(jobID, "validating", "checking upload columns")
	cols, err := fetcher.ResolveColumns(sheet.Header)
	if err != nil {
		o.log(ctx, jobID, "error", err.Error(), map[string]any{"header": sheet.Header})
		o.finish(ctx, jobID, model.JobStatusFailed)
		return
	}

	o.log(ctx, jobID, "info", fmt.Sprintf("processing started with %d rows", len(sheet.Rows)), nil)
	o.tracker.Step(jobID, "scoring", "scoring rows")
	// Rows run one at a time so logs and progress arrive in row order.
	// Concurrency lives at the job level, on the pool.
	for i, raw := range sheet.Rows {
		if err := o.processRow(ctx, jobID, i, raw, cols); err != nil {
			// the row is excluded, the job continues
			zap.L().Warn("job: row failed", zap.String("job_id", jobID), zap.Int("row", i), zap.Error(err))
			o.log(ctx, jobID, "error", fmt.Sprintf("row %d failed: %s", i+1, eris.Cause(err).Error()),
				map[string]any{"row": i + 1})
		}
		o.tracker.RowDone(jobID)
	}

	o.tracker.Step(jobID, "output", "writing result artifact")
	if err := o.finalize(ctx, jobID); err != nil {
		zap.L().Error("job: finalize failed", zap.String("job_id", jobID), zap.Error(err))
		o.log(ctx, jobID, "error", "failed to produce output: "+eris.Cause(err).Error(), nil)
		o.finish(ctx, jobID, model.JobStatusFailed)
		return
	}

	o.log(ctx, jobID, "success", fmt.Sprintf("processing finished in %s", time.Since(start).Round(time.Millisecond)), nil)
	o.finish(ctx, jobID, model.JobStatusCompleted)
}

func (o *Orchestrator) processRow(ctx context.Context, jobID string, idx int, raw []string, cols fetcher.Columns) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("row panicked: %v", r)
		}
	}()

	lead := model.LeadRow{
		Name:  fetcher.Cell(raw, cols.Name),
		Email: fetcher.Cell(raw, cols.Email),
		Date:  fetcher.Cell(raw, cols.Date),
	}
	domain := scoring.ExtractDomain(lead.Email)
	free := o.engine.Rules().IsFreeProvider(domain)

	var verification model.Verification
	switch {
	case domain == "":
		verification.DomainSkipped = true
		verification.DomainDetail = "no valid domain"
	case free:
		verification.DomainSkipped = true
		verification.DomainDetail = "consumer provider, liveness not probed"
	case o.liveness != nil:
		verification.DomainAlive, verification.DomainDetail = o.liveness.Check(ctx, domain)
	}
	if o.registry != nil {
		verification.Checks = o.registry.RunAll(ctx, lead.Name, lead.Email, domain)
	}

	var enrichment *model.Enrichment
	if o.enricher != nil {
		enrichment = o.enricher.Enrich(ctx, lead, domain)
	}

	score, reason, breakdown := o.engine.Score(lead.Name, lead.Email, verification)
	if enrichment != nil && enrichment.ScoreAdjustment != 0 {
		score = o.engine.Rules().Clamp(score + enrichment.ScoreAdjustment)
		reason = fmt.Sprintf("%s, enrichment %+d, adjusted total = %d", reason, enrichment.ScoreAdjustment, score)
	}

	row := &model.ResultRow{
		JobID:        jobID,
		RowIndex:     idx,
		Name:         lead.Name,
		Email:        lead.Email,
		Date:         lead.Date,
		Domain:       domain,
		Score:        score,
		Reason:       reason,
		Breakdown:    breakdown,
		Verification: verification,
		Enrichment:   enrichment,
	}
	if err := o.store.InsertResultRow(ctx, row); err != nil {
		return err
	}

	o.log(ctx, jobID, "info", fmt.Sprintf("row %d scored %d", idx+1, score),
		map[string]any{"row": idx + 1, "score": score, "domain": domain})
	return nil
}

func (o *Orchestrator) finalize(ctx context.Context, jobID string) error {
	rows, err := o.store.ListResultRows(ctx, jobID)
	if err != nil {
		return err
	}

	path := filepath.Join(o.cfg.OutputDir, jobID+".xlsx")
	if err := WriteOutput(path, rows); err != nil {
		return err
	}
	if err := o.store.SetJobOutput(ctx, jobID, path); err != nil {
		// half-written state: drop the artifact so download never serves
		// a file the job row does not reference
		_ = os.Remove(path)
		return err
	}
	return nil
}

func (o *Orchestrator) finish(ctx context.Context, jobID string, status model.JobStatus) {
	if err := o.store.UpdateJobStatus(ctx, jobID, status); err != nil {
		zap.L().Error("job: update terminal status", zap.String("job_id", jobID), zap.Error(err))
	}
	o.tracker.Finish(jobID, status)
	zap.L().Info("job: finished", zap.String("job_id", jobID), zap.String("status", string(status)))
}

// log persists a job log entry and mirrors it into the tracker.
func (o *Orchestrator) log(ctx context.Context, jobID, level, message string, details map[string]any) {
	entry := &model.LogEntry{
		JobID:     jobID,
		Timestamp: time.Now().UTC(),
		Level:     level,
		Message:   message,
		Details:   details,
	}
	if err := o.store.AppendLog(ctx, entry); err != nil {
		zap.L().Warn("job: append log", zap.String("job_id", jobID), zap.Error(err))
	}
	o.tracker.AppendLog(jobID, *entry)
}

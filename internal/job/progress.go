package job

import (
	"sync"
	"time"

	"github.com/leadworks/salesfilter/internal/model"
)

const logTailSize = 10

// Tracker keeps the in-memory progress of running jobs and fans change
// notifications out to subscribers. The persisted job and log rows remain
// the system of record; tracker state for a finished job is evicted after
// a grace period so late pollers still see the final snapshot.
type Tracker struct {
	mu    sync.Mutex
	jobs  map[string]*jobProgress
	grace time.Duration
}

type jobProgress struct {
	snapshot model.ProgressSnapshot
	status   model.JobStatus
	logs     []model.LogEntry

	subs    map[int]chan struct{}
	nextSub int
	evict   *time.Timer
}

func NewTracker(grace time.Duration) *Tracker {
	if grace <= 0 {
		grace = 300 * time.Second
	}
	return &Tracker{jobs: make(map[string]*jobProgress), grace: grace}
}

// Start registers a job. Restarting an id resets its state.
func (t *Tracker) Start(jobID string, totalRows int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.jobs[jobID] = &jobProgress{
		snapshot: model.ProgressSnapshot{JobID: jobID, TotalRows: totalRows, CurrentStep: "starting"},
		status:   model.JobStatusProcessing,
		subs:     make(map[int]chan struct{}),
	}
}

// SetTotal adjusts the expected row count after the upload is parsed.
func (t *Tracker) SetTotal(jobID string, totalRows int) {
	t.withJob(jobID, func(p *jobProgress) {
		p.snapshot.TotalRows = totalRows
	})
}

// Step records the current pipeline stage and message.
func (t *Tracker) Step(jobID, step, message string) {
	t.withJob(jobID, func(p *jobProgress) {
		p.snapshot.CurrentStep = step
		p.snapshot.Message = message
	})
}

// RowDone increments the processed-row counter.
func (t *Tracker) RowDone(jobID string) {
	t.withJob(jobID, func(p *jobProgress) {
		p.snapshot.ProcessedRows++
	})
}

// AppendLog records a log entry and notifies subscribers.
func (t *Tracker) AppendLog(jobID string, entry model.LogEntry) {
	t.withJob(jobID, func(p *jobProgress) {
		p.logs = append(p.logs, entry)
	})
}

// Finish marks the job terminal and schedules eviction after the grace
// period. Subscribers get one final notification.
func (t *Tracker) Finish(jobID string, status model.JobStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.jobs[jobID]
	if !ok {
		return
	}
	p.status = status
	p.snapshot.CurrentStep = string(status)
	notifyLocked(p)

	if p.evict != nil {
		p.evict.Stop()
	}
	p.evict = time.AfterFunc(t.grace, func() { t.evictJob(jobID) })
}

func (t *Tracker) evictJob(jobID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.jobs[jobID]
	if !ok {
		return
	}
	for _, ch := range p.subs {
		close(ch)
	}
	delete(t.jobs, jobID)
}

// Snapshot returns the current progress and terminal status. Status stays
// processing until Finish is called.
func (t *Tracker) Snapshot(jobID string) (model.ProgressSnapshot, model.JobStatus, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.jobs[jobID]
	if !ok {
		return model.ProgressSnapshot{}, "", false
	}
	snap := p.snapshot
	tail := p.logs
	if len(tail) > logTailSize {
		tail = tail[len(tail)-logTailSize:]
	}
	snap.LogTail = append([]model.LogEntry(nil), tail...)
	return snap, p.status, true
}

// LogsAfter returns log entries past the cursor plus the new cursor.
// Each subscriber carries its own cursor so slow consumers never miss
// entries and fast ones never see duplicates.
func (t *Tracker) LogsAfter(jobID string, cursor int) ([]model.LogEntry, int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.jobs[jobID]
	if !ok || cursor >= len(p.logs) {
		return nil, cursor
	}
	out := append([]model.LogEntry(nil), p.logs[cursor:]...)
	return out, len(p.logs)
}

// Subscribe returns a coalescing change-notification channel and a cancel
// function. The channel is closed when the job is evicted.
func (t *Tracker) Subscribe(jobID string) (<-chan struct{}, func(), bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.jobs[jobID]
	if !ok {
		return nil, nil, false
	}
	id := p.nextSub
	p.nextSub++
	ch := make(chan struct{}, 1)
	p.subs[id] = ch

	cancel := func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if p, ok := t.jobs[jobID]; ok {
			if ch, ok := p.subs[id]; ok {
				delete(p.subs, id)
				close(ch)
			}
		}
	}
	return ch, cancel, true
}

func (t *Tracker) withJob(jobID string, fn func(*jobProgress)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.jobs[jobID]
	if !ok {
		return
	}
	fn(p)
	notifyLocked(p)
}

func notifyLocked(p *jobProgress) {
	for _, ch := range p.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/leadworks/salesfilter/internal/model"
)

// handleProgressStream pushes progress over server-sent events. Tracked
// jobs stream live updates; evicted ones replay the persisted outcome.
// Events are JSON objects with a "type" of connected, progress, log,
// ping or complete.
func (s *Server) handleProgressStream(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")
	ctx := r.Context()

	ch, cancel, tracked := s.orch.Tracker().Subscribe(jobID)
	var job *model.Job
	if !tracked {
		var err error
		job, err = s.store.GetJob(ctx, jobID)
		if err != nil {
			s.respondStoreError(w, err, "load job")
			return
		}
	} else {
		defer cancel()
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	send := func(payload any) bool {
		data, err := json.Marshal(payload)
		if err != nil {
			return false
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	if !send(map[string]any{"type": "connected", "job_id": jobID}) {
		return
	}
	if tracked {
		s.streamLive(ctx, jobID, ch, send)
		return
	}
	s.streamPersisted(ctx, job, send)
}

// streamLive follows tracker notifications until the job finishes or the
// client disconnects. Each subscriber keeps its own log cursor so no entry
// is duplicated or dropped.
func (s *Server) streamLive(ctx context.Context, jobID string, ch <-chan struct{}, send func(any) bool) {
	tracker := s.orch.Tracker()
	cursor := 0

	emit := func() (done bool) {
		snap, status, ok := tracker.Snapshot(jobID)
		if !ok {
			return true
		}
		if !send(map[string]any{"type": "progress", "data": snap}) {
			return true
		}
		var logs []model.LogEntry
		logs, cursor = tracker.LogsAfter(jobID, cursor)
		for _, l := range logs {
			if !send(map[string]any{"type": "log", "data": l}) {
				return true
			}
		}
		if status.Terminal() {
			send(map[string]any{"type": "complete", "status": status})
			return true
		}
		return false
	}

	if emit() {
		return
	}
	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case _, open := <-ch:
			if !open {
				// evicted mid-stream, the persisted row has the outcome
				if job, err := s.store.GetJob(ctx, jobID); err == nil && job.Status.Terminal() {
					send(map[string]any{"type": "complete", "status": job.Status})
				}
				return
			}
			if emit() {
				return
			}
		case <-heartbeat.C:
			if !send(map[string]any{"type": "ping"}) {
				return
			}
		}
	}
}

// streamPersisted replays a job the tracker no longer holds. Logs come
// back from the store; a job that is somehow still running is polled
// until it reaches a terminal state.
func (s *Server) streamPersisted(ctx context.Context, job *model.Job, send func(any) bool) {
	if !send(map[string]any{"type": "progress", "data": persistedSnapshot(job)}) {
		return
	}
	if logs, err := s.store.ListLogs(ctx, job.ID, 0); err == nil {
		for _, l := range logs {
			if !send(map[string]any{"type": "log", "data": l}) {
				return
			}
		}
	}
	if job.Status.Terminal() {
		send(map[string]any{"type": "complete", "status": job.Status})
		return
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cur, err := s.store.GetJob(ctx, job.ID)
			if err != nil {
				return
			}
			if cur.Status.Terminal() {
				send(map[string]any{"type": "progress", "data": persistedSnapshot(cur)})
				send(map[string]any{"type": "complete", "status": cur.Status})
				return
			}
		}
	}
}

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/leadworks/salesfilter/internal/fetcher"
	"github.com/leadworks/salesfilter/internal/model"
	"github.com/leadworks/salesfilter/internal/store"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "salesfilter"})
}

// handleProcess accepts a multipart XLSX upload and schedules a scoring
// job. The response carries the job id before any row is scored.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart request")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "no file provided")
		return
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".xlsx") {
		respondError(w, http.StatusBadRequest, "only .xlsx files are supported")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read upload")
		return
	}
	sheet, err := fetcher.ReadXLSXBytes(data)
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse workbook")
		return
	}

	jobID, err := s.orch.Submit(r.Context(), sheet, header.Filename)
	if err != nil {
		zap.L().Error("server: submit job", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to create job")
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]any{"success": true, "job_id": jobID})
}

// handleProgress returns the live snapshot for a running job, falling back
// to the persisted record once the tracker has evicted it.
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")

	if snap, status, ok := s.orch.Tracker().Snapshot(jobID); ok {
		respondJSON(w, http.StatusOK, map[string]any{
			"success":  true,
			"status":   status,
			"progress": snap,
		})
		return
	}

	job, err := s.store.GetJob(r.Context(), jobID)
	if err != nil {
		s.respondStoreError(w, err, "load job")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"status":   job.Status,
		"progress": persistedSnapshot(job),
	})
}

// persistedSnapshot reconstructs a progress view from the stored job row.
func persistedSnapshot(job *model.Job) model.ProgressSnapshot {
	snap := model.ProgressSnapshot{
		JobID:       job.ID,
		TotalRows:   job.RowCount,
		CurrentStep: string(job.Status),
	}
	if job.Status == model.JobStatusCompleted {
		snap.ProcessedRows = job.RowCount
	}
	return snap
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")

	if _, err := s.store.GetJob(r.Context(), jobID); err != nil {
		s.respondStoreError(w, err, "load job")
		return
	}
	logs, err := s.store.ListLogs(r.Context(), jobID, 0)
	if err != nil {
		s.respondStoreError(w, err, "list logs")
		return
	}

	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		for _, l := range logs {
			fmt.Fprintf(w, "%s [%s] %s\n", l.Timestamp.Format("2006-01-02 15:04:05"), strings.ToUpper(l.Level), l.Message)
		}
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "logs": logs})
}

// handleDownload serves the output artifact for a completed job.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")

	job, err := s.store.GetJob(r.Context(), jobID)
	if err != nil {
		s.respondStoreError(w, err, "load job")
		return
	}
	if job.Status != model.JobStatusCompleted || job.OutputPath == "" {
		respondError(w, http.StatusConflict, "job has no downloadable output")
		return
	}
	if _, err := os.Stat(job.OutputPath); err != nil {
		respondError(w, http.StatusNotFound, "output artifact is no longer available")
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "scored_"+job.Filename))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	http.ServeFile(w, r, job.OutputPath)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	filter := store.JobFilter{Limit: 50}

	if v := r.URL.Query().Get("status"); v != "" {
		switch status := model.JobStatus(v); status {
		case model.JobStatusPending, model.JobStatusProcessing, model.JobStatusCompleted, model.JobStatusFailed:
			filter.Status = status
		default:
			respondError(w, http.StatusBadRequest, "unknown status filter")
			return
		}
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			respondError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		filter.Limit = n
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "offset must be >= 0")
			return
		}
		filter.Offset = n
	}

	jobs, err := s.store.ListJobs(r.Context(), filter)
	if err != nil {
		s.respondStoreError(w, err, "list jobs")
		return
	}
	if jobs == nil {
		jobs = []model.Job{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "jobs": jobs})
}

func (s *Server) handleJobSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.store.JobSummary(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondStoreError(w, err, "job summary")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "job": summary})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		s.respondStoreError(w, err, "stats")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "stats": stats})
}

// respondStoreError maps persistence errors onto HTTP statuses.
func (s *Server) respondStoreError(w http.ResponseWriter, err error, action string) {
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}
	zap.L().Error("server: "+action, zap.Error(err))
	respondError(w, http.StatusInternalServerError, "internal error")
}

func respondJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("server: encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, code int, msg string) {
	respondJSON(w, code, map[string]string{"error": msg})
}

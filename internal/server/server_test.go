package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/leadworks/salesfilter/internal/job"
	"github.com/leadworks/salesfilter/internal/model"
	"github.com/leadworks/salesfilter/internal/scoring"
	"github.com/leadworks/salesfilter/internal/store"
	"github.com/leadworks/salesfilter/internal/verify"
)

func newTestServer(t *testing.T) (*Server, store.Store) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "server.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { _ = st.Close() })

	rules := scoring.DefaultRules()
	registry := verify.NewRegistry(
		verify.NewProfessional(rules),
		verify.NewSocial(rules),
		verify.NewCodeHost(rules, "", 100),
	)
	orch := job.NewOrchestrator(
		st,
		scoring.NewEngine(rules),
		registry,
		nil,
		nil,
		job.NewTracker(time.Minute),
		job.Config{OutputDir: t.TempDir()},
	)
	return New(st, orch), st
}

func xlsxUpload(t *testing.T, rows [][]string) (*bytes.Buffer, string) {
	t.Helper()
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Leads")
	require.NoError(t, err)
	for _, cells := range rows {
		row := sheet.AddRow()
		for _, c := range cells {
			row.AddCell().SetString(c)
		}
	}
	var doc bytes.Buffer
	require.NoError(t, f.Write(&doc))

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	fw, err := mw.CreateFormFile("file", "leads.xlsx")
	require.NoError(t, err)
	_, err = fw.Write(doc.Bytes())
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return body, mw.FormDataContentType()
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func waitCompleted(t *testing.T, st store.Store, jobID string) *model.Job {
	t.Helper()
	var j *model.Job
	require.Eventually(t, func() bool {
		var err error
		j, err = st.GetJob(context.Background(), jobID)
		return err == nil && j.Status.Terminal()
	}, 10*time.Second, 10*time.Millisecond)
	return j
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decodeJSON(t, rec)["status"])
}

func TestProcessLifecycle(t *testing.T) {
	s, st := newTestServer(t)
	router := s.Router()

	body, contentType := xlsxUpload(t, [][]string{
		{"Name", "Email", "Date"},
		{"John Smith", "j.smith@globaltel.net", "2024-01-05"},
		{"", "test123@yahoo.com", ""},
	})
	req := httptest.NewRequest(http.MethodPost, "/process", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	resp := decodeJSON(t, rec)
	jobID, _ := resp["job_id"].(string)
	require.NotEmpty(t, jobID)

	j := waitCompleted(t, st, jobID)
	require.Equal(t, model.JobStatusCompleted, j.Status)

	// progress comes from the tracker while it still holds the job
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/progress/"+jobID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	progress := decodeJSON(t, rec)["progress"].(map[string]any)
	assert.Equal(t, float64(2), progress["processed_rows"])
	assert.Equal(t, "completed", progress["current_step"])

	// logs
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/logs/"+jobID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	logs := decodeJSON(t, rec)["logs"].([]any)
	assert.NotEmpty(t, logs)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/logs/"+jobID+"?format=text", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "[INFO]")

	// download
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/download/"+jobID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "scored_leads.xlsx")
	_, err := xlsx.OpenBinary(rec.Body.Bytes())
	assert.NoError(t, err, "download body is a valid workbook")

	// history
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/history", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	jobs := decodeJSON(t, rec)["jobs"].([]any)
	require.Len(t, jobs, 1)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/history/"+jobID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decodeJSON(t, rec)["job"].(map[string]any)
	assert.Equal(t, jobID, summary["id"])

	// stats
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decodeJSON(t, rec)["stats"].(map[string]any)
	assert.Equal(t, float64(1), stats["total_jobs"])
	assert.Equal(t, float64(2), stats["total_leads_processed"])
}

func TestProcessRejectsMissingFile(t *testing.T) {
	s, _ := newTestServer(t)

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	require.NoError(t, mw.WriteField("note", "no file here"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/process", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "no file provided", decodeJSON(t, rec)["error"])
}

func TestProcessRejectsWrongExtension(t *testing.T) {
	s, _ := newTestServer(t)

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	fw, err := mw.CreateFormFile("file", "leads.pdf")
	require.NoError(t, err)
	_, err = fw.Write([]byte("not a workbook"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/process", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeJSON(t, rec)["error"], ".xlsx")
}

func TestProgressUnknownJob(t *testing.T) {
	s, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/progress/missing", nil))

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "job not found", decodeJSON(t, rec)["error"])
}

func TestProgressFallsBackToStore(t *testing.T) {
	s, st := newTestServer(t)
	ctx := context.Background()

	// a job the tracker has never seen, e.g. from a previous run
	j, err := st.CreateJob(ctx, "old.xlsx", 7)
	require.NoError(t, err)
	require.NoError(t, st.UpdateJobStatus(ctx, j.ID, model.JobStatusCompleted))

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/progress/"+j.ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	progress := decodeJSON(t, rec)["progress"].(map[string]any)
	assert.Equal(t, float64(7), progress["total_rows"])
	assert.Equal(t, float64(7), progress["processed_rows"])
	assert.Equal(t, "completed", progress["current_step"])
}

func TestDownloadNotCompleted(t *testing.T) {
	s, st := newTestServer(t)

	j, err := st.CreateJob(context.Background(), "pending.xlsx", 1)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/download/"+j.ID, nil))
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestHistoryBadStatusFilter(t *testing.T) {
	s, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/history?status=bogus", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

// sseEvents reads the stream until a terminal event or timeout and
// returns the decoded payloads.
func sseEvents(t *testing.T, url string) []map[string]any {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	var events []map[string]any
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var payload map[string]any
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &payload))
		events = append(events, payload)
		if payload["type"] == "complete" {
			break
		}
	}
	return events
}

func eventTypes(events []map[string]any) []string {
	types := make([]string, len(events))
	for i, e := range events {
		types[i] = e["type"].(string)
	}
	return types
}

func TestProgressStreamTrackedJob(t *testing.T) {
	s, st := newTestServer(t)
	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)

	body, contentType := xlsxUpload(t, [][]string{
		{"Name", "Email"},
		{"John Smith", "j.smith@globaltel.net"},
	})
	resp, err := http.Post(srv.URL+"/process", contentType, body)
	require.NoError(t, err)
	var submitted struct {
		JobID string `json:"job_id"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&submitted))
	resp.Body.Close()
	waitCompleted(t, st, submitted.JobID)

	events := sseEvents(t, srv.URL+"/progress/stream/"+submitted.JobID)
	types := eventTypes(events)
	assert.Equal(t, "connected", types[0])
	assert.Contains(t, types, "progress")
	assert.Equal(t, "complete", types[len(types)-1])
	assert.Equal(t, "completed", events[len(events)-1]["status"])
}

func TestProgressStreamPersistedReplay(t *testing.T) {
	s, st := newTestServer(t)
	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)
	ctx := context.Background()

	j, err := st.CreateJob(ctx, "old.xlsx", 3)
	require.NoError(t, err)
	require.NoError(t, st.UpdateJobStatus(ctx, j.ID, model.JobStatusCompleted))
	require.NoError(t, st.AppendLog(ctx, &model.LogEntry{JobID: j.ID, Level: "info", Message: "processing started with 3 rows"}))

	events := sseEvents(t, srv.URL+"/progress/stream/"+j.ID)
	types := eventTypes(events)
	assert.Equal(t, []string{"connected", "progress", "log", "complete"}, types)
}

func TestProgressStreamUnknownJob(t *testing.T) {
	s, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/progress/stream/missing", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

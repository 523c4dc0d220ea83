package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/hsn0918/llamacloud-client/pages"
)

type fakeClock struct {
	mu    sync.Mutex
	now   time.Time
	waits int
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) After(d time.Duration) <-chan time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
	f.waits++
	ch := make(chan time.Time, 1)
	ch <- f.now
	return ch
}

type fakeJob struct {
	kind     string
	statuses []JobStatus
	polls    int
	form     map[string]string
	body     map[string]any
	fileName string
}

func (j *fakeJob) nextStatus() JobStatus {
	i := min(j.polls, len(j.statuses)-1)
	j.polls++
	return j.statuses[i]
}

// fakeCloud is an in-memory stand-in for the HTTP API.
type fakeCloud struct {
	mu  sync.Mutex
	srv *httptest.Server

	nextID    int
	files     map[string]*File
	blobs     map[string][]byte
	jobs      map[string]*fakeJob
	agentData map[string]*AgentData

	// statuses scripts every new job; failNames forces ERROR for matching file names.
	statuses  []JobStatus
	failNames map[string]bool

	extractData     map[string]any
	extractMetadata map[string]any

	requests []*http.Request
}

func newFakeCloud(t *testing.T) *fakeCloud {
	t.Helper()
	fc := &fakeCloud{
		files:     map[string]*File{},
		blobs:     map[string][]byte{},
		jobs:      map[string]*fakeJob{},
		agentData: map[string]*AgentData{},
		statuses:  []JobStatus{StatusPending, StatusSuccess},
		failNames: map[string]bool{},
	}

	r := chi.NewRouter()
	r.Use(fc.record)
	r.Put("/blob/{id}", fc.putBlob)
	r.Get("/blob/{id}", fc.getBlob)

	r.Route("/api/v1", func(r chi.Router) {
		r.Put("/files", fc.presignUpload)
		r.Post("/files", fc.directUpload)
		r.Get("/files/{file_id}", fc.getFile)
		r.Get("/files/{file_id}/content", fc.fileContent)

		r.Post("/parsing/upload", fc.submitParse)
		r.Get("/parsing/job/{job_id}", fc.jobStatus)
		r.Get("/parsing/job/{job_id}/result/json", fc.parseResult)

		r.Post("/extraction/run", fc.submitJSONJob("extract"))
		r.Post("/extraction/jobs", fc.submitJSONJob("extract-agent"))
		r.Get("/extraction/jobs/{job_id}", fc.jobStatus)
		r.Get("/extraction/runs/by-job/{job_id}", fc.extractRun)

		r.Post("/classifier/jobs", fc.submitJSONJob("classify"))
		r.Get("/classifier/jobs/{job_id}", fc.jobStatus)
		r.Get("/classifier/jobs/{job_id}/results", fc.classifyResults)

		r.Post("/beta/sheets/jobs", fc.submitJSONJob("sheets"))
		r.Get("/beta/sheets/jobs/{job_id}", fc.sheetsJob)
		r.Get("/beta/sheets/jobs/{job_id}/regions/{region_id}/result/{region_type}", fc.sheetsRegion)

		r.Post("/beta/agent-data", fc.createAgentData)
		r.Post("/beta/agent-data/:search", fc.searchAgentData)
		r.Get("/beta/agent-data/{item_id}", fc.getAgentData)
		r.Put("/beta/agent-data/{item_id}", fc.updateAgentData)
		r.Delete("/beta/agent-data/{item_id}", fc.deleteAgentData)
	})

	fc.srv = httptest.NewServer(r)
	t.Cleanup(fc.srv.Close)
	return fc
}

func (fc *fakeCloud) newClient(t *testing.T, opts ...Option) (*client, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	base := []Option{
		WithAPIKey("test-key"),
		WithBaseURL(fc.srv.URL),
		WithClock(clock),
		WithPollInterval(time.Second),
		WithProcessingTimeout(time.Minute),
	}
	c, err := NewClient(append(base, opts...)...)
	require.NoError(t, err)
	return c.(*client), clock
}

func (fc *fakeCloud) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fc.mu.Lock()
		fc.requests = append(fc.requests, r.Clone(r.Context()))
		fc.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

// requestsTo returns recorded requests whose path starts with prefix.
func (fc *fakeCloud) requestsTo(method, prefix string) []*http.Request {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	var out []*http.Request
	for _, r := range fc.requests {
		if r.Method == method && strings.HasPrefix(r.URL.Path, prefix) {
			out = append(out, r)
		}
	}
	return out
}

func (fc *fakeCloud) jobsOf(kind string) []*fakeJob {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	var out []*fakeJob
	for i := 1; i <= fc.nextID; i++ {
		if j, ok := fc.jobs[fmt.Sprintf("job-%d", i)]; ok && j.kind == kind {
			out = append(out, j)
		}
	}
	return out
}

func (fc *fakeCloud) id(prefix string) string {
	fc.nextID++
	return fmt.Sprintf("%s-%d", prefix, fc.nextID)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func notFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, map[string]string{"detail": "not found"})
}

func (fc *fakeCloud) putBlob(w http.ResponseWriter, r *http.Request) {
	data, _ := io.ReadAll(r.Body)
	fc.mu.Lock()
	fc.blobs[chi.URLParam(r, "id")] = data
	fc.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (fc *fakeCloud) getBlob(w http.ResponseWriter, r *http.Request) {
	fc.mu.Lock()
	data, ok := fc.blobs[chi.URLParam(r, "id")]
	fc.mu.Unlock()
	if !ok {
		notFound(w)
		return
	}
	_, _ = w.Write(data)
}

func (fc *fakeCloud) presignUpload(w http.ResponseWriter, r *http.Request) {
	var body fileCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": err.Error()})
		return
	}
	fc.mu.Lock()
	id := fc.id("file")
	fc.files[id] = &File{ID: id, Name: body.Name, ExternalFileID: body.ExternalFileID, FileSize: &body.FileSize}
	fc.mu.Unlock()
	writeJSON(w, http.StatusOK, presignedUploadResponse{URL: fc.srv.URL + "/blob/" + id, FileID: id})
}

func (fc *fakeCloud) directUpload(w http.ResponseWriter, r *http.Request) {
	f, header, err := r.FormFile("upload_file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": err.Error()})
		return
	}
	defer f.Close()
	data, _ := io.ReadAll(f)

	fc.mu.Lock()
	id := fc.id("file")
	file := &File{ID: id, Name: header.Filename, ExternalFileID: r.URL.Query().Get("external_file_id")}
	fc.files[id] = file
	fc.blobs[id] = data
	fc.mu.Unlock()
	writeJSON(w, http.StatusOK, file)
}

func (fc *fakeCloud) getFile(w http.ResponseWriter, r *http.Request) {
	fc.mu.Lock()
	file, ok := fc.files[chi.URLParam(r, "file_id")]
	fc.mu.Unlock()
	if !ok {
		notFound(w)
		return
	}
	writeJSON(w, http.StatusOK, file)
}

func (fc *fakeCloud) fileContent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "file_id")
	fc.mu.Lock()
	_, ok := fc.files[id]
	fc.mu.Unlock()
	if !ok {
		notFound(w)
		return
	}
	writeJSON(w, http.StatusOK, presignedURLResponse{URL: fc.srv.URL + "/blob/" + id})
}

func (fc *fakeCloud) newJob(kind, fileName string) (string, *fakeJob) {
	job := &fakeJob{kind: kind, statuses: append([]JobStatus(nil), fc.statuses...), fileName: fileName}
	if fc.failNames[fileName] {
		job.statuses = []JobStatus{StatusPending, StatusError}
	}
	id := fc.id("job")
	fc.jobs[id] = job
	return id, job
}

func (fc *fakeCloud) submitParse(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": err.Error()})
		return
	}
	form := map[string]string{}
	for k, v := range r.MultipartForm.Value {
		form[k] = v[0]
	}
	fileName := form["file_id"]
	if files := r.MultipartForm.File["file"]; len(files) > 0 {
		fileName = files[0].Filename
	}

	fc.mu.Lock()
	id, job := fc.newJob("parse", fileName)
	job.form = form
	fc.mu.Unlock()
	writeJSON(w, http.StatusOK, ParseJob{Job: Job{ID: id, Status: StatusPending}})
}

func (fc *fakeCloud) submitJSONJob(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"detail": err.Error()})
			return
		}
		fileName, _ := body["file_id"].(string)

		fc.mu.Lock()
		id, job := fc.newJob(kind, fileName)
		job.body = body
		fc.mu.Unlock()
		writeJSON(w, http.StatusOK, Job{ID: id, Status: StatusPending})
	}
}

func (fc *fakeCloud) jobStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "job_id")
	fc.mu.Lock()
	job, ok := fc.jobs[id]
	var status JobStatus
	if ok {
		status = job.nextStatus()
	}
	fc.mu.Unlock()
	if !ok {
		notFound(w)
		return
	}
	payload := Job{ID: id, Status: status}
	if status == StatusError {
		payload.ErrorMessage = "processing failed"
	}
	writeJSON(w, http.StatusOK, payload)
}

func (fc *fakeCloud) parseResult(w http.ResponseWriter, r *http.Request) {
	fc.mu.Lock()
	job, ok := fc.jobs[chi.URLParam(r, "job_id")]
	fc.mu.Unlock()
	if !ok {
		notFound(w)
		return
	}

	targets := []int{0}
	if tp := job.form["target_pages"]; tp != "" {
		expanded, err := pages.ExpandTargetPages(tp)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"detail": err.Error()})
			return
		}
		targets = expanded
	}

	var result ParseResult
	for _, p := range targets {
		result.Pages = append(result.Pages, ParsePage{Page: p, MD: fmt.Sprintf("# page %d", p), Text: fmt.Sprintf("page %d", p)})
	}
	writeJSON(w, http.StatusOK, result)
}

func (fc *fakeCloud) extractRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "job_id")
	fc.mu.Lock()
	job, ok := fc.jobs[id]
	data, metadata := fc.extractData, fc.extractMetadata
	fc.mu.Unlock()
	if !ok {
		notFound(w)
		return
	}
	fileID, _ := job.body["file_id"].(string)
	writeJSON(w, http.StatusOK, ExtractRun{
		ID:                 "run-" + id,
		JobID:              id,
		Status:             "SUCCESS",
		Data:               data,
		ExtractionMetadata: metadata,
		File:               &File{ID: fileID, Name: fileID},
	})
}

func (fc *fakeCloud) classifyResults(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "job_id")
	fc.mu.Lock()
	job, ok := fc.jobs[id]
	fc.mu.Unlock()
	if !ok {
		notFound(w)
		return
	}

	var results ClassifyJobResults
	ids, _ := job.body["file_ids"].([]any)
	for _, raw := range ids {
		fileID, _ := raw.(string)
		results.Items = append(results.Items, FileClassification{
			ClassifyJobID: id,
			FileID:        fileID,
			Result:        &ClassifyResult{Type: "invoice", Confidence: 0.9, Reasoning: "has totals"},
		})
	}
	writeJSON(w, http.StatusOK, results)
}

func (fc *fakeCloud) sheetsJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "job_id")
	fc.mu.Lock()
	job, ok := fc.jobs[id]
	var status JobStatus
	if ok {
		status = job.nextStatus()
	}
	fc.mu.Unlock()
	if !ok {
		notFound(w)
		return
	}

	payload := SheetsJob{Job: Job{ID: id, Status: status}}
	if r.URL.Query().Get("include_results") == "true" {
		ok := true
		payload.Success = &ok
		payload.Regions = []SheetRegion{{RegionID: "r1", SheetName: "Sheet1", RegionType: "table", Location: "A1:C10"}}
		payload.WorksheetMetadata = []WorksheetMetadata{{SheetName: "Sheet1", Title: "Totals"}}
	}
	writeJSON(w, http.StatusOK, payload)
}

func (fc *fakeCloud) sheetsRegion(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "job_id") + "-" + chi.URLParam(r, "region_id") + "-" + chi.URLParam(r, "region_type")
	fc.mu.Lock()
	fc.blobs[key] = []byte("parquet-bytes")
	fc.mu.Unlock()
	writeJSON(w, http.StatusOK, presignedURLResponse{URL: fc.srv.URL + "/blob/" + key})
}

func (fc *fakeCloud) createAgentData(w http.ResponseWriter, r *http.Request) {
	var body AgentDataCreate
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": err.Error()})
		return
	}
	fc.mu.Lock()
	item := &AgentData{ID: fc.id("item"), DeploymentName: body.DeploymentName, Collection: body.Collection, Data: body.Data}
	fc.agentData[item.ID] = item
	fc.mu.Unlock()
	writeJSON(w, http.StatusOK, item)
}

func (fc *fakeCloud) getAgentData(w http.ResponseWriter, r *http.Request) {
	fc.mu.Lock()
	item, ok := fc.agentData[chi.URLParam(r, "item_id")]
	fc.mu.Unlock()
	if !ok {
		notFound(w)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (fc *fakeCloud) updateAgentData(w http.ResponseWriter, r *http.Request) {
	var body agentDataUpdate
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": err.Error()})
		return
	}
	fc.mu.Lock()
	item, ok := fc.agentData[chi.URLParam(r, "item_id")]
	if ok {
		item.Data = body.Data
	}
	fc.mu.Unlock()
	if !ok {
		notFound(w)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (fc *fakeCloud) deleteAgentData(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "item_id")
	fc.mu.Lock()
	_, ok := fc.agentData[id]
	delete(fc.agentData, id)
	fc.mu.Unlock()
	if !ok {
		notFound(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{})
}

// searchAgentData returns one item per page, ordered by id.
func (fc *fakeCloud) searchAgentData(w http.ResponseWriter, r *http.Request) {
	var body SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": err.Error()})
		return
	}
	fc.mu.Lock()
	var items []AgentData
	for i := 1; i <= fc.nextID; i++ {
		if item, ok := fc.agentData[fmt.Sprintf("item-%d", i)]; ok && item.Collection == body.Collection {
			items = append(items, *item)
		}
	}
	fc.mu.Unlock()

	page := AgentDataPage{}
	total := len(items)
	if body.IncludeTotal {
		page.TotalSize = &total
	}
	if body.Offset < len(items) {
		page.Items = items[body.Offset : body.Offset+1]
		if body.Offset+1 < len(items) {
			page.NextPageToken = fmt.Sprint(body.Offset + 1)
		}
	}
	writeJSON(w, http.StatusOK, page)
}

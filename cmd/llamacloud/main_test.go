package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	client "github.com/hsn0918/llamacloud-client"
)

// agentDataServer serves a fixed set of records, one per search page.
type agentDataServer struct {
	mu       sync.Mutex
	items    []client.AgentData
	deleted  []string
	searches []client.SearchRequest
	srv      *httptest.Server
}

func newAgentDataServer(t *testing.T, items ...client.AgentData) *agentDataServer {
	t.Helper()
	s := &agentDataServer{items: items}

	r := chi.NewRouter()
	r.Route("/api/v1/beta/agent-data", func(r chi.Router) {
		r.Post("/:search", s.search)
		r.Get("/{item_id}", s.get)
		r.Delete("/{item_id}", s.delete)
	})
	s.srv = httptest.NewServer(r)
	t.Cleanup(s.srv.Close)
	return s
}

func (s *agentDataServer) find(id string) (client.AgentData, bool) {
	for _, item := range s.items {
		if item.ID == id {
			return item, true
		}
	}
	return client.AgentData{}, false
}

func (s *agentDataServer) get(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.find(chi.URLParam(r, "item_id"))
	if !ok {
		http.Error(w, `{"detail":"not found"}`, http.StatusNotFound)
		return
	}
	respond(w, item)
}

func (s *agentDataServer) delete(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := chi.URLParam(r, "item_id")
	if _, ok := s.find(id); !ok {
		http.Error(w, `{"detail":"not found"}`, http.StatusNotFound)
		return
	}
	s.deleted = append(s.deleted, id)
	respond(w, map[string]any{})
}

func (s *agentDataServer) search(w http.ResponseWriter, r *http.Request) {
	var req client.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.searches = append(s.searches, req)

	idx := 0
	if req.PageToken != "" {
		for i, item := range s.items {
			if item.ID == req.PageToken {
				idx = i
			}
		}
	}
	page := client.AgentDataPage{}
	if idx < len(s.items) {
		page.Items = []client.AgentData{s.items[idx]}
	}
	if idx+1 < len(s.items) {
		page.NextPageToken = s.items[idx+1].ID
	}
	respond(w, page)
}

func respond(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("LLAMA_CLOUD_API_KEY", "")
	t.Setenv("LLAMA_DEPLOY_DEPLOYMENT_NAME", "")

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func people() []client.AgentData {
	return []client.AgentData{
		{ID: "id-1", DeploymentName: "dep", Collection: "people", Data: map[string]any{"name": "Alice"}},
		{ID: "id-2", DeploymentName: "dep", Collection: "people", Data: map[string]any{"name": "Bob"}},
	}
}

func TestDataGet(t *testing.T) {
	s := newAgentDataServer(t, people()...)

	out, err := runCLI(t, "--api-key", "k", "--base-url", s.srv.URL, "--fail-log", "",
		"data", "get", "id-2", "--deployment", "dep")
	require.NoError(t, err)
	assert.Contains(t, out, `"name": "Bob"`)
}

func TestDataDeleteRecordsFailures(t *testing.T) {
	s := newAgentDataServer(t, people()...)
	failLog := filepath.Join(t.TempDir(), "fail.log")

	_, err := runCLI(t, "--api-key", "k", "--base-url", s.srv.URL, "--fail-log", failLog,
		"data", "delete", "id-1", "missing", "--deployment", "dep")
	assert.ErrorContains(t, err, "failed to delete 1 of 2 records")
	assert.Equal(t, []string{"id-1"}, s.deleted)

	data, err := os.ReadFile(failLog)
	require.NoError(t, err)
	assert.Contains(t, string(data), "target=missing")
}

func TestDataExportFollowsPages(t *testing.T) {
	s := newAgentDataServer(t, people()...)
	path := filepath.Join(t.TempDir(), "people.xlsx")

	_, err := runCLI(t, "--api-key", "k", "--base-url", s.srv.URL, "--fail-log", "",
		"data", "export", "--deployment", "dep", "--collection", "people",
		"--filter", "{name: {includes: [Alice, Bob]}}", "-o", path)
	require.NoError(t, err)

	require.Len(t, s.searches, 2)
	assert.Equal(t, "people", s.searches[0].Collection)
	assert.Equal(t, "id-2", s.searches[1].PageToken)
	assert.Contains(t, s.searches[0].Filter, "name")

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("people")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Alice", rows[1][3])
	assert.Equal(t, "Bob", rows[2][3])
}

func TestDataRequiresDeployment(t *testing.T) {
	_, err := runCLI(t, "--api-key", "k", "--fail-log", "", "data", "get", "id-1")
	assert.ErrorIs(t, err, client.ErrEmptyDeploymentName)
}

func TestCompletionNeedsNoCredentials(t *testing.T) {
	out, err := runCLI(t, "completion", "bash")
	require.NoError(t, err)
	assert.Contains(t, out, "llamacloud")
}

package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withServer(t *testing.T, h http.HandlerFunc) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	old := serverURL
	serverURL = srv.URL
	t.Cleanup(func() { serverURL = old })
}

func TestRunHealth(t *testing.T) {
	withServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":"degraded","telemetry":{"reasons":["tracer provider: boom"]}}`))
	})

	var out bytes.Buffer
	healthCmd.SetOut(&out)
	require.NoError(t, runHealth(healthCmd, nil))
	assert.Contains(t, out.String(), "Server Status: degraded")
	assert.Contains(t, out.String(), "Telemetry: tracer provider: boom")
}

func TestRunWorkflow(t *testing.T) {
	withServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/workflow", r.URL.Path)
		var req WorkflowRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Marketingplan voor HRC", req.InputAsText)
		_, _ = w.Write([]byte(`{"id":"exec-1","outcome":"completed"}`))
	})

	var out bytes.Buffer
	runCmd.SetOut(&out)
	require.NoError(t, runWorkflow(runCmd, []string{"Marketingplan voor HRC"}))
	assert.Contains(t, out.String(), `"outcome": "completed"`)
}

func TestRunWorkflow_ServerError(t *testing.T) {
	withServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":"classification missing"}`))
	})

	err := runWorkflow(runCmd, []string{"x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.Contains(t, err.Error(), "classification missing")
}

func TestRunIngest(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "concept.md")
	require.NoError(t, os.WriteFile(file, []byte("Leiderschap in beweging"), 0o600))

	withServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/corpora/vs_x/documents", r.URL.Path)
		var req IngestRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Documents, 1)
		assert.Equal(t, "concept.md", req.Documents[0].ID)
		assert.Equal(t, "Ebbinge", req.Documents[0].Metadata["brand"])
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"corpus":"vs_x","ids":["concept.md"]}`))
	})

	ingestBrand = "Ebbinge"
	t.Cleanup(func() { ingestBrand = "" })
	var out bytes.Buffer
	ingestCmd.SetOut(&out)
	require.NoError(t, runIngest(ingestCmd, []string{"vs_x", file}))
	assert.Contains(t, out.String(), "Ingested 1 document(s) into vs_x")
}

func TestRunSearch(t *testing.T) {
	withServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "leiderschap team", r.URL.Query().Get("q"))
		assert.Equal(t, "5", r.URL.Query().Get("k"))
		_, _ = w.Write([]byte(`{"corpus":"vs_x","passages":[{"id":"a","content":"Leiderschap","score":0.91}]}`))
	})

	var out bytes.Buffer
	searchCmd.SetOut(&out)
	require.NoError(t, runSearch(searchCmd, []string{"vs_x", "leiderschap team"}))
	assert.Contains(t, out.String(), "0.910")
	assert.Contains(t, out.String(), "Leiderschap")
}

func TestReadDocuments_Empty(t *testing.T) {
	file := filepath.Join(t.TempDir(), "empty.txt")
	require.NoError(t, os.WriteFile(file, nil, 0o600))

	_, err := readDocuments([]string{file}, "")
	assert.Error(t, err)
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		input  string
		maxLen int
		want   string
	}{
		{"hello", 10, "hello"},
		{"hello world", 8, "hello..."},
		{"héllo wörld", 8, "héllo..."},
		{"abc", 2, "ab"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, truncate(tt.input, tt.maxLen))
	}
}

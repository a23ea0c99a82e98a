package http

import (
	"github.com/fyrsmithlabs/brandflow/internal/retrieval"
	"github.com/fyrsmithlabs/brandflow/internal/telemetry"
	"github.com/fyrsmithlabs/brandflow/internal/workflow"
)

// WorkflowRequest is the request body for POST /api/v1/workflow.
type WorkflowRequest struct {
	InputAsText string `json:"input_as_text"`
}

// ErrorResponse is returned when a workflow run fails after it started.
// Execution holds the partial record.
type ErrorResponse struct {
	Error     string              `json:"error"`
	Execution *workflow.Execution `json:"execution,omitempty"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status    string                  `json:"status"`
	Telemetry *telemetry.HealthStatus `json:"telemetry,omitempty"`
	Retrieval string                  `json:"retrieval,omitempty"`
}

// IngestRequest is the request body for POST /api/v1/corpora/:id/documents.
type IngestRequest struct {
	Documents []retrieval.Document `json:"documents"`
}

// IngestResponse lists the ids of the stored documents.
type IngestResponse struct {
	Corpus string   `json:"corpus"`
	IDs    []string `json:"ids"`
}

// SearchResponse is the response body for GET /api/v1/corpora/:id/search.
type SearchResponse struct {
	Corpus   string              `json:"corpus"`
	Passages []retrieval.Passage `json:"passages"`
}

package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/brandflow/internal/retrieval"
	"github.com/fyrsmithlabs/brandflow/internal/workflow"
)

const (
	defaultSearchK = 5
	maxSearchK     = 50
)

func (s *Server) handleHealth(c echo.Context) error {
	resp := HealthResponse{Status: "ok"}
	if s.telemetry != nil {
		h := s.telemetry.Health()
		resp.Telemetry = &h
		if h.Degraded {
			resp.Status = "degraded"
		}
	}
	if hc, ok := s.store.(healthChecker); ok {
		resp.Retrieval = "ok"
		if err := hc.Health(c.Request().Context()); err != nil {
			s.logger.Warn(c.Request().Context(), "retrieval store unhealthy", zap.Error(err))
			resp.Retrieval = "unavailable"
			resp.Status = "degraded"
		}
	}
	return c.JSON(http.StatusOK, resp)
}

// healthChecker is implemented by stores with a remote backend.
type healthChecker interface {
	Health(ctx context.Context) error
}

// handleWorkflow runs one request through the dispatch tree. Unmatched
// requests are a normal outcome and return 200.
func (s *Server) handleWorkflow(c echo.Context) error {
	var req WorkflowRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn(c.Request().Context(), "invalid workflow request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	ctx := c.Request().Context()
	if s.config.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.RequestTimeout)
		defer cancel()
	}

	exec, err := s.runner.Run(ctx, workflow.Input{InputAsText: req.InputAsText})
	if err == nil {
		return c.JSON(http.StatusOK, exec)
	}

	switch {
	case errors.Is(err, workflow.ErrEmptyInput), errors.Is(err, workflow.ErrInputTooLarge):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return c.JSON(http.StatusGatewayTimeout, ErrorResponse{Error: err.Error(), Execution: exec})
	case exec != nil:
		s.logger.Warn(ctx, "workflow failed", zap.String("execution.id", exec.ID), zap.Error(err))
		return c.JSON(http.StatusBadGateway, ErrorResponse{Error: err.Error(), Execution: exec})
	default:
		s.logger.Error(ctx, "workflow error", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "workflow error")
	}
}

func (s *Server) handleIngest(c echo.Context) error {
	if s.store == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "retrieval store not configured")
	}
	corpus := c.Param("id")

	var req IngestRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	ctx := c.Request().Context()
	ids, err := s.store.Add(ctx, corpus, req.Documents)
	switch {
	case err == nil:
	case errors.Is(err, retrieval.ErrInvalidCorpus), errors.Is(err, retrieval.ErrEmptyDocuments):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		s.logger.Error(ctx, "ingest failed", zap.String("corpus", corpus), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "ingest failed")
	}

	s.logger.Info(ctx, "ingested documents", zap.String("corpus", corpus), zap.Int("count", len(ids)))
	return c.JSON(http.StatusCreated, IngestResponse{Corpus: corpus, IDs: ids})
}

func (s *Server) handleSearch(c echo.Context) error {
	if s.store == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "retrieval store not configured")
	}
	corpus := c.Param("id")
	query := c.QueryParam("q")

	k := defaultSearchK
	if raw := c.QueryParam("k"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxSearchK {
			return echo.NewHTTPError(http.StatusBadRequest, "k must be between 1 and 50")
		}
		k = n
	}

	passages, err := s.store.Search(c.Request().Context(), corpus, query, k)
	switch {
	case err == nil:
	case errors.Is(err, retrieval.ErrCorpusNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, retrieval.ErrInvalidCorpus), errors.Is(err, retrieval.ErrEmptyQuery):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		s.logger.Error(c.Request().Context(), "search failed", zap.String("corpus", corpus), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "search failed")
	}
	return c.JSON(http.StatusOK, SearchResponse{Corpus: corpus, Passages: passages})
}

package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gasmarket-eu/ingestor/internal/api/middleware"
	"github.com/gasmarket-eu/ingestor/internal/ingestion"
)

const healthCheckTimeout = 2 * time.Second

type (
	// triggerRequest is the optional body of a trigger request. All fields
	// are optional; an adapter ignores the ones it doesn't understand.
	triggerRequest struct {
		FromDate       string   `json:"from_date,omitempty"`
		ToDate         string   `json:"to_date,omitempty"`
		SiteIDs        []int    `json:"site_ids,omitempty"`
		OperatorKeys   []string `json:"operator_keys,omitempty"`
		PointKeys      []string `json:"point_keys,omitempty"`
		DirectionKeys  []string `json:"direction_keys,omitempty"`
		Indicators     []string `json:"indicators,omitempty"`
		Limit          int      `json:"limit,omitempty"`
		PublicationIDs []string `json:"publication_ids,omitempty"`
		Country        string   `json:"country,omitempty"`
	}

	// triggerResponse acknowledges that a run was accepted. The run itself
	// executes in the background; its outcome is visible in the ingestion
	// run journal, not in this response.
	triggerResponse struct {
		DatasetID     string `json:"dataset_id"`
		Status        string `json:"status"`
		CorrelationID string `json:"correlation_id"`
	}

	// errorResponse is the body of any non-2xx response from this surface.
	errorResponse struct {
		Error string `json:"error"`
	}

	datasetsResponse struct {
		Datasets []string `json:"datasets"`
	}
)

func (s *Server) setupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleLiveness)
	mux.HandleFunc("GET /readyz", s.handleReadiness)
	mux.HandleFunc("GET /datasets", s.handleListDatasets)
	mux.HandleFunc("POST /trigger/{dataset_id}", s.handleTrigger)
}

// handleLiveness answers unconditionally: it only proves the process is
// scheduling goroutines, not that its dependencies are healthy.
func (s *Server) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReadiness reports whether the database is reachable. Kubernetes
// (or any orchestrator) should stop routing trigger requests to a pod that
// fails this check.
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	if err := s.health.HealthCheck(ctx); err != nil {
		s.logger.Error("readiness check failed", slog.String("error", err.Error()))
		s.writeJSON(w, r, http.StatusServiceUnavailable, errorResponse{Error: "storage unavailable"})

		return
	}

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// handleListDatasets is this surface's one read-only endpoint: the set of
// dataset_ids the trigger endpoint will accept.
func (s *Server) handleListDatasets(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, datasetsResponse{Datasets: s.registry.List()})
}

// handleTrigger accepts a dataset_id and optional fetch parameters, and
// starts a run in the background. It does not wait for the run to finish:
// the orchestrator's run lifecycle can take minutes (chunked fetches,
// retries), far longer than an HTTP client should block for.
func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	datasetID := r.PathValue("dataset_id")
	correlationID := middleware.GetCorrelationID(r.Context())

	if _, err := s.registry.Get(datasetID); err != nil {
		s.writeJSON(w, r, http.StatusNotFound, errorResponse{Error: err.Error()})

		return
	}

	params, err := decodeTriggerRequest(r)
	if err != nil {
		s.writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: err.Error()})

		return
	}

	go func() {
		runCtx := context.Background()

		if err := s.runner.Run(runCtx, datasetID, params); err != nil {
			s.logger.Error("ingestion run failed",
				slog.String("dataset_id", datasetID),
				slog.String("correlation_id", correlationID),
				slog.String("error", err.Error()),
			)
		}
	}()

	s.writeJSON(w, r, http.StatusAccepted, triggerResponse{
		DatasetID:     datasetID,
		Status:        "accepted",
		CorrelationID: correlationID,
	})
}

// decodeTriggerRequest decodes an optional JSON body into FetchParams. A
// missing or empty body is not an error: it just means the adapter's
// defaults apply.
func decodeTriggerRequest(r *http.Request) (ingestion.FetchParams, error) {
	if r.ContentLength == 0 {
		return ingestion.FetchParams{}, nil
	}

	var req triggerRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return ingestion.FetchParams{}, err
	}

	return ingestion.FetchParams{
		FromDate:       req.FromDate,
		ToDate:         req.ToDate,
		SiteIDs:        req.SiteIDs,
		OperatorKeys:   req.OperatorKeys,
		PointKeys:      req.PointKeys,
		DirectionKeys:  req.DirectionKeys,
		Indicators:     req.Indicators,
		Limit:          req.Limit,
		PublicationIDs: req.PublicationIDs,
		Country:        req.Country,
	}, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, body interface{}) {
	data, err := json.Marshal(body)
	if err != nil {
		s.logger.Error("failed to marshal response", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)

		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if _, err := w.Write(data); err != nil {
		correlationID := middleware.GetCorrelationID(r.Context())
		s.logger.Error("failed to write response",
			slog.String("correlation_id", correlationID),
			slog.String("error", err.Error()),
		)
	}
}

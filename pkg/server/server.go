// Package server exposes the analysis engine over HTTP: the crosstab
// endpoint, dataset summaries, health checks, and Prometheus metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/halderavik/cross-tab-tool/pkg/crosstab"
	"github.com/halderavik/cross-tab-tool/pkg/dataset"
	"github.com/halderavik/cross-tab-tool/pkg/derive"
)

// Server handles analysis HTTP requests.
type Server struct {
	logger *zap.Logger
	cfg    *Config
	engine *crosstab.Engine
	cache  *ResultCache
}

// NewServer creates a server around an engine and an optional result cache.
func NewServer(logger *zap.Logger, cfg *Config, cache *ResultCache) *Server {
	return &Server{
		logger: logger,
		cfg:    cfg,
		engine: crosstab.NewEngine(logger, cfg.SignificanceLevel),
		cache:  cache,
	}
}

// RegisterRoutes attaches all handlers to mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/analyze-crosstab", s.handleAnalyze)
	mux.HandleFunc("/api/variable-summary", s.handleVariableSummary)
	mux.HandleFunc("/api/test-connection", s.handleTestConnection)
	mux.HandleFunc("/health", s.handleHealth)
}

// AnalyzeRequest is the wire request: a dataset path plus the engine's
// request contract.
type AnalyzeRequest struct {
	FilePath string `json:"file_path"`
	crosstab.Request
}

type analyzeResponse struct {
	AnalysisID string `json:"analysis_id"`
	*crosstab.Result
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}
	start := time.Now()
	analysisID := uuid.NewString()
	logger := s.logger.With(zap.String("analysis_id", analysisID))

	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		analysisErrorsTotal.Inc()
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	logger.Info("Received crosstab request",
		zap.String("file_path", req.FilePath),
		zap.Strings("row_vars", req.RowVars),
		zap.Strings("col_vars", req.ColVars))

	ctx, cancel := context.WithTimeout(r.Context(), time.Duration(s.cfg.RequestTimeoutSec)*time.Second)
	defer cancel()

	fingerprint, status, err := fileFingerprint(req.FilePath)
	if err != nil {
		analysisErrorsTotal.Inc()
		s.writeError(w, status, err.Error())
		return
	}

	var cacheKey string
	if s.cache != nil {
		cacheKey, err = s.cache.Key(fingerprint, &req.Request)
		if err != nil {
			logger.Warn("Cache key derivation failed; proceeding without cache", zap.Error(err))
		} else {
			if data, ok := s.cache.Get(ctx, cacheKey); ok {
				cacheHitsTotal.Inc()
				analysesTotal.Inc()
				logger.Info("Served analysis from cache")
				w.Header().Set("Content-Type", "application/json")
				w.Write(data)
				return
			}
		}
	}

	ds, err := dataset.LoadCSV(req.FilePath)
	if err != nil {
		analysisErrorsTotal.Inc()
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("error loading data file: %v", err))
		return
	}

	result, err := s.engine.Analyze(ctx, ds, &req.Request)
	if err != nil {
		analysisErrorsTotal.Inc()
		s.writeError(w, statusForError(err), err.Error())
		return
	}

	body, err := json.Marshal(analyzeResponse{AnalysisID: analysisID, Result: result})
	if err != nil {
		analysisErrorsTotal.Inc()
		s.writeError(w, http.StatusInternalServerError, fmt.Sprintf("encode result: %v", err))
		return
	}
	if s.cache != nil && cacheKey != "" {
		s.cache.Set(ctx, cacheKey, body)
	}

	analysesTotal.Inc()
	analysisDuration.Observe(time.Since(start).Seconds())
	logger.Info("Crosstab analysis completed", zap.Duration("elapsed", time.Since(start)))

	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
}

type summaryRequest struct {
	FilePath string `json:"file_path"`
}

func (s *Server) handleVariableSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}
	var req summaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if _, status, err := fileFingerprint(req.FilePath); err != nil {
		s.writeError(w, status, err.Error())
		return
	}
	ds, err := dataset.LoadCSV(req.FilePath)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("error loading data file: %v", err))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"variables": ds.ColumnNames(),
		"summary":   ds.NumericSummaries(),
	})
}

func (s *Server) handleTestConnection(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":    "success",
		"message":   "API connection is working",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warn("Failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}

// fileFingerprint stats the dataset file for cache keying and existence
// checks.
func fileFingerprint(path string) (string, int, error) {
	if path == "" {
		return "", http.StatusBadRequest, errors.New("file_path is required")
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", http.StatusNotFound, fmt.Errorf("file not found: %s", path)
		}
		return "", http.StatusBadRequest, fmt.Errorf("stat file: %w", err)
	}
	return fmt.Sprintf("%s|%d|%d", path, info.Size(), info.ModTime().UnixNano()), http.StatusOK, nil
}

func statusForError(err error) int {
	var (
		validation *crosstab.ValidationError
		unknown    *derive.UnknownVariableError
		invalid    *derive.InvalidConditionError
	)
	switch {
	case errors.As(err, &validation), errors.As(err, &unknown), errors.As(err, &invalid),
		errors.Is(err, dataset.ErrColumnNotFound):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

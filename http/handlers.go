package http

import (
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"creditrisk/db"
	"creditrisk/ml"
)

// AuditFunc records the predictions served for one request.
type AuditFunc func(requestID, fingerprint string, preds []ml.Prediction) error

// Handlers serves the inference API over a loaded model.
type Handlers struct {
	provider    ml.ModelProvider
	logger      *zap.Logger
	audit       AuditFunc
	trainingLog func() ([]db.TrainingLog, error)
}

type Option func(*Handlers)

// WithAudit records every successful prediction batch.
func WithAudit(fn AuditFunc) Option {
	return func(h *Handlers) {
		h.audit = fn
	}
}

// WithTrainingLog serves the training history at GET /api/training-log.
func WithTrainingLog(fn func() ([]db.TrainingLog, error)) Option {
	return func(h *Handlers) {
		h.trainingLog = fn
	}
}

func NewHandlers(provider ml.ModelProvider, logger *zap.Logger, opts ...Option) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handlers{provider: provider, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.HandleFunc("GET /api/model", h.handleModel)
	mux.HandleFunc("POST /predict", h.handlePredict)
	mux.Handle("GET /metrics", promhttp.Handler())
	if h.trainingLog != nil {
		mux.HandleFunc("GET /api/training-log", h.handleTrainingLog)
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (h *Handlers) handleModel(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, h.logger, h.provider.Bundle().Summary())
}

func (h *Handlers) handleTrainingLog(w http.ResponseWriter, r *http.Request) {
	logs, err := h.trainingLog()
	if err != nil {
		h.logger.Error("load training log", zap.Error(err))
		writeError(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
		return
	}
	respondJSON(w, h.logger, map[string]any{"runs": logs})
}

type errorBody struct {
	Error   string   `json:"error"`
	Missing []string `json:"missing,omitempty"`
	Column  string   `json:"column,omitempty"`
	Value   any      `json:"value,omitempty"`
	Row     *int     `json:"row,omitempty"`
}

func writeError(w http.ResponseWriter, status int, body errorBody) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func respondJSON(w http.ResponseWriter, logger *zap.Logger, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Warn("failed to encode JSON", zap.Error(err))
	}
}

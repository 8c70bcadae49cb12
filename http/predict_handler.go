package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"creditrisk/ml"
)

type predictResponse struct {
	Results []ml.Prediction `json:"results"`
}

// errBadRequest marks body problems detected before preprocessing.
type errBadRequest struct {
	msg string
}

func (e *errBadRequest) Error() string {
	return e.msg
}

func (h *Handlers) handlePredict(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	records, err := decodeRecords(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			predictErrors.WithLabelValues("too_large").Inc()
			writeError(w, http.StatusRequestEntityTooLarge, errorBody{Error: err.Error()})
			return
		}
		predictErrors.WithLabelValues("malformed").Inc()
		writeError(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}

	start := time.Now()
	preds, err := h.provider.Predict(r.Context(), records)
	predictDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		status, body, kind := classifyError(err)
		predictErrors.WithLabelValues(kind).Inc()
		if status >= http.StatusInternalServerError {
			h.logger.Error("prediction failed", zap.String("request_id", requestID), zap.Error(err))
		} else {
			h.logger.Debug("prediction rejected", zap.String("request_id", requestID), zap.Error(err))
		}
		writeError(w, status, body)
		return
	}

	batchSize.Observe(float64(len(records)))
	observePredictions(preds)
	if h.audit != nil {
		if err := h.audit(requestID, h.provider.Bundle().Fingerprint, preds); err != nil {
			h.logger.Warn("prediction audit failed", zap.String("request_id", requestID), zap.Error(err))
		}
	}
	respondJSON(w, h.logger, predictResponse{Results: preds})
}

// decodeRecords accepts a single JSON object or an array of objects.
func decodeRecords(body io.Reader) ([]ml.Record, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, &errBadRequest{msg: "Request body is empty"}
	}

	switch raw[0] {
	case '{':
		var rec ml.Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, &errBadRequest{msg: "Invalid JSON body: " + err.Error()}
		}
		return []ml.Record{rec}, nil
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, &errBadRequest{msg: "Invalid JSON body: " + err.Error()}
		}
		if len(items) == 0 {
			return nil, &errBadRequest{msg: "Request body contains no records"}
		}
		records := make([]ml.Record, len(items))
		for i, item := range items {
			item = bytes.TrimSpace(item)
			if len(item) == 0 || item[0] != '{' {
				return nil, &errBadRequest{msg: fmt.Sprintf("Record %d is not a JSON object", i)}
			}
			if err := json.Unmarshal(item, &records[i]); err != nil {
				return nil, &errBadRequest{msg: fmt.Sprintf("Record %d: %v", i, err)}
			}
		}
		return records, nil
	default:
		return nil, &errBadRequest{msg: "Request body must be a JSON object or array of objects"}
	}
}

// classifyError maps preprocessing errors to client errors; anything else
// is a server error.
func classifyError(err error) (int, errorBody, string) {
	var missing *ml.MissingColumnsError
	var unseen *ml.UnseenCategoryError
	var invalid *ml.InvalidValueError

	switch {
	case errors.As(err, &missing):
		return http.StatusBadRequest, errorBody{
			Error:   "Missing columns in input",
			Missing: missing.Columns,
		}, "missing_columns"
	case errors.As(err, &unseen):
		row := unseen.Row
		return http.StatusBadRequest, errorBody{
			Error:  err.Error(),
			Column: unseen.Column,
			Value:  unseen.Value,
			Row:    &row,
		}, "unseen_category"
	case errors.As(err, &invalid):
		row := invalid.Row
		return http.StatusBadRequest, errorBody{
			Error:  err.Error(),
			Column: invalid.Column,
			Row:    &row,
		}, "invalid_value"
	case errors.Is(err, ml.ErrEmptyInput):
		return http.StatusBadRequest, errorBody{Error: err.Error()}, "empty"
	default:
		return http.StatusInternalServerError, errorBody{Error: err.Error()}, "internal"
	}
}

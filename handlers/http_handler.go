// Package handlers provides the HTTP handlers of the matching API: trial and
// drug matching, dataset comparison, and the reference data status endpoints.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dimi-lab/trader/interfaces"
	"github.com/dimi-lab/trader/logging"
	"github.com/dimi-lab/trader/matcher"
	"github.com/dimi-lab/trader/recordsparser/entities"
	"github.com/google/uuid"
)

// Compile-time check to ensure HTTPHandlerImpl implements HTTPHandler
var _ interfaces.HTTPHandler = (*HTTPHandlerImpl)(nil)

// Options tunes request handling.
type Options struct {
	Encodings     []string // decode fallback for uploaded files
	MaxUploadSize int64
}

// HTTPHandlerImpl implements the interfaces.HTTPHandler interface
type HTTPHandlerImpl struct {
	dataStore     interfaces.DataStore
	matcher       interfaces.Matcher
	validator     interfaces.DataValidator
	healthChecker interfaces.HealthChecker
	opts          Options
	now           func() time.Time
}

// NewHTTPHandler creates a new HTTP handler with injected dependencies
func NewHTTPHandler(dataStore interfaces.DataStore, m interfaces.Matcher, validator interfaces.DataValidator, healthChecker interfaces.HealthChecker, opts Options) *HTTPHandlerImpl {
	if opts.MaxUploadSize <= 0 {
		opts.MaxUploadSize = 50 * 1024 * 1024
	}
	return &HTTPHandlerImpl{
		dataStore:     dataStore,
		matcher:       m,
		validator:     validator,
		healthChecker: healthChecker,
		opts:          opts,
		now:           time.Now,
	}
}

// MatchResponse is the JSON body of a pipeline run.
type MatchResponse struct {
	RunID    string     `json:"runId"`
	Summary  any        `json:"summary"`
	Columns  []string   `json:"columns"`
	Rows     [][]string `json:"rows"`
	Warnings []string   `json:"warnings,omitempty"`
}

// RespondWithJSON writes a JSON response
func (h *HTTPHandlerImpl) RespondWithJSON(w http.ResponseWriter, code int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		logging.Error("Failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if _, err := w.Write(data); err != nil {
		logging.Debug("Failed to write response", "error", err)
	}
}

// RespondWithError writes a JSON error response
func (h *HTTPHandlerImpl) RespondWithError(w http.ResponseWriter, code int, message string) {
	errorResponse := map[string]any{
		"error":   http.StatusText(code),
		"message": message,
		"code":    code,
	}
	h.RespondWithJSON(w, code, errorResponse)
}

// respondWithPipelineError maps input errors to 422 and everything else to 500
func (h *HTTPHandlerImpl) respondWithPipelineError(w http.ResponseWriter, runID string, err error) {
	switch {
	case errors.Is(err, entities.ErrMalformedInput), errors.Is(err, entities.ErrDecoding):
		logging.Warn("Rejected input", "run_id", runID, "error", err)
		h.RespondWithError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		logging.Error("Pipeline failed", "run_id", runID, "error", err)
		h.RespondWithError(w, http.StatusInternalServerError, "internal error while processing the request")
	}
}

// runID reuses a client supplied run identifier when it is a valid UUID
func runID(r *http.Request) string {
	if supplied := r.Header.Get(logging.RunIDHeader); supplied != "" {
		if id, err := uuid.Parse(supplied); err == nil {
			return id.String()
		}
	}
	return uuid.NewString()
}

func wantsCSV(r *http.Request) bool {
	if strings.EqualFold(r.URL.Query().Get("format"), "csv") {
		return true
	}
	return strings.HasPrefix(r.Header.Get("Accept"), "text/csv")
}

// writeResult answers with the CSV export or the JSON table and summary
func (h *HTTPHandlerImpl) writeResult(w http.ResponseWriter, r *http.Request, stem string, table *entities.Table, resp MatchResponse) {
	if wantsCSV(r) {
		filename := matcher.ExportFilename(stem, h.now())
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
		w.WriteHeader(http.StatusOK)
		if err := matcher.WriteCSV(w, table); err != nil {
			logging.Error("Failed to write CSV export", "run_id", resp.RunID, "error", err)
		}
		return
	}

	resp.Columns = table.Columns
	resp.Rows = table.Rows
	h.RespondWithJSON(w, http.StatusOK, resp)
}

// progressLogger logs pipeline progress at debug level every tenth of the input
func progressLogger(pipeline, runID string) matcher.ProgressFunc {
	step := 0
	return func(processed, total int) {
		if total == 0 {
			return
		}
		if pct := processed * 10 / total; pct > step || processed == total {
			step = pct
			logging.Debug("Pipeline progress",
				"pipeline", pipeline,
				"run_id", runID,
				"processed", processed,
				"total", total)
		}
	}
}

// formatUptimeHuman formats duration into a human-readable string
func formatUptimeHuman(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	var parts []string

	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 || days > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 || hours > 0 || days > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	parts = append(parts, fmt.Sprintf("%ds", seconds))

	return strings.Join(parts, " ")
}

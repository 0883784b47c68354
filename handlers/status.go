package handlers

import (
	"net/http"
	"runtime"
	"time"

	"github.com/dimi-lab/trader/interfaces"
	"github.com/dimi-lab/trader/matcher"
	"github.com/dimi-lab/trader/recordsparser/entities"
)

// ExclusionCategories handles GET /v1/exclusion-categories
func (h *HTTPHandlerImpl) ExclusionCategories(w http.ResponseWriter, r *http.Request) {
	categories := h.matcher.Categories().Categories()
	h.RespondWithJSON(w, http.StatusOK, map[string][]matcher.Category{
		"categories": categories,
	})
}

// DatabaseStatusResponse describes the reference datasets currently served.
type DatabaseStatusResponse struct {
	Datasets    []entities.FileStatus         `json:"datasets"`
	LastUpdate  string                        `json:"last_update"`
	NextUpdate  string                        `json:"next_update"`
	IsUpdating  bool                          `json:"is_updating"`
	Uptime      string                        `json:"uptime"`
	DataQuality *interfaces.DataQualityReport `json:"data_quality"`
}

// DatabaseStatus handles GET /v1/database/status
func (h *HTTPHandlerImpl) DatabaseStatus(w http.ResponseWriter, r *http.Request) {
	files := h.dataStore.GetFileStatus()

	datasets := make([]entities.FileStatus, 0, len(entities.DatasetNames))
	for _, name := range entities.DatasetNames {
		status, ok := files[name]
		if !ok {
			status = entities.FileStatus{Name: name, Error: "not loaded yet"}
		}
		datasets = append(datasets, status)
	}

	lastUpdate := ""
	if t := h.dataStore.GetLastUpdated(); !t.IsZero() {
		lastUpdate = t.Format(time.RFC3339)
	}

	h.RespondWithJSON(w, http.StatusOK, DatabaseStatusResponse{
		Datasets:    datasets,
		LastUpdate:  lastUpdate,
		NextUpdate:  h.healthChecker.CalculateNextUpdate().Format(time.RFC3339),
		IsUpdating:  h.dataStore.IsUpdating(),
		Uptime:      formatUptimeHuman(h.uptime()),
		DataQuality: h.dataStore.GetDataQualityReport(),
	})
}

// HealthResponse defines the structure for consistent JSON ordering
type HealthResponse struct {
	Status        string         `json:"status"`
	UptimeSeconds float64        `json:"uptime_seconds"`
	NextUpdate    string         `json:"next_update"`
	Data          map[string]any `json:"data"`
	System        map[string]any `json:"system"`
}

// HealthCheck handles GET /health
func (h *HTTPHandlerImpl) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status, details, httpStatus := h.healthChecker.HealthCheck()

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	h.RespondWithJSON(w, httpStatus, HealthResponse{
		Status:        status,
		UptimeSeconds: h.uptime().Seconds(),
		NextUpdate:    h.healthChecker.CalculateNextUpdate().Format(time.RFC3339),
		Data:          details,
		System: map[string]any{
			"goroutines": runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb":       int(m.Alloc / 1024 / 1024),
				"total_alloc_mb": int(m.TotalAlloc / 1024 / 1024),
				"sys_mb":         int(m.Sys / 1024 / 1024),
				"num_gc":         m.NumGC,
			},
		},
	})
}

func (h *HTTPHandlerImpl) uptime() time.Duration {
	start := h.dataStore.GetServerStartTime()
	if start.IsZero() {
		return 0
	}
	return h.now().Sub(start)
}

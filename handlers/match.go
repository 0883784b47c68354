package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/dimi-lab/trader/logging"
	"github.com/dimi-lab/trader/matcher"
	"github.com/dimi-lab/trader/metrics"
	"github.com/dimi-lab/trader/recordsparser"
	"github.com/dimi-lab/trader/recordsparser/entities"
)

// patientWarnings flags patients whose gene symbol does not look like an HGNC symbol
func (h *HTTPHandlerImpl) patientWarnings(patients []entities.PatientRecord) []string {
	suspicious := h.validator.ValidatePatients(patients)
	if len(suspicious) == 0 {
		return nil
	}
	return []string{fmt.Sprintf("%d patient(s) have a non-standard gene symbol", len(suspicious))}
}

// MatchTrials handles POST /v1/match/trials.
// Fields: patients (file) or patients_text, optional trials (file), repeated exclude.
func (h *HTTPHandlerImpl) MatchTrials(w http.ResponseWriter, r *http.Request) {
	id := runID(r)
	w.Header().Set(logging.RunIDHeader, id)

	if !h.parseForm(w, r) {
		return
	}

	patients, err := h.readPatients(r)
	if err != nil {
		h.respondWithInputError(w, id, err)
		return
	}

	categories, rejected := h.exclusions(r)

	trials := h.dataStore.GetTrials()
	text, uploaded, err := h.readUpload(r, fieldTrials)
	if err != nil {
		h.respondWithInputError(w, id, err)
		return
	}
	if uploaded {
		if trials, _, err = recordsparser.MakeTrials(text); err != nil {
			h.respondWithPipelineError(w, id, err)
			return
		}
	}
	if len(trials) == 0 {
		h.RespondWithError(w, http.StatusServiceUnavailable, "clinical trial database is not loaded; upload a trials file")
		return
	}

	start := time.Now()
	result, err := h.matcher.MatchTrials(patients, trials, categories, progressLogger(metrics.PipelineTrials, id))
	if err != nil {
		metrics.ObservePipeline(metrics.PipelineTrials, time.Since(start), metrics.RowCounts{}, err)
		h.respondWithPipelineError(w, id, err)
		return
	}
	s := result.Summary
	metrics.ObservePipeline(metrics.PipelineTrials, time.Since(start), metrics.RowCounts{
		Matches:    s.TotalMatches,
		Skipped:    s.SkippedRows,
		Duplicates: s.DuplicateRows,
		Headers:    s.HeaderRowsDropped,
	}, nil)

	warnings := h.patientWarnings(patients)
	if len(s.IgnoredCategories) > 0 {
		warnings = append(warnings, fmt.Sprintf("unknown exclusion categories ignored: %v", s.IgnoredCategories))
	}
	if rejected > 0 {
		warnings = append(warnings, fmt.Sprintf("%d invalid exclusion categories ignored", rejected))
	}

	logging.Info("Trial matching completed",
		"run_id", id,
		"patients", s.Patients,
		"trials", s.Trials,
		"eligible_trials", s.EligibleTrials,
		"matches", s.TotalMatches,
		"skipped_rows", s.SkippedRows,
		"duration", time.Since(start).String())

	h.writeResult(w, r, matcher.ExportTrialMatches, result.Table, MatchResponse{
		RunID:    id,
		Summary:  s,
		Warnings: warnings,
	})
}

// MatchDrugs handles POST /v1/match/drugs against the loaded gene-disease and orphan drug tables.
func (h *HTTPHandlerImpl) MatchDrugs(w http.ResponseWriter, r *http.Request) {
	id := runID(r)
	w.Header().Set(logging.RunIDHeader, id)

	if !h.parseForm(w, r) {
		return
	}

	patients, err := h.readPatients(r)
	if err != nil {
		h.respondWithInputError(w, id, err)
		return
	}

	geneDisease := h.dataStore.GetGeneDisease()
	drugs := h.dataStore.GetOrphanDrugs()
	if geneDisease == nil || drugs == nil {
		h.RespondWithError(w, http.StatusServiceUnavailable, "gene-disease or orphan drug database is not loaded")
		return
	}

	start := time.Now()
	result, err := h.matcher.MatchDrugs(patients, geneDisease, drugs, progressLogger(metrics.PipelineDrugs, id))
	if err != nil {
		metrics.ObservePipeline(metrics.PipelineDrugs, time.Since(start), metrics.RowCounts{}, err)
		h.respondWithPipelineError(w, id, err)
		return
	}
	s := result.Summary
	metrics.ObservePipeline(metrics.PipelineDrugs, time.Since(start), metrics.RowCounts{
		Matches:    s.TotalMatches,
		Skipped:    s.SkippedRows,
		Duplicates: s.DuplicateRows,
		Headers:    s.HeaderRowsDropped,
	}, nil)

	logging.Info("Drug matching completed",
		"run_id", id,
		"patients", s.Patients,
		"joined_pairs", s.JoinedPairs,
		"matches", s.TotalMatches,
		"skipped_rows", s.SkippedRows,
		"duration", time.Since(start).String())

	h.writeResult(w, r, matcher.ExportDrugMatches, result.Table, MatchResponse{
		RunID:    id,
		Summary:  s,
		Warnings: h.patientWarnings(patients),
	})
}

// Compare handles POST /v1/compare: rows of updated whose PatientID is absent from baseline.
func (h *HTTPHandlerImpl) Compare(w http.ResponseWriter, r *http.Request) {
	id := runID(r)
	w.Header().Set(logging.RunIDHeader, id)

	if !h.parseForm(w, r) {
		return
	}

	baseline, err := h.readComparison(r, fieldBaseline)
	if err != nil {
		h.respondWithInputError(w, id, err)
		return
	}
	updated, err := h.readComparison(r, fieldUpdated)
	if err != nil {
		h.respondWithInputError(w, id, err)
		return
	}

	h.runDiff(w, r, id, matcher.ExportComparison, baseline, updated)
}

// CompareReactor handles POST /v1/compare/reactor against the loaded REACTOR baseline.
func (h *HTTPHandlerImpl) CompareReactor(w http.ResponseWriter, r *http.Request) {
	id := runID(r)
	w.Header().Set(logging.RunIDHeader, id)

	if !h.parseForm(w, r) {
		return
	}

	baseline := h.dataStore.GetReactor()
	if baseline == nil {
		h.RespondWithError(w, http.StatusServiceUnavailable, "REACTOR baseline is not loaded")
		return
	}

	updated, err := h.readComparison(r, fieldUpdated)
	if err != nil {
		h.respondWithInputError(w, id, err)
		return
	}

	h.runDiff(w, r, id, matcher.ExportReactorCompare, baseline, updated)
}

func (h *HTTPHandlerImpl) runDiff(w http.ResponseWriter, r *http.Request, id, stem string, baseline, updated *entities.Table) {
	start := time.Now()
	result, err := h.matcher.Diff(baseline, updated, progressLogger(metrics.PipelineCompare, id))
	if err != nil {
		metrics.ObservePipeline(metrics.PipelineCompare, time.Since(start), metrics.RowCounts{}, err)
		h.respondWithPipelineError(w, id, err)
		return
	}
	s := result.Summary
	metrics.ObservePipeline(metrics.PipelineCompare, time.Since(start), metrics.RowCounts{
		Matches: s.NewRecords,
		Headers: s.HeaderRowsDropped,
	}, nil)

	logging.Info("Dataset comparison completed",
		"run_id", id,
		"export", stem,
		"baseline_records", s.BaselineRecords,
		"updated_records", s.UpdatedRecords,
		"new_records", s.NewRecords,
		"duration", time.Since(start).String())

	h.writeResult(w, r, stem, result.Table, MatchResponse{
		RunID:   id,
		Summary: s,
	})
}

package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dimi-lab/trader/data"
	"github.com/dimi-lab/trader/health"
	"github.com/dimi-lab/trader/logging"
	"github.com/dimi-lab/trader/matcher"
	"github.com/dimi-lab/trader/recordsparser/entities"
	"github.com/dimi-lab/trader/validation"
	"github.com/google/uuid"
)

type upload struct {
	field    string
	filename string
	content  string
}

func multipartRequest(t *testing.T, target string, files []upload, values map[string][]string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for _, f := range files {
		part, err := writer.CreateFormFile(f.field, f.filename)
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		if _, err := part.Write([]byte(f.content)); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	for key, vals := range values {
		for _, v := range vals {
			if err := writer.WriteField(key, v); err != nil {
				t.Fatalf("WriteField: %v", err)
			}
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func testSnapshot() *entities.ReferenceData {
	loaded := func(name string, n int) entities.FileStatus {
		return entities.FileStatus{Name: name, Loaded: true, Records: n}
	}
	return &entities.ReferenceData{
		Trials: []entities.TrialRecord{
			{ClinicalTrialID: "NCT001", StudyTitle: "BRCA1 targeted therapy", BriefSummary: "PARP inhibitor", ConditionGenePhenotype: "Breast Cancer"},
			{ClinicalTrialID: "NCT002", StudyTitle: "Enzyme replacement", BriefSummary: "For GLA variant carriers", ConditionGenePhenotype: "Fabry Disease"},
		},
		GeneDisease: entities.NewGeneDiseaseTable(
			entities.GeneDiseaseAssociation{Symbol: "GLA", Name: "Fabry Disease"},
		),
		OrphanDrugs: entities.NewOrphanDrugTable(
			entities.OrphanDrugRecord{GenericName: "migalastat", SponsorCompany: "Amicus", OrphanDesignationStatus: "Designated", OrphanDesignation: "Treatment of Fabry Disease"},
		),
		Reactor: &entities.Table{
			Columns: []string{"PatientID", "Gene"},
			Rows:    [][]string{{"P1", "BRCA1"}},
		},
		Files: map[string]entities.FileStatus{
			entities.DatasetTrials:      loaded(entities.DatasetTrials, 2),
			entities.DatasetGeneDisease: loaded(entities.DatasetGeneDisease, 1),
			entities.DatasetOrphanDrugs: loaded(entities.DatasetOrphanDrugs, 1),
			entities.DatasetReactor:     loaded(entities.DatasetReactor, 1),
		},
	}
}

func newTestHandler(t *testing.T, loaded bool, opts Options) (*HTTPHandlerImpl, *data.DataContainer) {
	t.Helper()

	store := data.NewDataContainer()
	store.SetServerStartTime(time.Now().Add(-time.Hour))
	if loaded {
		store.UpdateData(testSnapshot(), nil)
	}

	engine, err := matcher.NewEngine(nil, nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	h := NewHTTPHandler(store, engine, validation.NewDataValidator(), health.NewHealthChecker(store), opts)
	h.now = func() time.Time { return time.Date(2024, 7, 16, 10, 0, 0, 0, time.UTC) }
	return h, store
}

func decodeMatch(t *testing.T, rr *httptest.ResponseRecorder) MatchResponse {
	t.Helper()
	var resp MatchResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON response: %v\n%s", err, rr.Body.String())
	}
	return resp
}

const patientsTSV = "P1\tBRCA1\tBreast cancer\nP2\tGLA\tFabry Disease\n"

func TestMatchTrials(t *testing.T) {
	h, _ := newTestHandler(t, true, Options{})

	tests := []struct {
		name     string
		values   map[string][]string
		wantRows int
	}{
		{"no exclusions", nil, 2},
		{"exclude oncology", map[string][]string{"exclude": {"Cancer/Oncology"}}, 1},
		{"blank exclusion ignored", map[string][]string{"exclude": {"  "}}, 2},
		{"unknown category", map[string][]string{"exclude": {"Dermatology"}}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := multipartRequest(t, "/v1/match/trials", []upload{{"patients", "patients.tsv", patientsTSV}}, tt.values)
			rr := httptest.NewRecorder()
			h.MatchTrials(rr, req)

			if rr.Code != http.StatusOK {
				t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
			}
			resp := decodeMatch(t, rr)
			if len(resp.Rows) != tt.wantRows {
				t.Errorf("rows = %d, want %d", len(resp.Rows), tt.wantRows)
			}
			if resp.Columns[0] != "PatientID" {
				t.Errorf("first column = %q, want PatientID", resp.Columns[0])
			}
			if _, err := uuid.Parse(rr.Header().Get(logging.RunIDHeader)); err != nil {
				t.Errorf("run id header is not a UUID: %q", rr.Header().Get(logging.RunIDHeader))
			}
			if resp.RunID != rr.Header().Get(logging.RunIDHeader) {
				t.Errorf("body run id %q differs from header", resp.RunID)
			}
		})
	}
}

func TestMatchTrialsUnknownCategoryWarning(t *testing.T) {
	h, _ := newTestHandler(t, true, Options{})
	req := multipartRequest(t, "/v1/match/trials", []upload{{"patients", "p.tsv", patientsTSV}},
		map[string][]string{"exclude": {"Dermatology"}})
	rr := httptest.NewRecorder()
	h.MatchTrials(rr, req)

	resp := decodeMatch(t, rr)
	if len(resp.Warnings) != 1 || !strings.Contains(resp.Warnings[0], "Dermatology") {
		t.Errorf("expected a warning naming the ignored category, got %v", resp.Warnings)
	}
}

func TestMatchTrialsInvalidCategoryWarning(t *testing.T) {
	h, _ := newTestHandler(t, true, Options{})
	req := multipartRequest(t, "/v1/match/trials", []upload{{"patients", "p.tsv", patientsTSV}},
		map[string][]string{"exclude": {"<script>alert(1)</script>", "Cancer;Oncology", "Cancer/Oncology"}})
	rr := httptest.NewRecorder()
	h.MatchTrials(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body = %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	resp := decodeMatch(t, rr)
	if len(resp.Rows) != 1 {
		t.Errorf("expected the valid exclusion to apply, got %d rows", len(resp.Rows))
	}
	if len(resp.Warnings) != 1 || !strings.Contains(resp.Warnings[0], "2 invalid exclusion categories ignored") {
		t.Errorf("expected a warning counting the invalid categories, got %v", resp.Warnings)
	}
}

func TestMatchTrialsUploadedTrials(t *testing.T) {
	h, _ := newTestHandler(t, false, Options{})
	trials := "NCT9\tTP53 study\thttp://x\tRECRUITING\tsummary\tLi-Fraumeni\n"
	req := multipartRequest(t, "/v1/match/trials", []upload{
		{"patients", "p.tsv", "P9\tTP53\tLi-Fraumeni\n"},
		{"trials", "t.tsv", trials},
	}, nil)
	rr := httptest.NewRecorder()
	h.MatchTrials(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if resp := decodeMatch(t, rr); len(resp.Rows) != 1 {
		t.Errorf("rows = %d, want 1", len(resp.Rows))
	}
}

func TestMatchTrialsCSV(t *testing.T) {
	h, _ := newTestHandler(t, true, Options{})
	req := multipartRequest(t, "/v1/match/trials?format=csv", []upload{{"patients", "p.tsv", patientsTSV}}, nil)
	rr := httptest.NewRecorder()
	h.MatchTrials(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, "clinical_trial_matches_2024-07-16.csv") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	lines := strings.Split(strings.TrimSpace(rr.Body.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 rows, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "PatientID,Gene,Phenotype,ClinicalTrialID") {
		t.Errorf("unexpected header %q", lines[0])
	}
}

func TestMatchTrialsErrors(t *testing.T) {
	tests := []struct {
		name     string
		loaded   bool
		opts     Options
		files    []upload
		values   map[string][]string
		wantCode int
	}{
		{
			name:     "missing patients",
			loaded:   true,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "wrong column count",
			loaded:   true,
			files:    []upload{{"patients", "p.tsv", "P1\tBRCA1\nP2\tGLA\n"}},
			wantCode: http.StatusUnprocessableEntity,
		},
		{
			name:     "undecodable upload",
			loaded:   true,
			opts:     Options{Encodings: []string{"utf-8"}},
			files:    []upload{{"patients", "p.tsv", "P1\tBRCA1\tCaf\xe9 au lait\n"}},
			wantCode: http.StatusUnprocessableEntity,
		},
		{
			name:     "no trial database",
			loaded:   false,
			files:    []upload{{"patients", "p.tsv", patientsTSV}},
			wantCode: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestHandler(t, tt.loaded, tt.opts)
			req := multipartRequest(t, "/v1/match/trials", tt.files, tt.values)
			rr := httptest.NewRecorder()
			h.MatchTrials(rr, req)

			if rr.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d, body = %s", rr.Code, tt.wantCode, rr.Body.String())
			}
			var body map[string]any
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatalf("error body is not JSON: %v", err)
			}
			if body["code"] != float64(tt.wantCode) || body["message"] == "" {
				t.Errorf("unexpected error body %v", body)
			}
		})
	}
}

func TestMatchTrialsNotMultipart(t *testing.T) {
	h, _ := newTestHandler(t, true, Options{})
	req := httptest.NewRequest(http.MethodPost, "/v1/match/trials", strings.NewReader("P1\tBRCA1\tx"))
	rr := httptest.NewRecorder()
	h.MatchTrials(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestMatchTrialsUploadTooLarge(t *testing.T) {
	h, _ := newTestHandler(t, true, Options{MaxUploadSize: 512})
	big := strings.Repeat("P1\tBRCA1\tBreast cancer\n", 100)
	req := multipartRequest(t, "/v1/match/trials", []upload{{"patients", "p.tsv", big}}, nil)
	rr := httptest.NewRecorder()
	h.MatchTrials(rr, req)

	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rr.Code)
	}
}

func TestMatchTrialsPastedPatients(t *testing.T) {
	h, _ := newTestHandler(t, true, Options{})
	req := multipartRequest(t, "/v1/match/trials", nil, map[string][]string{
		"patients_text": {"P1, BRCA1, Breast cancer\nP2 | GLA"},
	})
	rr := httptest.NewRecorder()
	h.MatchTrials(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if resp := decodeMatch(t, rr); len(resp.Rows) != 2 {
		t.Errorf("rows = %d, want 2", len(resp.Rows))
	}
}

func TestMatchTrialsHeaderedPatients(t *testing.T) {
	h, _ := newTestHandler(t, true, Options{})
	text := "patient_id\tgene_symbol\tcondition\tage\nP1\tBRCA1\tBreast cancer\t40\n"
	req := multipartRequest(t, "/v1/match/trials", []upload{{"patients", "p.tsv", text}}, nil)
	rr := httptest.NewRecorder()
	h.MatchTrials(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if resp := decodeMatch(t, rr); len(resp.Rows) != 1 {
		t.Errorf("rows = %d, want 1", len(resp.Rows))
	}
}

func TestMatchTrialsReusesClientRunID(t *testing.T) {
	h, _ := newTestHandler(t, true, Options{})
	supplied := uuid.NewString()

	req := multipartRequest(t, "/v1/match/trials", []upload{{"patients", "p.tsv", patientsTSV}}, nil)
	req.Header.Set(logging.RunIDHeader, supplied)
	rr := httptest.NewRecorder()
	h.MatchTrials(rr, req)

	if got := rr.Header().Get(logging.RunIDHeader); got != supplied {
		t.Errorf("run id = %q, want %q", got, supplied)
	}

	req = multipartRequest(t, "/v1/match/trials", []upload{{"patients", "p.tsv", patientsTSV}}, nil)
	req.Header.Set(logging.RunIDHeader, "not-a-uuid")
	rr = httptest.NewRecorder()
	h.MatchTrials(rr, req)

	if got := rr.Header().Get(logging.RunIDHeader); got == "not-a-uuid" {
		t.Error("invalid client run id should be replaced")
	}
}

func TestMatchDrugs(t *testing.T) {
	h, _ := newTestHandler(t, true, Options{})
	req := multipartRequest(t, "/v1/match/drugs", []upload{{"patients", "p.tsv", patientsTSV}}, nil)
	rr := httptest.NewRecorder()
	h.MatchDrugs(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	resp := decodeMatch(t, rr)
	if len(resp.Rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(resp.Rows))
	}
	if resp.Rows[0][0] != "P2" {
		t.Errorf("matched patient = %q, want P2", resp.Rows[0][0])
	}

	summary := resp.Summary.(map[string]any)
	if summary["designatedMatches"] != float64(1) {
		t.Errorf("designatedMatches = %v, want 1", summary["designatedMatches"])
	}
}

func TestMatchDrugsWithoutDatabase(t *testing.T) {
	h, _ := newTestHandler(t, false, Options{})
	req := multipartRequest(t, "/v1/match/drugs", []upload{{"patients", "p.tsv", patientsTSV}}, nil)
	rr := httptest.NewRecorder()
	h.MatchDrugs(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rr.Code)
	}
}

func TestCompare(t *testing.T) {
	baseline := "PatientID,Gene\nP1,BRCA1\n"
	updated := "PatientID,Gene\nP1,BRCA1\nP2,GLA\n"

	tests := []struct {
		name     string
		files    []upload
		wantCode int
		wantRows int
	}{
		{"new patient", []upload{{"baseline", "b.csv", baseline}, {"updated", "u.csv", updated}}, http.StatusOK, 1},
		{"self diff", []upload{{"baseline", "b.csv", updated}, {"updated", "u.csv", updated}}, http.StatusOK, 0},
		{"missing updated", []upload{{"baseline", "b.csv", baseline}}, http.StatusBadRequest, 0},
		{"no PatientID column", []upload{{"baseline", "b.csv", baseline}, {"updated", "u.csv", "ID,Gene\nP2,GLA\n"}}, http.StatusUnprocessableEntity, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestHandler(t, false, Options{})
			req := multipartRequest(t, "/v1/compare", tt.files, nil)
			rr := httptest.NewRecorder()
			h.Compare(rr, req)

			if rr.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d, body = %s", rr.Code, tt.wantCode, rr.Body.String())
			}
			if tt.wantCode == http.StatusOK {
				if resp := decodeMatch(t, rr); len(resp.Rows) != tt.wantRows {
					t.Errorf("rows = %d, want %d", len(resp.Rows), tt.wantRows)
				}
			}
		})
	}
}

func TestCompareReactor(t *testing.T) {
	h, _ := newTestHandler(t, true, Options{})
	updated := "PatientID,Gene\nP1,BRCA1\nP2,GLA\n"

	req := multipartRequest(t, "/v1/compare/reactor?format=csv", []upload{{"updated", "u.csv", updated}}, nil)
	rr := httptest.NewRecorder()
	h.CompareReactor(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, "reactor_comparison_results_2024-07-16.csv") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if body := rr.Body.String(); body != "PatientID,Gene\nP2,GLA\n" {
		t.Errorf("unexpected CSV %q", body)
	}
}

func TestCompareReactorWithoutBaseline(t *testing.T) {
	h, _ := newTestHandler(t, false, Options{})
	req := multipartRequest(t, "/v1/compare/reactor", []upload{{"updated", "u.csv", "PatientID\nP1\n"}}, nil)
	rr := httptest.NewRecorder()
	h.CompareReactor(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rr.Code)
	}
}

func TestExclusionCategories(t *testing.T) {
	h, _ := newTestHandler(t, false, Options{})
	rr := httptest.NewRecorder()
	h.ExclusionCategories(rr, httptest.NewRequest(http.MethodGet, "/v1/exclusion-categories", nil))

	var body map[string][]matcher.Category
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(body["categories"]) != 8 {
		t.Errorf("categories = %d, want 8", len(body["categories"]))
	}
	if body["categories"][0].Name != "Cancer/Oncology" {
		t.Errorf("first category = %q", body["categories"][0].Name)
	}
}

func TestDatabaseStatus(t *testing.T) {
	h, _ := newTestHandler(t, true, Options{})
	rr := httptest.NewRecorder()
	h.DatabaseStatus(rr, httptest.NewRequest(http.MethodGet, "/v1/database/status", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var body DatabaseStatusResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(body.Datasets) != len(entities.DatasetNames) {
		t.Fatalf("datasets = %d, want %d", len(body.Datasets), len(entities.DatasetNames))
	}
	for i, name := range entities.DatasetNames {
		if body.Datasets[i].Name != name || !body.Datasets[i].Loaded {
			t.Errorf("dataset %d = %+v, want loaded %s", i, body.Datasets[i], name)
		}
	}
	if body.LastUpdate == "" || body.NextUpdate == "" {
		t.Error("expected last and next update times")
	}
}

func TestDatabaseStatusBeforeLoad(t *testing.T) {
	h, _ := newTestHandler(t, false, Options{})
	rr := httptest.NewRecorder()
	h.DatabaseStatus(rr, httptest.NewRequest(http.MethodGet, "/v1/database/status", nil))

	var body DatabaseStatusResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	for _, ds := range body.Datasets {
		if ds.Loaded || ds.Error == "" {
			t.Errorf("dataset %s should be reported as not loaded", ds.Name)
		}
	}
}

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		name       string
		loaded     bool
		wantStatus string
		wantCode   int
	}{
		{"loaded", true, "healthy", http.StatusOK},
		{"empty", false, "unhealthy", http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestHandler(t, tt.loaded, Options{})
			rr := httptest.NewRecorder()
			h.HealthCheck(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

			if rr.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantCode)
			}
			var body HealthResponse
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatalf("invalid JSON: %v", err)
			}
			if body.Status != tt.wantStatus {
				t.Errorf("health = %q, want %q", body.Status, tt.wantStatus)
			}
			if body.System["goroutines"] == nil {
				t.Error("expected system metrics")
			}
		})
	}
}

func TestFormatUptimeHuman(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0s"},
		{45 * time.Second, "45s"},
		{2*time.Minute + 5*time.Second, "2m 5s"},
		{3*time.Hour + 5*time.Second, "3h 0m 5s"},
		{50 * time.Hour, "2d 2h 0m 0s"},
	}
	for _, tt := range tests {
		if got := formatUptimeHuman(tt.d); got != tt.want {
			t.Errorf("formatUptimeHuman(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestProgressLogger(t *testing.T) {
	progress := progressLogger("trials", "run")
	for i := 1; i <= 25; i++ {
		progress(i, 25)
	}
	progress(0, 0)
}

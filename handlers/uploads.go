package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dimi-lab/trader/logging"
	"github.com/dimi-lab/trader/recordsparser"
	"github.com/dimi-lab/trader/recordsparser/entities"
)

// multipartMemory is the part of a multipart form kept in memory; the rest
// spills to temporary files.
const multipartMemory = 32 << 20

// Multipart field names.
const (
	fieldPatients     = "patients"
	fieldPatientsText = "patients_text"
	fieldTrials       = "trials"
	fieldExclude      = "exclude"
	fieldBaseline     = "baseline"
	fieldUpdated      = "updated"
)

// missingFieldError marks a request without a required upload.
type missingFieldError struct {
	field string
}

func (e *missingFieldError) Error() string {
	return fmt.Sprintf("missing required field %q", e.field)
}

// parseForm reads the multipart body within the upload limit. It writes the
// error response itself and reports whether the handler may continue.
func (h *HTTPHandlerImpl) parseForm(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxUploadSize)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.RespondWithError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("upload too large. Maximum allowed size is %d bytes", tooLarge.Limit))
			return false
		}
		h.RespondWithError(w, http.StatusBadRequest, "expected a multipart/form-data body")
		return false
	}
	return true
}

// readUpload decodes one uploaded file. ok is false when the field is absent.
func (h *HTTPHandlerImpl) readUpload(r *http.Request, field string) (text string, ok bool, err error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to open upload %s: %w", field, err)
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return "", false, fmt.Errorf("failed to read upload %s: %w", field, err)
	}

	text, enc, err := recordsparser.Decode(raw, h.opts.Encodings)
	if err != nil {
		return "", false, fmt.Errorf("%s (%s): %w", field, header.Filename, err)
	}
	logging.Debug("Upload decoded", "field", field, "filename", header.Filename, "bytes", len(raw), "encoding", enc)
	return text, true, nil
}

// readPatients takes the patient file, falling back to pasted text. A file
// that is not a 3-column headerless table is read as a headered table with
// named columns.
func (h *HTTPHandlerImpl) readPatients(r *http.Request) ([]entities.PatientRecord, error) {
	text, ok, err := h.readUpload(r, fieldPatients)
	if err != nil {
		return nil, err
	}
	if ok {
		patients, _, err := recordsparser.MakePatients(text)
		if err == nil {
			return patients, nil
		}
		if headered, _, herr := recordsparser.MakePatientsHeadered(text); herr == nil {
			return headered, nil
		}
		return nil, err
	}

	if pasted := r.FormValue(fieldPatientsText); strings.TrimSpace(pasted) != "" {
		return recordsparser.ParsePatientText(pasted)
	}
	return nil, &missingFieldError{field: fieldPatients}
}

// readComparison parses a required comparison table upload.
func (h *HTTPHandlerImpl) readComparison(r *http.Request, field string) (*entities.Table, error) {
	text, ok, err := h.readUpload(r, field)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &missingFieldError{field: field}
	}
	table, _, err := recordsparser.MakeComparisonTable(text)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	return table, nil
}

// exclusions returns the non-blank exclude values that pass input validation.
// Values that fail it are only counted so the caller can warn about them.
func (h *HTTPHandlerImpl) exclusions(r *http.Request) (selected []string, rejected int) {
	if r.MultipartForm == nil {
		return nil, 0
	}
	for _, value := range r.MultipartForm.Value[fieldExclude] {
		if strings.TrimSpace(value) == "" {
			continue
		}
		if err := h.validator.ValidateInput(value); err != nil {
			logging.Warn("Ignoring invalid exclusion category", "error", err)
			rejected++
			continue
		}
		selected = append(selected, value)
	}
	return selected, rejected
}

// respondWithInputError answers a failed upload read.
func (h *HTTPHandlerImpl) respondWithInputError(w http.ResponseWriter, runID string, err error) {
	var missing *missingFieldError
	if errors.As(err, &missing) {
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.respondWithPipelineError(w, runID, err)
}

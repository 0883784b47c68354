// Package validation checks user input and the quality of the reference datasets.
package validation

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/dimi-lab/trader/interfaces"
	"github.com/dimi-lab/trader/logging"
	"github.com/dimi-lab/trader/recordsparser/entities"
)

// maxListedIssues caps the identifiers kept in a report list.
const maxListedIssues = 50

var (
	// Category names and similar short inputs: letters, digits, accents and
	// the punctuation found in category names.
	inputRegex = regexp.MustCompile(`^[\p{L}0-9\s\-\.\+'/,&()]+$`)

	// HGNC symbols: uppercase letter first, then letters, digits, hyphens,
	// optionally an @ for gene groups or an orf infix (C1orf112).
	geneSymbolRegex = regexp.MustCompile(`^[A-Z][A-Z0-9-]*(orf[0-9]+)?[A-Z0-9@]*$`)

	dangerousPatterns = []string{
		"<script", "</script>", "javascript:", "vbscript:", "onload=", "onerror=",
		"eval(", "expression(", "@import",
		// SQL injection patterns
		"' or ", "\" or ", "union select", "drop table", "delete from", "insert into",
		"--", "/*", "*/", "exec(",
		// Command injection patterns
		"`", "$(", "${",
		// Path traversal patterns
		"../", "..\\", "%2e%2e", "file://",
	}
)

// DataValidatorImpl implements the interfaces.DataValidator interface
type DataValidatorImpl struct{}

// Compile-time check to ensure DataValidatorImpl implements DataValidator
var _ interfaces.DataValidator = (*DataValidatorImpl)(nil)

// NewDataValidator creates a new data validator
func NewDataValidator() interfaces.DataValidator {
	return &DataValidatorImpl{}
}

// ValidateInput validates short user supplied strings such as category names
func (v *DataValidatorImpl) ValidateInput(input string) error {
	if strings.TrimSpace(input) == "" {
		return fmt.Errorf("input cannot be empty")
	}

	if len(input) > 100 {
		return fmt.Errorf("input too long: maximum 100 characters")
	}

	lowerInput := strings.ToLower(input)
	for _, pattern := range dangerousPatterns {
		if strings.Contains(lowerInput, pattern) {
			return fmt.Errorf("input contains potentially dangerous content")
		}
	}

	if !inputRegex.MatchString(input) {
		return fmt.Errorf("input contains invalid characters. Only letters, numbers, spaces and - . + ' / , & ( ) are allowed")
	}

	if hasExcessiveRepetition(input) {
		return fmt.Errorf("input contains excessive character repetition")
	}

	return nil
}

// ValidateGeneSymbol checks a symbol against HGNC naming conventions.
// Lowercase symbols are accepted since trial matching upper-cases them.
func (v *DataValidatorImpl) ValidateGeneSymbol(symbol string) error {
	if symbol == "" {
		return fmt.Errorf("gene symbol cannot be empty")
	}
	if strings.TrimSpace(symbol) != symbol {
		return fmt.Errorf("gene symbol %q has surrounding whitespace", symbol)
	}
	if len(symbol) > 20 {
		return fmt.Errorf("gene symbol %q is too long: maximum 20 characters", symbol)
	}

	upper := strings.ToUpper(symbol)
	if strings.Contains(upper, "ORF") {
		// restore the lowercase orf infix HGNC uses for open reading frames
		upper = strings.Replace(upper, "ORF", "orf", 1)
	}
	if !geneSymbolRegex.MatchString(upper) {
		return fmt.Errorf("gene symbol %q does not follow HGNC naming", symbol)
	}
	return nil
}

// ValidatePatients returns the IDs of patients whose gene symbol looks non-standard.
// Such rows still go through matching; the list only feeds a warning.
func (v *DataValidatorImpl) ValidatePatients(patients []entities.PatientRecord) []string {
	var suspicious []string
	for _, p := range patients {
		if p.IsHeaderArtifact() {
			continue
		}
		if err := v.ValidateGeneSymbol(p.Gene); err != nil {
			suspicious = append(suspicious, p.PatientID)
		}
	}
	return suspicious
}

// ReportDataQuality generates a data quality report for a loaded snapshot.
// Missing datasets are skipped.
func (v *DataValidatorImpl) ReportDataQuality(ref *entities.ReferenceData) *interfaces.DataQualityReport {
	report := &interfaces.DataQualityReport{
		DuplicateTrialIDs:  []string{},
		NonStandardSymbols: []string{},
	}
	if ref == nil {
		return report
	}

	seenTrials := make(map[string]int, len(ref.Trials))
	for _, trial := range ref.Trials {
		seenTrials[trial.ClinicalTrialID]++
		if strings.TrimSpace(trial.ConditionGenePhenotype) == "" {
			report.TrialsWithoutCondition++
		}
	}
	for id, count := range seenTrials {
		if count > 1 {
			report.DuplicateTrialIDs = append(report.DuplicateTrialIDs, id)
		}
	}
	slices.Sort(report.DuplicateTrialIDs)

	if ref.GeneDisease != nil {
		seenPairs := make(map[[2]string]bool, ref.GeneDisease.Len())
		seenSymbols := make(map[string]bool)
		for _, a := range ref.GeneDisease.Associations {
			pair := [2]string{a.Symbol, a.Name}
			if seenPairs[pair] {
				report.DuplicateAssociations++
			}
			seenPairs[pair] = true

			if strings.TrimSpace(a.Name) == "" {
				report.AssociationsWithoutName++
			}
			if !seenSymbols[a.Symbol] && v.ValidateGeneSymbol(a.Symbol) != nil {
				seenSymbols[a.Symbol] = true
				if len(report.NonStandardSymbols) < maxListedIssues {
					report.NonStandardSymbols = append(report.NonStandardSymbols, a.Symbol)
				}
			}
		}
	}

	if ref.OrphanDrugs != nil {
		for _, d := range ref.OrphanDrugs.Drugs {
			if strings.TrimSpace(d.OrphanDesignation) == "" {
				report.DrugsWithoutDesignation++
			}
			if d.OrphanDesignationStatus == entities.DesignatedStatus {
				report.DesignatedDrugs++
			}
		}
	}

	if ref.Reactor != nil {
		for _, id := range ref.Reactor.Column(entities.PatientIDColumn) {
			switch {
			case id == entities.HeaderArtifactID:
				report.ReactorHeaderArtifactRows++
			case strings.TrimSpace(id) == "":
				report.ReactorRowsWithoutPatient++
			}
		}
	}

	return report
}

// LogReport writes the non-empty parts of a report as warnings.
func LogReport(report *interfaces.DataQualityReport) {
	if report == nil {
		return
	}
	if len(report.DuplicateTrialIDs) > 0 {
		logging.Warn("Duplicate trial IDs detected",
			"total", len(report.DuplicateTrialIDs),
			"trial_ids", report.DuplicateTrialIDs)
	}
	if report.TrialsWithoutCondition > 0 {
		logging.Warn("Trials without condition text", "count", report.TrialsWithoutCondition)
	}
	if report.DuplicateAssociations > 0 {
		logging.Warn("Duplicate gene-disease associations", "count", report.DuplicateAssociations)
	}
	if report.AssociationsWithoutName > 0 {
		logging.Warn("Gene-disease associations without disease name", "count", report.AssociationsWithoutName)
	}
	if len(report.NonStandardSymbols) > 0 {
		logging.Warn("Non-standard gene symbols in gene-disease table",
			"count", len(report.NonStandardSymbols),
			"symbols", report.NonStandardSymbols)
	}
	if report.DrugsWithoutDesignation > 0 {
		logging.Warn("Orphan drugs without designation text", "count", report.DrugsWithoutDesignation)
	}
	if report.ReactorRowsWithoutPatient > 0 || report.ReactorHeaderArtifactRows > 0 {
		logging.Warn("REACTOR baseline rows without a usable PatientID",
			"empty", report.ReactorRowsWithoutPatient,
			"header_rows", report.ReactorHeaderArtifactRows)
	}
}

// hasExcessiveRepetition reports the same byte repeated more than 10 times in a row
func hasExcessiveRepetition(input string) bool {
	run := 1
	for i := 1; i < len(input); i++ {
		if input[i] == input[i-1] {
			run++
			if run > 10 {
				return true
			}
		} else {
			run = 1
		}
	}
	return false
}

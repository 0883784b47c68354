// Package matcher matches patient genetic records against clinical trials and
// orphan drug designations, and diffs patient record sets by PatientID.
// Every pipeline is a synchronous computation over in-memory tables; loading,
// caching and decoding belong to the callers.
package matcher

import (
	"fmt"

	"github.com/dimi-lab/trader/logging"
)

// ProgressFunc is called after every input row with the number of rows
// processed so far and the total row count.
type ProgressFunc func(processed, total int)

func (p ProgressFunc) report(processed, total int) {
	if p != nil {
		p(processed, total)
	}
}

// Engine runs the matching pipelines. It holds no per-call state, so a
// single Engine may serve concurrent calls.
type Engine struct {
	text       *TextMatcher
	categories *ExclusionCategories
}

// NewEngine builds an engine. Nil arguments are replaced by a default
// text matcher and the built-in exclusion categories.
func NewEngine(text *TextMatcher, categories *ExclusionCategories) (*Engine, error) {
	var err error
	if text == nil {
		if text, err = NewTextMatcher(DefaultPatternCacheSize); err != nil {
			return nil, err
		}
	}
	if categories == nil {
		if categories, err = DefaultExclusionCategories(); err != nil {
			return nil, fmt.Errorf("failed to load default exclusion categories: %w", err)
		}
	}
	return &Engine{text: text, categories: categories}, nil
}

// Categories returns the exclusion categories used by the engine.
func (e *Engine) Categories() *ExclusionCategories {
	return e.categories
}

// TextMatcher returns the engine's shared text matcher.
func (e *Engine) TextMatcher() *TextMatcher {
	return e.text
}

// skipRow records a per-row anomaly; it never aborts the batch.
func skipRow(pipeline string, row int, patientID string, err error) {
	logging.Debug("Row skipped", "pipeline", pipeline, "row", row, "patient_id", patientID, "reason", err)
}

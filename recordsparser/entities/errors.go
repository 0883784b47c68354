package entities

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMalformedInput marks structural input problems: wrong column count,
	// missing required columns or an empty table.
	ErrMalformedInput = errors.New("malformed input")

	// ErrDecoding marks byte streams that no configured encoding could decode.
	ErrDecoding = errors.New("decoding failure")
)

// MalformedInputError describes what structure was expected and what was found.
type MalformedInputError struct {
	Table    string // "patient", "trial", "gene-disease", ...
	Reason   string
	Expected []string
	Found    []string
}

func (e *MalformedInputError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s table: %s", e.Table, e.Reason)
	if len(e.Expected) > 0 {
		fmt.Fprintf(&b, " (expected: %s", strings.Join(e.Expected, ", "))
		if e.Found != nil {
			fmt.Fprintf(&b, "; found: %s", strings.Join(e.Found, ", "))
		}
		b.WriteString(")")
	}
	return b.String()
}

func (e *MalformedInputError) Unwrap() error {
	return ErrMalformedInput
}

// NewMalformedInputError builds a MalformedInputError.
func NewMalformedInputError(table, reason string, expected, found []string) *MalformedInputError {
	return &MalformedInputError{
		Table:    table,
		Reason:   reason,
		Expected: expected,
		Found:    found,
	}
}

// DecodingError lists the encodings that were tried, in order.
type DecodingError struct {
	Tried []string
}

func (e *DecodingError) Error() string {
	return fmt.Sprintf("could not decode input with any of: %s", strings.Join(e.Tried, ", "))
}

func (e *DecodingError) Unwrap() error {
	return ErrDecoding
}

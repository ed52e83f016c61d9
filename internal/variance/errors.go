package variance

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cleared-dev/fpa/internal/model"
)

var (
	// ErrEmptyInput indicates a dataset with no rows.
	ErrEmptyInput = errors.New("variance: dataset has no rows")
	// ErrMissingColumns indicates the header lacks a required column.
	ErrMissingColumns = errors.New("variance: missing required columns")
	// ErrAlreadyAugmented indicates the header already carries derived columns.
	ErrAlreadyAugmented = errors.New("variance: dataset already has variance columns")
	// ErrDivisionByZero indicates a zero forecast under the strict policy.
	ErrDivisionByZero = errors.New("variance: forecast is zero")
	// ErrInvalidValue indicates an unusable cell in a required column.
	ErrInvalidValue = errors.New("variance: invalid value")
)

// MissingColumnsError lists the required columns absent from a header.
type MissingColumnsError struct {
	Missing []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("CSV must contain columns: %s (missing: %s)",
		strings.Join(model.RequiredColumns, ", "), strings.Join(e.Missing, ", "))
}

// Is reports ErrMissingColumns.
func (e *MissingColumnsError) Is(target error) bool {
	return target == ErrMissingColumns
}

// RowError ties a per-row failure to its 1-based CSV line (header is line 1).
type RowError struct {
	Line   int
	Column string
	Err    error
}

func (e *RowError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("line %d, column %q: %v", e.Line, e.Column, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

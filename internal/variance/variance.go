// Package variance computes Forecast vs Actual variance for a dataset.
package variance

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/fpa/internal/model"
)

// ZeroForecastPolicy selects how a zero forecast is reported.
type ZeroForecastPolicy string

const (
	// ZeroForecastMarker leaves VariancePercent invalid (rendered as N/A).
	ZeroForecastMarker ZeroForecastPolicy = "marker"
	// ZeroForecastError fails the whole transform with ErrDivisionByZero.
	ZeroForecastError ZeroForecastPolicy = "error"
)

var hundred = decimal.NewFromInt(100)

// Calculator applies the variance transform.
type Calculator struct {
	policy ZeroForecastPolicy
}

// NewCalculator returns a Calculator; an empty policy means ZeroForecastMarker.
func NewCalculator(policy ZeroForecastPolicy) *Calculator {
	if policy == "" {
		policy = ZeroForecastMarker
	}
	return &Calculator{policy: policy}
}

// Policy returns the calculator's zero-forecast policy.
func (c *Calculator) Policy() ZeroForecastPolicy { return c.policy }

// Apply augments a single record. A zero forecast yields an invalid percentage.
func Apply(rec model.Record) model.Row {
	v := rec.Actual.Sub(rec.Forecast)
	row := model.Row{Record: rec, Variance: v}
	if !rec.Forecast.IsZero() {
		pct := v.Mul(hundred).Div(rec.Forecast).RoundBank(2)
		row.VariancePercent = decimal.NewNullDecimal(pct)
	}
	return row
}

// CheckSchema validates a header once: every required column present and no
// derived column already there.
func CheckSchema(columns []string) error {
	present := make(map[string]bool, len(columns))
	for _, c := range columns {
		present[c] = true
	}

	var missing []string
	for _, req := range model.RequiredColumns {
		if !present[req] {
			missing = append(missing, req)
		}
	}
	if len(missing) > 0 {
		return &MissingColumnsError{Missing: missing}
	}

	for _, d := range model.DerivedColumns {
		if present[d] {
			return fmt.Errorf("%w: column %q", ErrAlreadyAugmented, d)
		}
	}
	return nil
}

// Calculate validates the table schema, converts its rows to records and
// augments them. Original columns are kept; derived columns are appended.
func (c *Calculator) Calculate(t model.Table) (*model.Analysis, error) {
	if len(t.Rows) == 0 {
		return nil, ErrEmptyInput
	}
	if err := CheckSchema(t.Columns); err != nil {
		return nil, err
	}

	records, err := Records(t)
	if err != nil {
		return nil, err
	}

	rows, err := c.Compute(records)
	if err != nil {
		return nil, err
	}

	cols := make([]string, 0, len(t.Columns)+len(model.DerivedColumns))
	cols = append(cols, t.Columns...)
	cols = append(cols, model.DerivedColumns...)
	return &model.Analysis{Columns: cols, Rows: rows}, nil
}

// Compute augments an ordered sequence of records.
func (c *Calculator) Compute(records []model.Record) ([]model.Row, error) {
	if len(records) == 0 {
		return nil, ErrEmptyInput
	}

	rows := make([]model.Row, len(records))
	for i, rec := range records {
		if rec.Forecast.IsZero() && c.policy == ZeroForecastError {
			return nil, fmt.Errorf("record %d (%s): %w", i+1, rec.Category, ErrDivisionByZero)
		}
		rows[i] = Apply(rec)
	}
	return rows, nil
}

// Records converts table rows into records. The schema must already have
// passed CheckSchema.
func Records(t model.Table) ([]model.Record, error) {
	catIdx := t.Index(model.ColumnCategory)
	fcIdx := t.Index(model.ColumnForecast)
	actIdx := t.Index(model.ColumnActual)
	if catIdx < 0 || fcIdx < 0 || actIdx < 0 {
		return nil, CheckSchema(t.Columns)
	}

	records := make([]model.Record, 0, len(t.Rows))
	for i, cells := range t.Rows {
		line := i + 2
		if len(cells) != len(t.Columns) {
			return nil, &RowError{
				Line: line,
				Err:  fmt.Errorf("%w: expected %d fields, got %d", ErrInvalidValue, len(t.Columns), len(cells)),
			}
		}

		category := strings.TrimSpace(cells[catIdx])
		if category == "" {
			return nil, &RowError{Line: line, Column: model.ColumnCategory, Err: fmt.Errorf("%w: empty category", ErrInvalidValue)}
		}

		forecast, err := parseAmount(cells[fcIdx])
		if err != nil {
			return nil, &RowError{Line: line, Column: model.ColumnForecast, Err: err}
		}
		actual, err := parseAmount(cells[actIdx])
		if err != nil {
			return nil, &RowError{Line: line, Column: model.ColumnActual, Err: err}
		}

		records = append(records, model.Record{
			Category: category,
			Forecast: forecast,
			Actual:   actual,
			Cells:    cells,
		})
	}
	return records, nil
}

// parseAmount accepts plain and exponent notation. NaN and Inf are rejected
// by the decimal parser, which keeps every amount finite.
func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: empty amount", ErrInvalidValue)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: parsing amount %q", ErrInvalidValue, s)
	}
	return d, nil
}

// Summarize totals an analysis. The total percentage is invalid when the
// total forecast is zero.
func Summarize(a *model.Analysis) model.Totals {
	var t model.Totals
	if a == nil {
		return t
	}
	for _, r := range a.Rows {
		t.Forecast = t.Forecast.Add(r.Forecast)
		t.Actual = t.Actual.Add(r.Actual)
		switch r.Variance.Sign() {
		case 1:
			t.Over++
		case -1:
			t.Under++
		}
	}
	t.Variance = t.Actual.Sub(t.Forecast)
	if !t.Forecast.IsZero() {
		t.VariancePercent = decimal.NewNullDecimal(t.Variance.Mul(hundred).Div(t.Forecast).RoundBank(2))
	}
	return t
}

// DuplicateCategories returns categories that occur more than once, in
// first-seen order.
func DuplicateCategories(a *model.Analysis) []string {
	if a == nil {
		return nil
	}
	seen := make(map[string]int, len(a.Rows))
	var dups []string
	for _, r := range a.Rows {
		seen[r.Category]++
		if seen[r.Category] == 2 {
			dups = append(dups, r.Category)
		}
	}
	return dups
}

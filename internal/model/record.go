package model

import (
	"github.com/shopspring/decimal"
)

// Column names of the input CSV. Matching is exact and case-sensitive.
const (
	ColumnCategory = "Department"
	ColumnForecast = "Forecast"
	ColumnActual   = "Actual"
)

// Derived column names appended by the variance transform.
const (
	ColumnVariance        = "Variance"
	ColumnVariancePercent = "Variance %"
)

// RequiredColumns lists the input columns every dataset must carry.
var RequiredColumns = []string{ColumnCategory, ColumnForecast, ColumnActual}

// DerivedColumns lists the columns appended by the variance transform.
var DerivedColumns = []string{ColumnVariance, ColumnVariancePercent}

// Table is a freshly ingested CSV: a header plus raw string rows.
type Table struct {
	Columns []string
	Rows    [][]string
}

// Index returns the position of the named column, or -1.
func (t Table) Index(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Record is one Forecast vs Actual line keyed by category (department).
type Record struct {
	Category string
	Forecast decimal.Decimal
	Actual   decimal.Decimal
	Cells    []string // original CSV cells, in Table column order
}

// Row is a Record augmented with its variance figures.
type Row struct {
	Record
	Variance decimal.Decimal
	// VariancePercent is invalid when the forecast is zero.
	VariancePercent decimal.NullDecimal
}

// Analysis is the augmented dataset produced from one ingestion event.
type Analysis struct {
	Columns []string // original columns followed by DerivedColumns
	Rows    []Row
}

// Totals aggregates an Analysis across all rows.
type Totals struct {
	Forecast        decimal.Decimal
	Actual          decimal.Decimal
	Variance        decimal.Decimal
	VariancePercent decimal.NullDecimal
	Over            int // rows with actual above forecast
	Under           int // rows with actual below forecast
}

package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestTableIndex(t *testing.T) {
	tbl := Table{Columns: []string{"Department", "Forecast", "Actual", "Owner"}}

	tests := []struct {
		name string
		want int
	}{
		{"Department", 0},
		{"Actual", 2},
		{"Owner", 3},
		{"department", -1},
		{"Variance", -1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tbl.Index(tt.name), "Index(%q)", tt.name)
	}
}

func TestFormatPercent(t *testing.T) {
	assert.Equal(t, "4.17", FormatPercent(decimal.NewNullDecimal(decimal.RequireFromString("4.17"))))
	assert.Equal(t, "-5.00", FormatPercent(decimal.NewNullDecimal(decimal.NewFromInt(-5))))
	assert.Equal(t, NotApplicable, FormatPercent(decimal.NullDecimal{}))
}

func TestRowCells(t *testing.T) {
	row := Row{
		Record: Record{
			Category: "HR",
			Forecast: decimal.NewFromInt(30000),
			Actual:   decimal.NewFromInt(28000),
			Cells:    []string{"HR", "30000", "28000"},
		},
		Variance:        decimal.NewFromInt(-2000),
		VariancePercent: decimal.NewNullDecimal(decimal.RequireFromString("-6.67")),
	}
	assert.Equal(t, []string{"HR", "30000", "28000", "-2000", "-6.67"}, row.Cells())

	// Cells must not alias the record's backing array.
	cells := row.Cells()
	cells[0] = "changed"
	assert.Equal(t, "HR", row.Record.Cells[0])
}

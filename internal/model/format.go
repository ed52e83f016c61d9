package model

import (
	"github.com/shopspring/decimal"
)

// NotApplicable is shown wherever a variance percentage is undefined.
const NotApplicable = "N/A"

// FormatAmount renders a money amount without trailing zeros ("-5000", "12.5").
func FormatAmount(d decimal.Decimal) string {
	return d.String()
}

// FormatPercent renders a variance percentage with two decimals, or N/A.
func FormatPercent(p decimal.NullDecimal) string {
	if !p.Valid {
		return NotApplicable
	}
	return p.Decimal.StringFixed(2)
}

// Cells returns the row's original cells followed by the derived values.
func (r Row) Cells() []string {
	out := make([]string, 0, len(r.Record.Cells)+2)
	out = append(out, r.Record.Cells...)
	out = append(out, FormatAmount(r.Variance), FormatPercent(r.VariancePercent))
	return out
}

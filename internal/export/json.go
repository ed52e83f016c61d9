package export

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/fpa/internal/model"
	"github.com/cleared-dev/fpa/internal/variance"
)

// Document is the JSON shape of an analysis. Amounts are decimal strings;
// an undefined percentage is null.
type Document struct {
	Columns    []string  `json:"columns"`
	Rows       []RowDoc  `json:"rows"`
	Totals     TotalsDoc `json:"totals"`
	Duplicates []string  `json:"duplicate_departments,omitempty"`
	Insights   string    `json:"insights,omitempty"`
}

// RowDoc is one augmented row.
type RowDoc struct {
	Department      string              `json:"department"`
	Forecast        decimal.Decimal     `json:"forecast"`
	Actual          decimal.Decimal     `json:"actual"`
	Variance        decimal.Decimal     `json:"variance"`
	VariancePercent decimal.NullDecimal `json:"variance_percent"`
	Extra           map[string]string   `json:"extra,omitempty"`
}

// TotalsDoc mirrors model.Totals.
type TotalsDoc struct {
	Forecast        decimal.Decimal     `json:"forecast"`
	Actual          decimal.Decimal     `json:"actual"`
	Variance        decimal.Decimal     `json:"variance"`
	VariancePercent decimal.NullDecimal `json:"variance_percent"`
	Over            int                 `json:"over_forecast"`
	Under           int                 `json:"under_forecast"`
}

// NewDocument builds the JSON view of an analysis. Columns other than the
// required ones are carried in Extra.
func NewDocument(a *model.Analysis, insights string) Document {
	doc := Document{Insights: insights}
	if a == nil {
		return doc
	}

	required := make(map[string]bool, len(model.RequiredColumns))
	for _, c := range model.RequiredColumns {
		required[c] = true
	}

	doc.Columns = a.Columns
	doc.Rows = make([]RowDoc, 0, len(a.Rows))
	for _, r := range a.Rows {
		rd := RowDoc{
			Department:      r.Category,
			Forecast:        r.Forecast,
			Actual:          r.Actual,
			Variance:        r.Variance,
			VariancePercent: r.VariancePercent,
		}
		for i, cell := range r.Record.Cells {
			if i >= len(a.Columns) || required[a.Columns[i]] {
				continue
			}
			if rd.Extra == nil {
				rd.Extra = make(map[string]string)
			}
			rd.Extra[a.Columns[i]] = cell
		}
		doc.Rows = append(doc.Rows, rd)
	}

	t := variance.Summarize(a)
	doc.Totals = TotalsDoc{
		Forecast:        t.Forecast,
		Actual:          t.Actual,
		Variance:        t.Variance,
		VariancePercent: t.VariancePercent,
		Over:            t.Over,
		Under:           t.Under,
	}
	doc.Duplicates = variance.DuplicateCategories(a)
	return doc
}

// WriteJSON writes the indented JSON document.
func WriteJSON(w io.Writer, a *model.Analysis, insights string) error {
	if a == nil || len(a.Rows) == 0 {
		return ErrNoData
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(NewDocument(a, insights)); err != nil {
		return fmt.Errorf("encoding JSON: %w", err)
	}
	return nil
}

package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/cleared-dev/fpa/internal/model"
)

// SheetName is the worksheet holding the augmented dataset.
const SheetName = "Variance"

// WriteXLSX writes the augmented dataset as a single-sheet workbook. Money
// columns and the percentage are numeric cells; an undefined percentage is
// the text N/A. Other columns are written as text.
func WriteXLSX(w io.Writer, a *model.Analysis) error {
	if a == nil || len(a.Rows) == 0 {
		return ErrNoData
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}

	for c, name := range a.Columns {
		cell, err := excelize.CoordinatesToCellName(c+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(SheetName, cell, name); err != nil {
			return fmt.Errorf("writing header %q: %w", name, err)
		}
	}
	last, err := excelize.CoordinatesToCellName(len(a.Columns), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetName, "A1", last, bold); err != nil {
		return fmt.Errorf("styling header: %w", err)
	}

	for i, row := range a.Rows {
		for c, name := range a.Columns {
			cell, err := excelize.CoordinatesToCellName(c+1, i+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(SheetName, cell, xlsxValue(row, name, c)); err != nil {
				return fmt.Errorf("writing row %d: %w", i+2, err)
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

func xlsxValue(row model.Row, column string, idx int) any {
	switch column {
	case model.ColumnForecast:
		return row.Forecast.InexactFloat64()
	case model.ColumnActual:
		return row.Actual.InexactFloat64()
	case model.ColumnVariance:
		return row.Variance.InexactFloat64()
	case model.ColumnVariancePercent:
		if !row.VariancePercent.Valid {
			return model.NotApplicable
		}
		return row.VariancePercent.Decimal.InexactFloat64()
	}
	if idx < len(row.Record.Cells) {
		return row.Record.Cells[idx]
	}
	return ""
}

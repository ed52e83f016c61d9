// Package export renders an augmented dataset as CSV, JSON, XLSX or PDF.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/cleared-dev/fpa/internal/model"
)

// ErrNoData is returned when there is no analysis to export.
var ErrNoData = errors.New("export: no analysis to export")

// Format names an export format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatXLSX Format = "xlsx"
	FormatPDF  Format = "pdf"
)

// ContentType returns the MIME type served for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatJSON:
		return "application/json"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatPDF:
		return "application/pdf"
	}
	return "application/octet-stream"
}

// FormatFromPath picks a format by file extension.
func FormatFromPath(path string) (Format, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	switch f := Format(ext); f {
	case FormatCSV, FormatJSON, FormatXLSX, FormatPDF:
		return f, nil
	}
	return "", fmt.Errorf("export: unsupported file extension %q", filepath.Ext(path))
}

// WriteCSV writes the augmented dataset: original columns first, then
// Variance and Variance %. This is also the text sent to the language model.
func WriteCSV(w io.Writer, a *model.Analysis) error {
	if a == nil || len(a.Rows) == 0 {
		return ErrNoData
	}

	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(a.Columns); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, row := range a.Rows {
		if err := cw.Write(row.Cells()); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// CSVString is WriteCSV into a string.
func CSVString(a *model.Analysis) (string, error) {
	var sb strings.Builder
	if err := WriteCSV(&sb, a); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// Package ingest turns uploaded CSV bytes into a model.Table.
package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cleared-dev/fpa/internal/model"
	"github.com/cleared-dev/fpa/internal/variance"
)

// DefaultMaxBytes is the upload cap (5 MB).
const DefaultMaxBytes int64 = 5 * 1024 * 1024

var (
	// ErrEmptyFile indicates a file with no bytes or no data rows.
	ErrEmptyFile = errors.New("the uploaded CSV is empty")
	// ErrFileTooLarge indicates a file above the configured cap.
	ErrFileTooLarge = errors.New("file too large")
	// ErrMalformedCSV indicates bytes the CSV reader could not parse.
	ErrMalformedCSV = errors.New("error reading CSV")
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CheckSize rejects a declared size above limit before any byte is read.
func CheckSize(size, limit int64) error {
	if limit <= 0 {
		limit = DefaultMaxBytes
	}
	if size > limit {
		return fmt.Errorf("%w: %s exceeds the %s limit", ErrFileTooLarge, humanBytes(size), humanBytes(limit))
	}
	if size == 0 {
		return ErrEmptyFile
	}
	return nil
}

// Read parses at most limit bytes of CSV from r. The header row is required;
// at least one data row must follow it.
func Read(r io.Reader, limit int64) (model.Table, error) {
	if limit <= 0 {
		limit = DefaultMaxBytes
	}

	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return model.Table{}, fmt.Errorf("reading upload: %w", err)
	}
	if int64(len(data)) > limit {
		return model.Table{}, fmt.Errorf("%w: larger than the %s limit", ErrFileTooLarge, humanBytes(limit))
	}

	data = bytes.TrimPrefix(data, utf8BOM)
	if len(bytes.TrimSpace(data)) == 0 {
		return model.Table{}, ErrEmptyFile
	}

	return Parse(data)
}

// Parse reads CSV bytes without a size check.
func Parse(data []byte) (model.Table, error) {
	cr := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)))
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return model.Table{}, fmt.Errorf("%w: %w", ErrMalformedCSV, err)
	}
	if len(records) == 0 {
		return model.Table{}, ErrEmptyFile
	}

	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.TrimSpace(h)
	}

	var rows [][]string
	for _, rec := range records[1:] {
		if isBlank(rec) {
			continue
		}
		rows = append(rows, rec)
	}
	if len(rows) == 0 {
		return model.Table{}, ErrEmptyFile
	}

	return model.Table{Columns: header, Rows: rows}, nil
}

// Load reads and schema-checks an upload in one step. The returned table is
// ready for the variance calculator.
func Load(r io.Reader, limit int64) (model.Table, error) {
	tbl, err := Read(r, limit)
	if err != nil {
		return model.Table{}, err
	}
	if err := variance.CheckSchema(tbl.Columns); err != nil {
		return model.Table{}, err
	}
	return tbl, nil
}

func isBlank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func humanBytes(n int64) string {
	const mb = 1024 * 1024
	if n >= mb {
		return fmt.Sprintf("%.1f MB", float64(n)/mb)
	}
	if n >= 1024 {
		return fmt.Sprintf("%.1f KB", float64(n)/1024)
	}
	return fmt.Sprintf("%d B", n)
}

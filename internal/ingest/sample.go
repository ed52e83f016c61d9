package ingest

import (
	"github.com/cleared-dev/fpa/internal/model"
)

// SampleCSV is the built-in demo dataset.
const SampleCSV = `Department,Forecast,Actual
Sales,100000,95000
Marketing,50000,60000
Engineering,120000,125000
HR,30000,28000
Finance,40000,45000
`

// SampleFileName is the download name of the sample dataset.
const SampleFileName = "sample_forecast_vs_actual.csv"

// Sample returns the demo dataset as a fresh table.
func Sample() model.Table {
	tbl, err := Parse([]byte(SampleCSV))
	if err != nil {
		panic("ingest: invalid sample CSV: " + err.Error())
	}
	return tbl
}

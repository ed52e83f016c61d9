package export

import (
	"fmt"
	"io"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/cleared-dev/fpa/internal/model"
	"github.com/cleared-dev/fpa/internal/variance"
)

// Report is the content of a PDF variance report.
type Report struct {
	Title       string
	Analysis    *model.Analysis
	Insights    string
	GeneratedAt time.Time
}

// WritePDF renders a landscape A4 report: a totals summary, the variance
// table and, when present, the AI insights text.
func WritePDF(w io.Writer, r Report) error {
	a := r.Analysis
	if a == nil || len(a.Rows) == 0 {
		return ErrNoData
	}
	if r.GeneratedAt.IsZero() {
		r.GeneratedAt = time.Now()
	}
	if r.Title == "" {
		r.Title = "Forecast vs Actual"
	}

	pdf := gofpdf.New("L", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	headerColor := [3]int{40, 40, 40}
	bodyTextColor := [3]int{50, 50, 50}
	lineColor := [3]int{200, 200, 200}
	const pageWidth = 277.0

	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Arial", "I", 8)
		pdf.SetTextColor(128, 128, 128)
		pdf.CellFormat(0, 10, tr(fmt.Sprintf("Generated %s", r.GeneratedAt.Format("2006-01-02 15:04"))), "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "R", false, 0, "")
	})

	section := func(title string) {
		pdf.SetFont("Arial", "B", 12)
		pdf.SetTextColor(0, 0, 0)
		pdf.Cell(0, 8, tr(title))
		pdf.Ln(7)
		pdf.SetDrawColor(lineColor[0], lineColor[1], lineColor[2])
		pdf.Line(pdf.GetX(), pdf.GetY(), pdf.GetX()+pageWidth, pdf.GetY())
		pdf.Ln(4)
	}

	pdf.AddPage()
	pdf.SetFillColor(headerColor[0], headerColor[1], headerColor[2])
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 12, tr("  "+r.Title), "", 1, "L", true, 0, "")
	pdf.Ln(6)

	t := variance.Summarize(a)
	section("Summary")
	pdf.SetFont("Arial", "", 10)
	pdf.SetTextColor(bodyTextColor[0], bodyTextColor[1], bodyTextColor[2])
	summary := fmt.Sprintf("Forecast %s   Actual %s   Variance %s (%s%%)   Over forecast: %d   Under forecast: %d",
		model.FormatAmount(t.Forecast), model.FormatAmount(t.Actual), model.FormatAmount(t.Variance),
		model.FormatPercent(t.VariancePercent), t.Over, t.Under)
	pdf.MultiCell(pageWidth, 5, tr(summary), "", "L", false)
	pdf.Ln(6)

	section("Variance Analysis")
	colWidth := pageWidth / float64(len(a.Columns))
	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(240, 240, 240)
	for _, c := range a.Columns {
		pdf.CellFormat(colWidth, 7, tr(c), "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	varIdx := len(a.Columns) - 2
	for _, row := range a.Rows {
		for i, cell := range row.Cells() {
			if i >= len(a.Columns) {
				break
			}
			align := "L"
			if i >= varIdx {
				align = "R"
				switch row.Variance.Sign() {
				case -1:
					pdf.SetTextColor(192, 0, 0)
				case 1:
					pdf.SetTextColor(0, 128, 0)
				}
			}
			pdf.CellFormat(colWidth, 6, tr(cell), "1", 0, align, false, 0, "")
			pdf.SetTextColor(bodyTextColor[0], bodyTextColor[1], bodyTextColor[2])
		}
		pdf.Ln(-1)
	}
	pdf.Ln(8)

	if r.Insights != "" {
		section("AI Insights")
		pdf.SetFont("Arial", "", 10)
		pdf.SetTextColor(bodyTextColor[0], bodyTextColor[1], bodyTextColor[2])
		pdf.MultiCell(pageWidth, 5, tr(r.Insights), "", "L", false)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("writing PDF: %w", err)
	}
	return nil
}

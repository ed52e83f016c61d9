package commands

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/pterm/pterm"

	"github.com/cleared-dev/fpa/internal/model"
	"github.com/cleared-dev/fpa/internal/variance"
)

var (
	negative = color.New(color.FgRed).SprintFunc()
	positive = color.New(color.FgGreen).SprintFunc()
	muted    = color.New(color.Faint).SprintFunc()
	heading  = color.New(color.FgCyan, color.Bold).SprintFunc()
)

// renderAnalysis formats the augmented table, a totals line and optional
// insights for a terminal.
func renderAnalysis(a *model.Analysis, insightsText string) string {
	data := pterm.TableData{a.Columns}
	for _, row := range a.Rows {
		cells := row.Cells()
		n := len(cells)
		cells[n-2] = colorize(row, cells[n-2])
		if row.VariancePercent.Valid {
			cells[n-1] = colorize(row, cells[n-1])
		} else {
			cells[n-1] = muted(cells[n-1])
		}
		data = append(data, cells)
	}

	table, err := pterm.DefaultTable.
		WithHasHeader().
		WithBoxed().
		WithRightAlignment().
		WithHeaderStyle(pterm.NewStyle(pterm.FgLightCyan)).
		WithData(data).
		Srender()
	if err != nil {
		table = fmt.Sprintf("rendering table: %v", err)
	}

	var sb strings.Builder
	sb.WriteString(heading("Variance Analysis"))
	sb.WriteString("\n")
	sb.WriteString(table)
	sb.WriteString("\n\n")

	t := variance.Summarize(a)
	pct := model.FormatPercent(t.VariancePercent)
	if t.VariancePercent.Valid {
		pct += "%"
	}
	fmt.Fprintf(&sb, "Total forecast %s, actual %s, variance %s (%s). Over forecast: %d, under: %d.\n",
		model.FormatAmount(t.Forecast), model.FormatAmount(t.Actual),
		colorizeSign(t.Variance.Sign(), model.FormatAmount(t.Variance)), pct, t.Over, t.Under)

	if dups := variance.DuplicateCategories(a); len(dups) > 0 {
		fmt.Fprintf(&sb, "Departments listed more than once: %s\n", strings.Join(dups, ", "))
	}

	if insightsText != "" {
		sb.WriteString("\n")
		sb.WriteString(heading("AI-Generated Insights"))
		sb.WriteString("\n")
		sb.WriteString(insightsText)
		sb.WriteString("\n")
	}
	return sb.String()
}

func colorize(row model.Row, s string) string {
	return colorizeSign(row.Variance.Sign(), s)
}

func colorizeSign(sign int, s string) string {
	switch sign {
	case -1:
		return negative(s)
	case 1:
		return positive(s)
	}
	return s
}

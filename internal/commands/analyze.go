package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/cleared-dev/fpa/internal/chart"
	"github.com/cleared-dev/fpa/internal/config"
	"github.com/cleared-dev/fpa/internal/export"
	"github.com/cleared-dev/fpa/internal/ingest"
	"github.com/cleared-dev/fpa/internal/insights"
	"github.com/cleared-dev/fpa/internal/logging"
	"github.com/cleared-dev/fpa/internal/model"
	"github.com/cleared-dev/fpa/internal/variance"
)

// Output formats for stdout.
const (
	formatTable = "table"
	formatCSV   = "csv"
	formatJSON  = "json"
)

type analyzeOptions struct {
	sample       bool
	insights     bool
	format       string
	out          string
	zeroForecast string
}

func newAnalyzeCommand(root *rootOptions) *cobra.Command {
	opts := analyzeOptions{}

	cmd := &cobra.Command{
		Use:   "analyze [file.csv|-]",
		Short: "Compute Forecast vs Actual variance for a CSV",
		Long: "Reads a CSV with Department, Forecast and Actual columns (\"-\" reads stdin),\n" +
			"appends Variance and Variance % and prints the result.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.sample == (len(args) == 1) {
				return fmt.Errorf("pass either a CSV file or --sample")
			}
			cfg, err := root.loadConfig(cmd)
			if err != nil {
				return err
			}
			if opts.zeroForecast != "" {
				cfg.Analysis.ZeroForecast = opts.zeroForecast
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			src := ""
			if len(args) == 1 {
				src = args[0]
			}
			return runAnalyze(cmd.Context(), cfg, opts, src, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().BoolVar(&opts.sample, "sample", false, "analyze the built-in sample dataset")
	cmd.Flags().BoolVar(&opts.insights, "insights", false, "ask the language model for commentary")
	cmd.Flags().StringVar(&opts.format, "format", formatTable, "stdout format: table, csv or json")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "also write to a file (.csv, .json, .xlsx, .pdf, .svg, .png)")
	cmd.Flags().StringVar(&opts.zeroForecast, "zero-forecast", "", "zero forecast handling: marker or error")

	return cmd
}

func runAnalyze(ctx context.Context, cfg *config.Config, opts analyzeOptions, src string, stdin io.Reader, stdout, stderr io.Writer) error {
	switch opts.format {
	case formatTable, formatCSV, formatJSON:
	default:
		return fmt.Errorf("unknown format %q (want table, csv or json)", opts.format)
	}

	tbl, err := loadTable(src, opts.sample, stdin, cfg.Upload.MaxBytes)
	if err != nil {
		return err
	}

	calc := variance.NewCalculator(variance.ZeroForecastPolicy(cfg.Analysis.ZeroForecast))
	a, err := calc.Calculate(tbl)
	if err != nil {
		return err
	}

	var text string
	if opts.insights {
		text, err = generateInsights(ctx, cfg, a, opts.format == formatTable, stderr)
		if err != nil {
			return err
		}
	}

	switch opts.format {
	case formatCSV:
		if err := export.WriteCSV(stdout, a); err != nil {
			return err
		}
		if text != "" {
			fmt.Fprintln(stderr, text)
		}
	case formatJSON:
		if err := export.WriteJSON(stdout, a, text); err != nil {
			return err
		}
	default:
		fmt.Fprint(stdout, renderAnalysis(a, text))
	}

	if opts.out != "" {
		if err := writeOutput(opts.out, a, text, cfg.Server.Title); err != nil {
			return err
		}
		fmt.Fprintf(stderr, "Wrote %s\n", opts.out)
	}
	return nil
}

func loadTable(src string, sample bool, stdin io.Reader, limit int64) (model.Table, error) {
	if sample {
		return ingest.Sample(), nil
	}
	if src == "-" {
		return ingest.Load(stdin, limit)
	}

	info, err := os.Stat(src)
	if err != nil {
		return model.Table{}, fmt.Errorf("opening %s: %w", src, err)
	}
	if err := ingest.CheckSize(info.Size(), limit); err != nil {
		return model.Table{}, fmt.Errorf("%s: %w", src, err)
	}

	f, err := os.Open(src)
	if err != nil {
		return model.Table{}, fmt.Errorf("opening %s: %w", src, err)
	}
	defer f.Close()

	tbl, err := ingest.Load(f, limit)
	if err != nil {
		return model.Table{}, fmt.Errorf("%s: %w", src, err)
	}
	return tbl, nil
}

func generateInsights(ctx context.Context, cfg *config.Config, a *model.Analysis, spin bool, stderr io.Writer) (string, error) {
	key, _, err := resolveAPIKey(cfg)
	if err != nil {
		return "", err
	}
	analyst := insights.NewAnalyst(insights.NewClient(cfg.AI, key), logging.Discard(), nil)

	var spinner *pterm.SpinnerPrinter
	if spin {
		spinner, _ = pterm.DefaultSpinner.WithWriter(stderr).Start("Analyzing with AI...")
	}
	text, err := analyst.Generate(ctx, a)
	if spinner != nil {
		if err != nil {
			spinner.Fail("AI analysis failed")
		} else {
			_ = spinner.Stop()
		}
	}
	if err != nil {
		return "", fmt.Errorf("AI analysis failed: %w", err)
	}
	return text, nil
}

func writeOutput(path string, a *model.Analysis, text, title string) error {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}

	switch ext {
	case string(chart.SVG), string(chart.PNG):
		err = chart.RenderBars(f, a, chart.Format(ext))
	default:
		var format export.Format
		format, err = export.FormatFromPath(path)
		if err != nil {
			break
		}
		switch format {
		case export.FormatCSV:
			err = export.WriteCSV(f, a)
		case export.FormatJSON:
			err = export.WriteJSON(f, a, text)
		case export.FormatXLSX:
			err = export.WriteXLSX(f, a)
		case export.FormatPDF:
			err = export.WritePDF(f, export.Report{Title: title, Analysis: a, Insights: text})
		}
	}

	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

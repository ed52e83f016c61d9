package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/fpa/internal/ingest"
)

func newSampleCommand() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Print the sample Forecast vs Actual CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" {
				_, err := io.WriteString(cmd.OutOrStdout(), ingest.SampleCSV)
				return err
			}
			if err := os.WriteFile(out, []byte(ingest.SampleCSV), 0o644); err != nil {
				return fmt.Errorf("writing sample: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "write to a file instead of stdout")

	return cmd
}

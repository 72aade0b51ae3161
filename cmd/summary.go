package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"tgpipe/internal/config"
	"tgpipe/internal/report"
	"tgpipe/internal/summary"
	"tgpipe/internal/table"
)

// summaryExt is the format of the three summary files.
const summaryExt = ".xlsx"

var summaryFlags config.Summary

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Count messages and comments per group and month",
	Long: `Build three group by month tables from the combined dataset: message
contents, comments and their total. Months without activity are filled with 0 so
every month between the first and last observation has a column.

Writes <base>_contents.xlsx, <base>_comments.xlsx and <base>_total.xlsx. Nothing
is written if any of the three cannot be computed.

Examples:
  tgpipe summary -d exports/
  tgpipe summary --input unified.parquet --output-base resume`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := cfg.Merge(config.Config{Summary: summaryFlags}); err != nil {
			HandleError(err, "Invalid flags")
		}
		err := withStore(func(st Store) error {
			return runSummary(cmd.Context(), cfg, st, cmd.OutOrStdout())
		})
		if err != nil {
			HandleError(err, "Failed to build summary")
		}
	},
}

// SummaryPaths returns the contents, comments and total output paths.
func SummaryPaths(c *config.Config) [3]string {
	base := c.Summary.OutputBase
	return [3]string{
		c.Path(base + "_contents" + summaryExt),
		c.Path(base + "_comments" + summaryExt),
		c.Path(base + "_total" + summaryExt),
	}
}

func runSummary(ctx context.Context, c *config.Config, st Store, out io.Writer) error {
	if err := c.Columns.Validate(); err != nil {
		return err
	}
	if err := c.Summary.Validate(); err != nil {
		return err
	}

	input := c.Path(c.Summary.Input)
	fmt.Fprintf(out, "📊 Summarising %s\n", input)
	start := time.Now()

	tables, err := buildSummary(ctx, c, st, input)
	if err != nil {
		if logger != nil {
			logger.Error("Summary aborted, no files written", "error", err, "input", input)
		}
		return err
	}
	fmt.Fprintf(out, "   ✓ %d groups over %d months (%v)\n", tables.Total.Len(), len(tables.Months), time.Since(start))

	paths := SummaryPaths(c)
	for i, t := range []*table.Table{tables.Contents, tables.Comments, tables.Total} {
		if err := st.WriteTable(ctx, t, paths[i]); err != nil {
			return err
		}
		fmt.Fprintf(out, "   ✓ Wrote %s\n", paths[i])
	}
	fmt.Fprintln(out)

	report.Table(out, tables.Total, 20)
	return nil
}

func buildSummary(ctx context.Context, c *config.Config, st Store, input string) (*summary.Tables, error) {
	obs, err := st.GroupMonthCounts(ctx, input, c.Columns.Group, c.Columns.Date, c.Columns.Comments)
	if err != nil {
		return nil, err
	}
	return summary.Build(c.Columns.Group, obs)
}

func init() {
	summaryCmd.Flags().StringVarP(&summaryFlags.Input, "input", "i", "", "Combined dataset (default unified_data_telegram.parquet)")
	summaryCmd.Flags().StringVarP(&summaryFlags.OutputBase, "output-base", "o", "", "Base name of the output files (default resume)")
	rootCmd.AddCommand(summaryCmd)
}

package cmd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"tgpipe/internal/combine"
	"tgpipe/internal/config"
	"tgpipe/internal/progress"
	"tgpipe/internal/report"
	"tgpipe/internal/table"
)

var combineFlags config.Combine

var combineCmd = &cobra.Command{
	Use:   "combine",
	Short: "Combine per-channel exports into one deduplicated dataset",
	Long: `Read every file with the configured extension in the data directory,
stack them, drop duplicated messages and write a single dataset sorted by date,
newest first.

Empty or all-null files are skipped. Group names are prefixed with @, comment
counts are recomputed from the comments list and the media column becomes a flag.

Examples:
  tgpipe combine -d exports/
  tgpipe combine -d exports/ --output unified.parquet --key Group --key "Message ID"`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := cfg.Merge(config.Config{Combine: combineFlags}); err != nil {
			HandleError(err, "Invalid flags")
		}
		err := withStore(func(st Store) error {
			return runCombine(cmd.Context(), cfg, st, cmd.OutOrStdout())
		})
		if err != nil {
			HandleError(err, "Failed to combine datasets")
		}
	},
}

func runCombine(ctx context.Context, c *config.Config, st Store, out io.Writer) error {
	if err := c.Columns.Validate(); err != nil {
		return err
	}
	if err := c.Combine.Validate(); err != nil {
		return err
	}

	fmt.Fprintf(out, "📂 Reading %s files from %s\n", c.Combine.Extension, c.DataDir)
	start := time.Now()

	var counter *progress.Counter
	files, err := st.ReadDir(ctx, c.DataDir, c.Combine.Extension, func(done, total int) {
		if counter == nil {
			counter = progress.New(out, "Reading files", total)
		}
		counter.Set(done)
	})
	counter.Done()
	if err != nil {
		return fmt.Errorf("failed to read inputs: %w", err)
	}

	output := filepath.Base(c.Combine.Output)
	inputs := make([]*table.Table, 0, len(files))
	for _, f := range files {
		// A previous run's output may sit next to the inputs.
		if f.Name == output {
			continue
		}
		inputs = append(inputs, f.Table)
	}
	fmt.Fprintf(out, "   ✓ Read %d files (%v)\n", len(inputs), time.Since(start))

	res, err := combine.Combine(inputs, c.Columns, c.Combine.DuplicateKeys, logger)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "   ✓ Rows before removing duplicates: %d\n", res.RowsBefore)
	fmt.Fprintf(out, "   ✓ Duplicates removed: %d\n", res.Duplicates)
	fmt.Fprintf(out, "   ✓ Rows after removing duplicates: %d\n", res.Table.Len())

	path := c.Path(c.Combine.Output)
	start = time.Now()
	if err := st.WriteTable(ctx, res.Table, path); err != nil {
		return err
	}
	fmt.Fprintf(out, "   ✓ Wrote %s (%v)\n\n", path, time.Since(start))

	report.KeyValues(out, "Combined dataset", [][2]string{
		{"Files read", strconv.Itoa(res.Inputs)},
		{"Files skipped", strconv.Itoa(res.Skipped)},
		{"Rows before dedup", strconv.Itoa(res.RowsBefore)},
		{"Rows", strconv.Itoa(res.Table.Len())},
		{"Comments", strconv.FormatInt(res.Comments, 10)},
		{"Rows + comments", strconv.FormatInt(res.Total(), 10)},
	})

	if logger != nil {
		logger.Info("Combined datasets", "files", res.Inputs, "skipped", res.Skipped,
			"rows", res.Table.Len(), "duplicates", res.Duplicates, "comments", res.Comments, "output", path)
	}
	return nil
}

func init() {
	combineCmd.Flags().StringVar(&combineFlags.Extension, "ext", "", "Extension of the input files (default .parquet)")
	combineCmd.Flags().StringVarP(&combineFlags.Output, "output", "o", "", "Output file (default unified_data_telegram.parquet)")
	combineCmd.Flags().StringSliceVar(&combineFlags.DuplicateKeys, "key", nil, "Columns identifying a duplicate (default Group, Message ID)")
	rootCmd.AddCommand(combineCmd)
}

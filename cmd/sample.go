package cmd

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"regexp"
	"time"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"tgpipe/internal/combine"
	"tgpipe/internal/config"
	"tgpipe/internal/report"
	"tgpipe/internal/sampler"
	"tgpipe/internal/table"
)

var urlPattern = regexp.MustCompile(`http\S+|www\S+`)

var sampleFlags config.Sample

var sampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Draw a category-proportional sample for manual review",
	Long: `Draw a sample of about --size rows from the combined dataset, giving every
group a share proportional to its size and at least one row.

Messages not longer than --min-length characters are dropped first and URLs are
removed from the content. Within a group, rows with content are preferred.

Examples:
  tgpipe sample -d exports/
  tgpipe sample --size 500 --seed 42 --output review.xlsx`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := cfg.Merge(config.Config{Sample: sampleFlags}); err != nil {
			HandleError(err, "Invalid flags")
		}
		err := withStore(func(st Store) error {
			return runSample(cmd.Context(), cfg, st, cmd.OutOrStdout())
		})
		if err != nil {
			HandleError(err, "Failed to sample dataset")
		}
	},
}

func runSample(ctx context.Context, c *config.Config, st Store, out io.Writer) error {
	if err := c.Columns.Validate(); err != nil {
		return err
	}
	if err := c.Sample.Validate(); err != nil {
		return err
	}

	input := c.Path(c.Sample.Input)
	fmt.Fprintf(out, "🎲 Sampling %s\n", input)
	start := time.Now()

	t, err := st.ReadTable(ctx, input)
	if err != nil {
		return err
	}
	prepared, err := prepareSample(t, c.Columns, c.Sample.MinLength)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "   ✓ %d of %d rows longer than %d characters (%v)\n", prepared.Len(), t.Len(), c.Sample.MinLength, time.Since(start))

	seed := c.Sample.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	if logger != nil {
		logger.Info("Sampling", "input", input, "rows", prepared.Len(), "size", c.Sample.Size, "seed", seed)
	}

	sample, err := sampler.Sample(prepared, c.Columns.Content, c.Columns.Group, c.Sample.Size, rand.New(rand.NewPCG(seed, seed)))
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "   ✓ Drew %d rows (seed %d)\n", sample.Len(), seed)

	path := c.Path(c.Sample.Output)
	if err := st.WriteTable(ctx, sample, path); err != nil {
		return err
	}
	fmt.Fprintf(out, "   ✓ Wrote %s\n\n", path)

	report.Table(out, groupCounts(sample, c.Columns.Group), 0)
	return nil
}

// prepareSample keeps rows whose content is longer than minLength characters,
// strips URLs from the content and compacts the comments list.
func prepareSample(t *table.Table, cols config.Columns, minLength int) (*table.Table, error) {
	if err := t.Require(cols.Content); err != nil {
		return nil, err
	}

	out := table.New(t.Columns...)
	for _, r := range t.Rows {
		text, ok := r[cols.Content].(string)
		if !ok || utf8.RuneCountInString(text) <= minLength {
			continue
		}
		rec := r.Clone()
		rec[cols.Content] = urlPattern.ReplaceAllString(text, "")
		out.Append(rec)
	}

	return combine.NormalizeCommentsList(out, cols.CommentsList)
}

// groupCounts tallies rows per group in first-seen order.
func groupCounts(t *table.Table, groupCol string) *table.Table {
	out := table.New(groupCol, "Rows")
	index := make(map[string]int)
	for _, r := range t.Rows {
		key := table.String(r[groupCol])
		i, ok := index[key]
		if !ok {
			i = out.Len()
			index[key] = i
			out.Append(table.Record{groupCol: r[groupCol], "Rows": int64(0)})
		}
		out.Rows[i]["Rows"] = out.Rows[i]["Rows"].(int64) + 1
	}
	return out
}

func init() {
	sampleCmd.Flags().StringVarP(&sampleFlags.Input, "input", "i", "", "Combined dataset (default unified_data_telegram.parquet)")
	sampleCmd.Flags().StringVarP(&sampleFlags.Output, "output", "o", "", "Output file (default sampled_data.xlsx)")
	sampleCmd.Flags().IntVarP(&sampleFlags.Size, "size", "n", 0, "Target sample size (default 10000)")
	sampleCmd.Flags().IntVar(&sampleFlags.MinLength, "min-length", 0, "Drop messages not longer than this (default 20)")
	sampleCmd.Flags().Uint64Var(&sampleFlags.Seed, "seed", 0, "Random seed (default time based)")
	rootCmd.AddCommand(sampleCmd)
}

package cmd

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"tgpipe/internal/combine"
	"tgpipe/internal/config"
	"tgpipe/internal/keywords"
	"tgpipe/internal/report"
)

var keywordsFlags config.Keywords

var keywordsCmd = &cobra.Command{
	Use:   "keywords",
	Short: "Keep the messages that mention any of the keywords",
	Long: `Tag every message with one 0/1 column per keyword and a Keyword_Count
column, keep the messages mentioning at least one keyword and write them in
files of at most --max-rows rows.

A single file is named <base>_unique<ext>, several are <base>_part_1<ext> and on.

Examples:
  tgpipe keywords -k vaccine -k "5G"
  tgpipe keywords -k election --max-rows 50000 --ext .parquet`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := cfg.Merge(config.Config{Keywords: keywordsFlags}); err != nil {
			HandleError(err, "Invalid flags")
		}
		err := withStore(func(st Store) error {
			return runKeywords(cmd.Context(), cfg, st, cmd.OutOrStdout())
		})
		if err != nil {
			HandleError(err, "Failed to filter keywords")
		}
	},
}

func runKeywords(ctx context.Context, c *config.Config, st Store, out io.Writer) error {
	if err := c.Columns.Validate(); err != nil {
		return err
	}
	if err := c.Keywords.Validate(); err != nil {
		return err
	}

	input := c.Path(c.Keywords.Input)
	fmt.Fprintf(out, "🔎 Filtering %s on %d keywords\n", input, len(c.Keywords.Keywords))
	start := time.Now()

	res, err := filterKeywords(ctx, c, st, input)
	if err != nil {
		if logger != nil {
			logger.Error("Keyword filtering aborted", "error", err, "input", input)
		}
		return err
	}
	fmt.Fprintf(out, "   ✓ %d of %d rows mention a keyword (%v)\n", res.Table.Len(), res.Scanned, time.Since(start))

	paths, err := st.WriteSplit(ctx, res.Table, c.DataDir, c.Keywords.OutputBase, c.Keywords.Extension, c.Keywords.MaxRowsPerFile)
	if err != nil {
		return err
	}
	for _, p := range paths {
		fmt.Fprintf(out, "   ✓ Wrote %s\n", p)
	}
	fmt.Fprintln(out)

	pairs := make([][2]string, 0, len(res.Keywords))
	for _, kw := range res.Keywords {
		pairs = append(pairs, [2]string{kw, strconv.Itoa(res.Hits[kw])})
	}
	report.KeyValues(out, "Rows per keyword", pairs)
	return nil
}

func filterKeywords(ctx context.Context, c *config.Config, st Store, input string) (*keywords.Result, error) {
	t, err := st.ReadTable(ctx, input)
	if err != nil {
		return nil, err
	}
	t, err = combine.NormalizeCommentsList(t, c.Columns.CommentsList)
	if err != nil {
		return nil, err
	}
	return keywords.Filter(t, c.Columns.Content, c.Keywords.Keywords)
}

func init() {
	keywordsCmd.Flags().StringSliceVarP(&keywordsFlags.Keywords, "keyword", "k", nil, "Keyword to look for (repeatable)")
	keywordsCmd.Flags().StringVarP(&keywordsFlags.Input, "input", "i", "", "Combined dataset (default unified_data_telegram.parquet)")
	keywordsCmd.Flags().StringVarP(&keywordsFlags.OutputBase, "output-base", "o", "", "Base name of the output files (default filtered_keywords)")
	keywordsCmd.Flags().StringVar(&keywordsFlags.Extension, "ext", "", "Output format extension (default .xlsx)")
	keywordsCmd.Flags().IntVar(&keywordsFlags.MaxRowsPerFile, "max-rows", 0, "Maximum rows per output file (default 1000000)")
	rootCmd.AddCommand(keywordsCmd)
}

package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"tgpipe/internal/config"
	"tgpipe/internal/links"
	"tgpipe/internal/report"
)

// barWidth is the width of the top links chart.
const barWidth = 40

var linksFlags config.Links

var linksCmd = &cobra.Command{
	Use:   "links",
	Short: "Count the t.me links shared in the messages",
	Long: `Extract every t.me link from the message contents, cut it down to the
channel it points at and count how often each channel is referenced.

The counts are written most frequent first and the top channels are charted.

Examples:
  tgpipe links -d exports/
  tgpipe links --top 30 --output links.xlsx`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := cfg.Merge(config.Config{Links: linksFlags}); err != nil {
			HandleError(err, "Invalid flags")
		}
		err := withStore(func(st Store) error {
			return runLinks(cmd.Context(), cfg, st, cmd.OutOrStdout())
		})
		if err != nil {
			HandleError(err, "Failed to count links")
		}
	},
}

func runLinks(ctx context.Context, c *config.Config, st Store, out io.Writer) error {
	if err := c.Columns.Validate(); err != nil {
		return err
	}
	if err := c.Links.Validate(); err != nil {
		return err
	}

	input := c.Path(c.Links.Input)
	fmt.Fprintf(out, "🔗 Extracting Telegram links from %s\n", input)
	start := time.Now()

	t, err := st.ReadTable(ctx, input)
	if err != nil {
		return err
	}
	counts, err := links.Tally(t, c.Columns.Content)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "   ✓ %d distinct links in %d rows (%v)\n", len(counts), t.Len(), time.Since(start))

	path := c.Path(c.Links.Output)
	if err := st.WriteTable(ctx, links.ToTable(counts), path); err != nil {
		return err
	}
	fmt.Fprintf(out, "   ✓ Wrote %s\n\n", path)

	title := "Telegram links"
	if c.Links.Top > 0 {
		title = fmt.Sprintf("Top %d Telegram links", c.Links.Top)
	}
	fmt.Fprintln(out, report.Title(title))
	report.TopLinks(out, counts, c.Links.Top, barWidth)

	if logger != nil {
		logger.Info("Counted links", "input", input, "distinct", len(counts), "output", path)
	}
	return nil
}

func init() {
	linksCmd.Flags().StringVarP(&linksFlags.Input, "input", "i", "", "Combined dataset (default unified_data_telegram.parquet)")
	linksCmd.Flags().StringVarP(&linksFlags.Output, "output", "o", "", "Output file (default telegram_links.xlsx)")
	linksCmd.Flags().IntVar(&linksFlags.Top, "top", 0, "Number of links to chart (default 15)")
	rootCmd.AddCommand(linksCmd)
}

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"tgpipe/internal/config"
	"tgpipe/internal/scrape"
)

var scrapeFlags config.Scrape

var scrapeCmd = &cobra.Command{
	Use:   "scrape [channel]",
	Short: "Scrape a Telegram channel into a spreadsheet",
	Long: `Walk a channel's history from the newest message back and write one row
per message between --since and --until (both exclusive), with the channel's
replies to it joined into the Comments column.

Rows go to a Google spreadsheet (--credentials, optionally --spreadsheet) or,
with --output, to a local file. The sheet is cleared before the header is written.

Telegram credentials come from the config file or the TG_APP_ID, TG_APP_HASH,
TG_PHONE and TG_PASSWORD environment variables. The login code is read from stdin
on the first run.

Example:
  tgpipe scrape @durov --since 2021-01-01 --until 2022-01-01 --output durov.xlsx`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 1 {
			scrapeFlags.Channel = args[0]
		}
		if err := cfg.Merge(config.Config{Scrape: scrapeFlags}); err != nil {
			HandleError(err, "Invalid flags")
		}
		if err := applyTelegramEnv(&cfg.Scrape.Telegram); err != nil {
			HandleError(err, "Invalid environment")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		if err := runScrape(ctx, cfg, cmd.OutOrStdout()); err != nil {
			HandleError(err, "Failed to scrape channel")
		}
	},
}

func runScrape(ctx context.Context, c *config.Config, out io.Writer) error {
	if err := c.Scrape.Validate(); err != nil {
		return err
	}
	if OpenFeed == nil {
		return fmt.Errorf("telegram: %w", errNotWired)
	}
	since, until, err := c.Scrape.Window()
	if err != nil {
		return err
	}

	var (
		sheet scrape.Sheet
		local *scrape.TableSheet
	)
	if c.Scrape.Output != "" {
		local = scrape.NewTableSheet()
		sheet = local
	} else {
		if OpenSheet == nil {
			return fmt.Errorf("sheets: %w", errNotWired)
		}
		remote, err := OpenSheet(ctx, c.Scrape, logger)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "📄 Writing to %s\n", remote.URL())
		sheet = remote
	}

	job := scrape.Job{
		Channel: c.Scrape.Channel,
		Since:   since,
		Until:   until,
		Search:  c.Scrape.Search,
	}
	fmt.Fprintf(out, "📥 Scraping %s from %s to %s\n\n", job.Channel, c.Scrape.Since, c.Scrape.Until)

	var res *scrape.Result
	tgLog := filepath.Join(c.DataDir, "telegram.log")
	err = OpenFeed(ctx, c.Scrape.Telegram, tgLog, func(ctx context.Context, feed scrape.Feed) error {
		s := scrape.New(feed, sheet,
			scrape.WithLogger(logger),
			scrape.WithDelay(c.Scrape.Delay),
			scrape.WithOutput(out),
		)
		var err error
		res, err = s.Run(ctx, job)
		return err
	})

	// Keep whatever was scraped before a failure.
	if local != nil && local.Len() > 0 {
		if werr := saveLocal(ctx, c, local); werr != nil {
			if err == nil {
				return werr
			}
			if logger != nil {
				logger.Error("Failed to save partial scrape", "error", werr)
			}
		} else {
			fmt.Fprintf(out, "   ✓ Wrote %s\n", c.Path(c.Scrape.Output))
		}
	}
	if err != nil {
		return err
	}

	if res != nil && res.ReplyFailures > 0 {
		fmt.Fprintf(out, "   ⚠ Replies unavailable for %d messages\n", res.ReplyFailures)
	}
	return nil
}

func saveLocal(ctx context.Context, c *config.Config, sheet *scrape.TableSheet) error {
	t, err := sheet.Table()
	if err != nil {
		return err
	}
	// The run context may already be cancelled.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Minute)
	defer cancel()

	return withStore(func(st Store) error {
		return st.WriteTable(ctx, t, c.Path(c.Scrape.Output))
	})
}

// applyTelegramEnv fills unset credentials from the environment.
func applyTelegramEnv(t *config.Telegram) error {
	if v := os.Getenv("TG_APP_ID"); v != "" && t.AppID == 0 {
		id, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid TG_APP_ID %q: %w", v, err)
		}
		t.AppID = id
	}
	if v := os.Getenv("TG_APP_HASH"); v != "" && t.AppHash == "" {
		t.AppHash = v
	}
	if v := os.Getenv("TG_PHONE"); v != "" && t.Phone == "" {
		t.Phone = v
	}
	if v := os.Getenv("TG_PASSWORD"); v != "" && t.Password == "" {
		t.Password = v
	}
	return nil
}

func init() {
	scrapeCmd.Flags().StringVar(&scrapeFlags.Since, "since", "", "Keep messages after this date, YYYY-MM-DD (default 2019-01-01)")
	scrapeCmd.Flags().StringVar(&scrapeFlags.Until, "until", "", "Keep messages before this date, YYYY-MM-DD (default 2023-01-01)")
	scrapeCmd.Flags().StringVar(&scrapeFlags.Search, "search", "", "Only messages matching this query")
	scrapeCmd.Flags().DurationVar(&scrapeFlags.Delay, "delay", 0, "Minimum time between messages (default 1s)")
	scrapeCmd.Flags().StringVarP(&scrapeFlags.Output, "output", "o", "", "Write to a local file instead of Google Sheets")
	scrapeCmd.Flags().StringVar(&scrapeFlags.CredentialsFile, "credentials", "", "Google service account credentials file")
	scrapeCmd.Flags().StringVar(&scrapeFlags.SpreadsheetID, "spreadsheet", "", "Spreadsheet id (default: create a new one)")
	scrapeCmd.Flags().StringVar(&scrapeFlags.SpreadsheetTitle, "title", "", "Title of a new spreadsheet")
	rootCmd.AddCommand(scrapeCmd)
}

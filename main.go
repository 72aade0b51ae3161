package main

import (
	"context"
	"log/slog"
	"os"

	"tgpipe/cmd"
	"tgpipe/internal/config"
	"tgpipe/internal/scrape"
	"tgpipe/internal/sheets"
	"tgpipe/internal/store"
	"tgpipe/internal/telegram"
)

func main() {
	cmd.OpenStore = func(logger *slog.Logger) (cmd.Store, error) {
		st, err := store.Open(logger)
		if err != nil {
			return nil, err
		}
		return st, nil
	}

	cmd.OpenFeed = func(ctx context.Context, cfg config.Telegram, logPath string, fn func(ctx context.Context, feed scrape.Feed) error) error {
		logger := telegram.NewLogger(logPath, cfg.LogLevel)
		defer func() { _ = logger.Sync() }()
		return telegram.Run(ctx, cfg, logger, os.Stdin, os.Stdout, fn)
	}

	cmd.OpenSheet = func(ctx context.Context, cfg config.Scrape, logger *slog.Logger) (cmd.RemoteSheet, error) {
		sheet, err := sheets.OpenWithCredentials(ctx, cfg.CredentialsFile, cfg.SpreadsheetID, cfg.SpreadsheetTitle, logger)
		if err != nil {
			return nil, err
		}
		return sheet, nil
	}

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

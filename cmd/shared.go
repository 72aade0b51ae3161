package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"tgpipe/internal/config"
	"tgpipe/internal/scrape"
	"tgpipe/internal/store"
	"tgpipe/internal/summary"
	"tgpipe/internal/table"
)

// Store reads and writes the tabular files of a step.
type Store interface {
	ReadTable(ctx context.Context, path string) (*table.Table, error)
	ReadDir(ctx context.Context, dir, ext string, onFile func(done, total int)) ([]store.File, error)
	WriteTable(ctx context.Context, t *table.Table, path string) error
	WriteSplit(ctx context.Context, t *table.Table, dir, base, ext string, maxRows int) ([]string, error)
	GroupMonthCounts(ctx context.Context, path, groupCol, dateCol, commentsCol string) ([]summary.Observation, error)
	Describe(ctx context.Context, path string) ([]store.ColumnInfo, error)
	Query(ctx context.Context, path, sqlQuery string) (*table.Table, error)
	Close() error
}

// RemoteSheet is a spreadsheet the scrape step writes into directly.
type RemoteSheet interface {
	scrape.Sheet
	URL() string
}

// These variables will be set by main package
var (
	OpenStore func(logger *slog.Logger) (Store, error)
	// OpenFeed connects to Telegram and calls fn while the connection is up.
	// Client logs go to logPath.
	OpenFeed  func(ctx context.Context, cfg config.Telegram, logPath string, fn func(ctx context.Context, feed scrape.Feed) error) error
	OpenSheet func(ctx context.Context, cfg config.Scrape, logger *slog.Logger) (RemoteSheet, error)
)

var errNotWired = errors.New("not configured")

// HandleError prints error and exits
func HandleError(err error, message string) {
	if logger != nil {
		logger.Error(message, "error", err)
	}
	fmt.Fprintf(os.Stderr, "Error: %s: %v\n", message, err)
	os.Exit(1)
}

// withStore opens a store for the duration of fn.
func withStore(fn func(st Store) error) error {
	if OpenStore == nil {
		return fmt.Errorf("store: %w", errNotWired)
	}
	st, err := OpenStore(logger)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()
	return fn(st)
}

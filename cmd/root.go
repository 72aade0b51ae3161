package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"tgpipe/internal/config"
)

var (
	dataDir    string
	configPath string
	logPath    string

	cfg    *config.Config
	logger *slog.Logger

	rootCmd = &cobra.Command{
		Use:   "tgpipe",
		Short: "tgpipe - Scrape Telegram channels and prepare the datasets",
		Long: `tgpipe scrapes Telegram channels into spreadsheets and turns the
per-channel exports into analysis datasets.

Each subcommand is one independent step. Settings come from built-in defaults,
an optional YAML file (--config) and the command's flags, in that order.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			cfg = c

			path := logPath
			if path == "" {
				path = filepath.Join(cfg.DataDir, "tgpipe.log")
			}
			logger, err = SetupLogger(path)
			if err != nil {
				return err
			}
			logger.Info("Command started", "command", cmd.Name(), "data_dir", cfg.DataDir)
			return nil
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&dataDir, "data-dir", "d", ".", "Directory holding inputs and outputs")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Optional YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&logPath, "log-file", "", "Log file (default <data-dir>/tgpipe.log)")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig reads the YAML file over the defaults. An explicit --data-dir
// wins over the file.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	c, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("data-dir") || c.DataDir == "" {
		c.DataDir = dataDir
	}
	return c, nil
}

// SetupLogger creates the JSON logger writing to path.
func SetupLogger(path string) (*slog.Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	logFile, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	handler := slog.NewJSONHandler(logFile, &slog.HandlerOptions{
		Level:     slog.LevelInfo,
		AddSource: true,
	})
	return slog.New(handler), nil
}

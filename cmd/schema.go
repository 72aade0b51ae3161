package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"tgpipe/internal/store"
)

// SchemaOutput represents the schema information for a file
type SchemaOutput struct {
	File        string             `json:"file"`
	ColumnCount int                `json:"column_count"`
	Columns     []store.ColumnInfo `json:"columns"`
}

var schemaCmd = &cobra.Command{
	Use:   "schema [file...]",
	Short: "Describe the columns of tabular files",
	Long: `Describe the columns DuckDB infers for parquet, csv, json or xlsx files.
Relative paths are resolved against the data directory.

Examples:
  tgpipe schema unified_data_telegram.parquet
  tgpipe schema -d exports/ channel_a.parquet channel_b.parquet`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		err := withStore(func(st Store) error {
			return runSchema(cmd.Context(), st, args, cmd.OutOrStdout())
		})
		if err != nil {
			HandleError(err, "Failed to describe files")
		}
	},
}

func runSchema(ctx context.Context, st Store, files []string, out io.Writer) error {
	schemas := make([]SchemaOutput, 0, len(files))
	for _, f := range files {
		path := cfg.Path(f)
		cols, err := st.Describe(ctx, path)
		if err != nil {
			return fmt.Errorf("failed to get schema for %s: %w", path, err)
		}
		schemas = append(schemas, SchemaOutput{
			File:        path,
			ColumnCount: len(cols),
			Columns:     cols,
		})
	}

	output, err := json.MarshalIndent(schemas, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	fmt.Fprintln(out, string(output))
	return nil
}

func init() {
	rootCmd.AddCommand(schemaCmd)
}

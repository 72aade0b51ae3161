package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"tgpipe/internal/report"
	"tgpipe/internal/table"
)

var (
	queryString string
	queryFormat string
)

var queryCmd = &cobra.Command{
	Use:   "query [file]",
	Short: "Query a tabular file (DuckDB SQL)",
	Long: `Execute the requested QUERY against a parquet, csv, json or xlsx file.
The file is available as the view "data".

Examples:
  tgpipe query unified_data_telegram.parquet --sql "SELECT * FROM data LIMIT 5"
  tgpipe query unified_data_telegram.parquet --sql "SELECT \"Group\", COUNT(*) FROM data GROUP BY 1" --format table`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if queryString == "" {
			HandleError(fmt.Errorf("query is required"), "Missing query parameter")
		}
		err := withStore(func(st Store) error {
			return runQuery(cmd.Context(), st, cfg.Path(args[0]), queryString, queryFormat, cmd.OutOrStdout())
		})
		if err != nil {
			HandleError(err, "Failed to execute query")
		}
	},
}

func runQuery(ctx context.Context, st Store, path, sqlQuery, format string, out io.Writer) error {
	t, err := st.Query(ctx, path, sqlQuery)
	if err != nil {
		return err
	}
	return render(out, t, format)
}

func render(out io.Writer, t *table.Table, format string) error {
	switch format {
	case "table":
		report.Table(out, t, 0)
		return nil
	case "json", "":
		rows := t.Rows
		if rows == nil {
			rows = []table.Record{}
		}
		output, err := json.MarshalIndent(rows, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode JSON: %w", err)
		}
		fmt.Fprintln(out, string(output))
		return nil
	default:
		return fmt.Errorf("unknown format %q, use json or table", format)
	}
}

func init() {
	queryCmd.Flags().StringVarP(&queryString, "sql", "q", "", "SQL query to execute (required)")
	queryCmd.Flags().StringVar(&queryFormat, "format", "json", "Output format: json or table")
	_ = queryCmd.MarkFlagRequired("sql")
	rootCmd.AddCommand(queryCmd)
}

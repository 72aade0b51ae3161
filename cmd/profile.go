package cmd

import (
	"github.com/spf13/cobra"
)

var profileFormat string

var profileCmd = &cobra.Command{
	Use:   "profile [file]",
	Short: "Summarize the contents of a tabular file",
	Long: `Compute DuckDB's SUMMARIZE aggregates over every column of a file:
min, max, approx_unique, avg, std, q25, q50, q75, count and the percentage of
NULL values. Quantiles are approximate.

Examples:
  tgpipe profile unified_data_telegram.parquet
  tgpipe profile sampled_data.xlsx --format table`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		err := withStore(func(st Store) error {
			return runQuery(cmd.Context(), st, cfg.Path(args[0]), "SUMMARIZE SELECT * FROM data", profileFormat, cmd.OutOrStdout())
		})
		if err != nil {
			HandleError(err, "Failed to summarize file")
		}
	},
}

func init() {
	profileCmd.Flags().StringVar(&profileFormat, "format", "json", "Output format: json or table")
	rootCmd.AddCommand(profileCmd)
}

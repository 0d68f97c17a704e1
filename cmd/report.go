package cmd

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/cyb70289/cmn-analyzer/tracelog"
)

var reportFlags struct {
	input      string
	outDir     string
	maxRecords int
	sample     string
	sqlite     string
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Analyze trace log.",
	Long: "`report` decodes a trace log into one CSV file per event. " +
		"With --sqlite it additionally writes all records to a SQLite " +
		"database.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if !cmd.Flags().Changed("input") {
			reportFlags.input = envStr("CMN_TRACE_FILE", reportFlags.input)
		}

		sample, err := tracelog.ParseSample(reportFlags.sample)
		if err != nil {
			return err
		}
		opts := tracelog.ExportOptions{
			OutDir:     reportFlags.outDir,
			MaxRecords: reportFlags.maxRecords,
			Sample:     sample,
			Verbose:    verbose,
		}
		if err := tracelog.ExportCSV(reportFlags.input, opts); err != nil {
			return err
		}

		if reportFlags.sqlite != "" {
			err := tracelog.ExportSQLite(reportFlags.input,
				reportFlags.sqlite)
			if err != nil {
				return err
			}
			log.Printf("saved records to %s", reportFlags.sqlite)
		}
		return nil
	},
}

func init() {
	reportCmd.Flags().StringVarP(&reportFlags.input, "input", "i",
		"trace.data", "trace log file")
	reportCmd.Flags().StringVarP(&reportFlags.outDir, "out-dir", "o",
		"__csv__", "csv output dir")
	reportCmd.Flags().IntVarP(&reportFlags.maxRecords, "max-records", "n",
		1000, "max records per event, 0 to dump all records")
	reportCmd.Flags().StringVarP(&reportFlags.sample, "sample", "s",
		"header", "sampling method: header, tail, evenly or random")
	reportCmd.Flags().StringVar(&reportFlags.sqlite, "sqlite", "",
		"also export all records to a SQLite database file")
	rootCmd.AddCommand(reportCmd)
}

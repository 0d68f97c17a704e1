package cmd

import (
	"github.com/spf13/cobra"

	"github.com/cyb70289/cmn-analyzer/pmu"
)

var traceFlags struct {
	collectFlags
	tracetag  bool
	maxSizeMB int
	output    string
}

var traceCmd = &cobra.Command{
	Use:   "trace",
	Short: "Trace events.",
	Long: "`trace` captures flits matching each watchpoint event into a " +
		"binary trace log for later analysis with `report`.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		events, err := pmu.ParseEvents(traceFlags.events)
		if err != nil {
			return err
		}

		opts := traceFlags.options(cmd)
		opts.TraceTag = traceFlags.tracetag
		opts.MaxBytes = int64(traceFlags.maxSizeMB) << 20
		opts.Output = traceFlags.output
		if !cmd.Flags().Changed("output") {
			opts.Output = envStr("CMN_TRACE_FILE", opts.Output)
		}

		s, err := pmu.NewSession(events, pmu.ModeTrace, opts,
			pmu.OpenHardware)
		if err != nil {
			return err
		}
		return runSession(s, &traceFlags.collectFlags)
	},
}

func init() {
	traceFlags.register(traceCmd)
	traceCmd.Flags().BoolVar(&traceFlags.tracetag, "tracetag", false,
		"enable tracetag, triggered by first event")
	traceCmd.Flags().IntVar(&traceFlags.maxSizeMB, "max-size", 64,
		"maximal packet size in MB to stop tracing")
	traceCmd.Flags().StringVarP(&traceFlags.output, "output", "o",
		"trace.data", "filename to save trace log")
	rootCmd.AddCommand(traceCmd)
}

package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cyb70289/cmn-analyzer/monitoring"
	"github.com/cyb70289/cmn-analyzer/pmu"
)

// collectFlags are shared by the stat and trace subcommands.
type collectFlags struct {
	events      []string
	intervalMS  int
	timeoutMS   int
	monitor     bool
	monitorPort int
}

func (f *collectFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringArrayVarP(&f.events, "event", "e", nil,
		"watchpoint events: -e event1,event2 -e event3 ...\n"+
			"examples:\n"+
			"-e cmn0/xp=8,port=1,up,group=0,channel=req/\n"+
			"-e cmn1/xp=0,port=0,down,group=1,channel=dat,opcode=compdata/\n"+
			"-e cmn0/xp=8,port=1,up,group=0,channel=rsp,tgtid=100/")
	cmd.Flags().IntVarP(&f.intervalMS, "interval", "I", 1000,
		"report interval in ms")
	cmd.Flags().IntVarP(&f.timeoutMS, "timeout", "t", 0,
		"run time in ms (default no stop)")
	cmd.Flags().BoolVar(&f.monitor, "monitor", false,
		"serve session state over http")
	cmd.Flags().IntVar(&f.monitorPort, "monitor-port", 0,
		"monitoring server port (default random)")
	cmd.MarkFlagRequired("event")
}

// options maps the flag surface to session options. A zero timeout on the
// command line means run until interrupted.
func (f *collectFlags) options(cmd *cobra.Command) pmu.Options {
	if !cmd.Flags().Changed("interval") {
		f.intervalMS = envInt("CMN_INTERVAL_MS", f.intervalMS)
	}
	timeout := time.Duration(f.timeoutMS) * time.Millisecond
	if f.timeoutMS == 0 {
		timeout = -1
	}
	return pmu.Options{
		Interval: time.Duration(f.intervalMS) * time.Millisecond,
		Timeout:  timeout,
	}
}

// runSession drives one collector session to completion, stopping early on
// SIGINT or SIGTERM.
func runSession(s *pmu.Session, flags *collectFlags) error {
	if flags.monitor {
		m := monitoring.NewMonitor(s)
		if flags.monitorPort != 0 {
			m.WithPortNumber(flags.monitorPort)
		}
		m.StartServer()
	}

	ctx, stop := signal.NotifyContext(
		context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return s.Run(ctx)
}

var statFlags collectFlags

var statCmd = &cobra.Command{
	Use:   "stat",
	Short: "Count events.",
	Long: "`stat` counts flits matching each watchpoint event and prints " +
		"per-event totals every report interval.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		events, err := pmu.ParseEvents(statFlags.events)
		if err != nil {
			return err
		}
		s, err := pmu.NewSession(events, pmu.ModeStat,
			statFlags.options(cmd), pmu.OpenHardware)
		if err != nil {
			return err
		}
		return runSession(s, &statFlags)
	},
}

func init() {
	statFlags.register(statCmd)
	rootCmd.AddCommand(statCmd)
}

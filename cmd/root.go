// Package cmd provides the command-line interface for cmn-analyzer.
package cmd

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

var verbose bool

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "cmn-analyzer",
	Short: "cmn-analyzer profiles traffic on Arm CMN mesh interconnects.",
	Long: `cmn-analyzer programs the debug and trace hardware of Arm CMN ` +
		`mesh interconnects to count or capture flits crossing selected ` +
		`crosspoint ports, and converts captured trace logs into CSV or ` +
		`SQLite files for analysis.`,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		log.SetFlags(0)
		if verbose {
			log.SetFlags(log.Ltime | log.Lmicroseconds)
		}
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately. Defaults may be overridden by a .env file in the working
// directory (e.g. CMN_MESH=1).
func Execute() {
	_ = godotenv.Load()

	err := rootCmd.Execute()
	if err != nil {
		atexit.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"enable verbose logging")
}

// envInt returns the .env/environment override for key, or def.
func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Command clkctl dry-runs board clock plans against the register simulator
// and talks to the firmware console over a serial port.
package main

import (
	goflag "flag"
	"os"

	"github.com/golang/glog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"clkhal/clock"
)

var rootCmd = &cobra.Command{
	Use:   "clkctl",
	Short: "STM32L4 clock plan and console tool",
	Long: "clkctl checks board clock plans on a register-level simulator of the\n" +
		"STM32L452 clock tree and drives the firmware clock console over a serial port.",
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Controller trace lines go to the glog info log at -v=1
		clock.SetDebugWriter(func(msg string) {
			glog.V(1).Info(msg)
		})
		clock.SetDebugEnabled(bool(glog.V(1)))
	},
}

func init() {
	pflag.CommandLine.AddGoFlagSet(goflag.CommandLine)

	rootCmd.AddCommand(planCmd, portsCmd, consoleCmd, sendCmd)
}

func main() {
	defer glog.Flush()

	// glog refuses to log until the Go flag set has been parsed
	goflag.CommandLine.Parse(nil)

	if err := rootCmd.Execute(); err != nil {
		glog.Flush()
		os.Exit(1)
	}
}

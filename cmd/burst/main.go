// Command burst compiles generated incident scenarios into dispatch plans
// and replays them against PagerDuty.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type rootFlags struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:           "burst",
		Short:         "Compile and replay generated incident event schedules",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", os.Getenv("BURST_CONFIG"), "YAML configuration file")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Override log.level (debug, info, warn, error)")

	root.AddCommand(
		newCompileCmd(flags),
		newRunCmd(flags),
		newServeCmd(flags),
		newExportCmd(flags),
	)
	return root
}

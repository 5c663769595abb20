// orthrusbench compares memcached server variants (vanilla, SEI,
// Orthrus, RBV) under a shared load generator and reports throughput,
// latency and memory footprint.
package main

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/aoikida/Orthrus/env"
)

var verbose bool

func main() {
	root := &cobra.Command{
		Use:           "orthrusbench",
		Short:         "Benchmark harness for memcached server variants",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
			if verbose || env.Verbose != "" {
				log.SetLevel(log.DebugLevel)
			}
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		compareCmd(),
		sweepCmd(),
		parseCmd(),
		memoryCmd(),
		chartCmd(),
		historyCmd(),
	)

	if err := root.Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

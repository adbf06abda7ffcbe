package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/QuTech-Delft/squidasm-sub000/sim"
	"github.com/QuTech-Delft/squidasm-sub000/stack"
)

var (
	seed       int64  // Master seed; every RNG stream derives from it
	logLevel   string // Log verbosity level
	numRuns    int    // How many times to run the program pair
	configPath string // Optional YAML network config
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "squidasm",
	Short: "Discrete-event simulator for quantum network node stacks",
}

// runCmd builds a two-node network and runs the built-in EPR demo on it
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the EPR pair demo on a two-node network",
	Run: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		cfg := DefaultNetworkConfig()
		if configPath != "" {
			cfg, err = LoadNetworkConfig(configPath)
			if err != nil {
				logrus.Fatalf("Unable to load network config: %v", err)
			}
		}

		ctx := sim.NewContext(sim.SimulationKey(seed))
		network := stack.NewStackNetwork(ctx, cfg)

		first, second := cfg.Nodes[0].Name, cfg.Nodes[1].Name
		network.Stack(first).Host().EnqueueProgram(&eprDemoClient{peer: second}, numRuns)
		network.Stack(second).Host().EnqueueProgram(&eprDemoServer{peer: first}, numRuns)

		logrus.Infof("Starting %d runs on network %s <-> %s (seed %d)", numRuns, first, second, seed)
		if err := network.Run(); err != nil {
			logrus.Fatalf("Simulation failed: %v", err)
		}

		for _, name := range []string{first, second} {
			for i, res := range network.Stack(name).Host().Results() {
				if res.Err != nil {
					logrus.Warnf("%s run %d (%s): %v", name, i, res.ID, res.Err)
					continue
				}
				logrus.Infof("%s run %d (%s): outcome=%v remote=%v",
					name, i, res.ID, res.Values["outcome"], res.Values["remote_outcome"])
			}
		}
		logrus.Info("Simulation complete.")
	},
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	runCmd.Flags().Int64Var(&seed, "seed", 42, "Master seed for all RNG streams")
	runCmd.Flags().StringVar(&logLevel, "log", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")
	runCmd.Flags().IntVar(&numRuns, "num", 10, "Number of program runs")
	runCmd.Flags().StringVar(&configPath, "config", "", "Path to a YAML network config")

	rootCmd.AddCommand(runCmd)
}

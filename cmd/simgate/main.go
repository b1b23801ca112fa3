package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/simgate-dev/simgate/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	noColor    bool
	jsonErrors bool
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		errors.Print(os.Stderr, err, jsonErrors)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "simgate",
		Short: "Session gateway for collaborative simulations",
		Long: `simgate accepts websocket connections from simulation front ends,
decides which client controls the shared simulation, queues clients when
the simulator is full and broadcasts state changes to everyone watching.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor {
				errors.DisableColors()
			}
		},
	}
	root.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	root.PersistentFlags().BoolVar(&jsonErrors, "json-errors", false, "Print errors as JSON")

	root.AddCommand(
		serveCmd(),
		configCmd(),
		versionCmd(),
	)
	return root
}

// success prints a success message.
func success(format string, args ...any) {
	fmt.Printf("\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(format string, args ...any) {
	fmt.Printf("  %s\n", fmt.Sprintf(format, args...))
}

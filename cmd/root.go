// Package cmd wires the CLI front end (SPEC_FULL.md §2 component 12): a
// Cobra command tree driving a single archiving run from a profile file or
// flags, rendering progress and logs to the terminal, matching the
// teacher's cmd/root.go root-command-plus-subcommands structure.
package cmd

import (
	"fmt"
	"os"

	"github.com/apex/log"
	"github.com/spf13/cobra"

	"github.com/sliceback/sliceback/internal/logging"
)

// Version is the build version reported by the version subcommand; set via
// -ldflags at build time, matching the teacher's system.Version pattern.
var Version = "dev"

var debug bool

var rootCommand = &cobra.Command{
	Use:   "slicearchive",
	Short: "Runs an incremental, sliced, file-level backup.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		lvl := log.InfoLevel
		if debug {
			lvl = log.DebugLevel
		}
		logging.Configure(lvl)
	},
}

func init() {
	rootCommand.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug-level logging")
	rootCommand.AddCommand(runCommand, versionCommand)
}

// Execute runs the root command, exiting the process on error, matching the
// teacher's cmd.Execute entry point.
func Execute() {
	if err := rootCommand.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var versionCommand = &cobra.Command{
	Use:   "version",
	Short: "Prints the current executable version and exits.",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Printf("slicearchive v%s\n", Version)
	},
}

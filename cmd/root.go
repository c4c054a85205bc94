package cmd

import (
	"github.com/grovetools/fsdispatch/cli"
	"github.com/grovetools/fsdispatch/pkg/profiling"
	"github.com/grovetools/fsdispatch/version"
	"github.com/spf13/cobra"
)

// NewRootCmd assembles the fsdispatch command tree.
func NewRootCmd() *cobra.Command {
	rootCmd := cli.NewStandardCommand(
		"fsdispatch",
		"Watch directories through native file events and dispatch queues",
	)
	cli.SetVersionTemplate(rootCmd, version.GetInfo())
	profiling.NewCobraProfiler().Attach(rootCmd)

	rootCmd.AddCommand(NewWatchCmd())
	rootCmd.AddCommand(NewQueueInfoCmd())
	rootCmd.AddCommand(NewConfigCmd())
	rootCmd.AddCommand(cli.NewVersionCommand("fsdispatch"))

	cli.ApplyStyledHelpRecursive(rootCmd)
	return rootCmd
}

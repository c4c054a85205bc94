package main

import (
	"os"

	"github.com/grovetools/fsdispatch/cli"
	"github.com/grovetools/fsdispatch/cmd"
)

func main() {
	cli.InitializeColor()
	rootCmd := cmd.NewRootCmd()

	if err := rootCmd.Execute(); err != nil {
		verbose, _ := rootCmd.PersistentFlags().GetBool("verbose")
		_ = cli.NewErrorHandler(verbose).Handle(err)
		os.Exit(1)
	}
}

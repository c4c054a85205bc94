package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/grovetools/fsdispatch/cli"
	"github.com/grovetools/fsdispatch/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// NewConfigCmd creates the `config` command and its `schema` subcommand.
func NewConfigCmd() *cobra.Command {
	var layers bool
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Display the effective configuration",
		Long: `Prints the configuration the watch command would use. With --layers the
individual layers are shown before the merged result:
1. Global config (~/.config/fsdispatch/fsdispatch.yml)
2. Project config (fsdispatch.yml, found upward from the working directory)
3. Override files (fsdispatch.override.yml)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			opts := cli.GetOptions(cmd)

			if !layers || opts.ConfigFile != "" {
				cfg, err := cli.LoadConfig(cmd)
				if err != nil {
					return err
				}
				return printConfig(out, cfg, opts.JSONOutput)
			}

			cwd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get current directory: %w", err)
			}
			layered, err := config.LoadLayered(cwd)
			if err != nil {
				return err
			}
			if opts.JSONOutput {
				return printConfig(out, layered, true)
			}
			printLayers(out, layered)
			return nil
		},
	}
	cmd.Flags().BoolVar(&layers, "layers", false, "Show each configuration layer before the merged result")

	cmd.AddCommand(&cobra.Command{
		Use:   "schema",
		Short: "Print the JSON schema for fsdispatch configuration files",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := config.GenerateSchema()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	})
	return cmd
}

func printConfig(out io.Writer, v interface{}, asJSON bool) error {
	var (
		data []byte
		err  error
	)
	if asJSON {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = yaml.Marshal(v)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	fmt.Fprintln(out, string(data))
	return nil
}

func printLayers(out io.Writer, layered *config.LayeredConfig) {
	printLayer := func(title, path string, cfg *config.Config) {
		if cfg == nil {
			return
		}
		fmt.Fprintf(out, "--- # %s\n", title)
		if path != "" {
			fmt.Fprintf(out, "# Source: %s\n", path)
		}
		data, _ := yaml.Marshal(cfg)
		fmt.Fprintln(out, string(data))
	}

	printLayer("DEFAULTS", "", layered.Default)
	printLayer("GLOBAL CONFIG", layered.FilePaths[config.SourceGlobal], layered.Global)
	printLayer("PROJECT CONFIG", layered.FilePaths[config.SourceProject], layered.Project)
	for _, override := range layered.Overrides {
		printLayer("OVERRIDE CONFIG", override.Path, override.Config)
	}
	printLayer("FINAL MERGED CONFIG", "", layered.Final)
}

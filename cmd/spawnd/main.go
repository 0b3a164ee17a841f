package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := buildRoot().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// buildRoot creates the root command with every subcommand attached
func buildRoot() *cobra.Command {
	globalFlags := &GlobalFlags{}
	root := createRootCommand(globalFlags)
	root.AddCommand(
		createServeCommand(globalFlags),
		createStatusCommand(),
		createVersionCommand(),
	)
	return root
}

func createRootCommand(globalFlags *GlobalFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "spawnd",
		Short: "spawnd keeps a directory of declared commands running",
		Long: `spawnd reads process declarations from a config directory, starts every
enabled process that is not running and relays its output line by line.
Changes to the directory are picked up without a restart.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&globalFlags.ConfigPath, "config", "", "path to a TOML file with daemon settings")
	return root
}

func createVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the spawnd version",
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "spawnd %s\n", version)
		},
	}
}

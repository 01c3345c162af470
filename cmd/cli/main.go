package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/inferloop/kano/cmd/cli/commands"
	"github.com/inferloop/kano/pkg/constants"
)

func main() {
	if err := createRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func createRootCommand() *cobra.Command {
	globals := &commands.Globals{}

	rootCmd := &cobra.Command{
		Use:   "kano-cli",
		Short: "k-anonymity by numeric generalization",
		Long: `A command-line interface for generalizing the numeric columns of a CSV
file into equal-width bins until every row shares its generalized values with
at least k-1 other rows.`,
		Version:       constants.AppVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return globals.Load(cmd.ErrOrStderr())
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&globals.ConfigFile, "config", "", "config file (default is $HOME/.kano/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&globals.Verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&globals.LogLevel, "log-level", "", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(commands.NewAnonymizeCmd(globals))
	rootCmd.AddCommand(commands.NewInspectCmd(globals))
	rootCmd.AddCommand(commands.NewProfileCmd(globals))

	return rootCmd
}

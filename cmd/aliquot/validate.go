package main

import (
	"github.com/aretw0/aliquot/internal/cli"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <protocol>...",
	Short: "Check protocols for consistency",
	Long:  `Parses each protocol and reports unknown labware, wells, mounts, modules and commands.`,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.Validate(args, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

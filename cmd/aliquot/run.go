package main

import (
	"os"

	"github.com/aretw0/aliquot/internal/cli"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <protocol>",
	Short: "Run a protocol on the configured robot",
	Long:  `Loads the protocol's deck and runs its commands in order. Ctrl+C stops the run between steps.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		confirm, _ := cmd.Flags().GetBool("confirm")
		deny, _ := cmd.Flags().GetStringSlice("deny")
		jsonMode, _ := cmd.Flags().GetBool("json")

		return cli.Run(cli.RunOptions{
			Options:      globalOptions(cmd),
			ProtocolPath: args[0],
			Confirm:      confirm,
			Deny:         deny,
			JSON:         jsonMode,
		}, cli.IO{In: os.Stdin, Out: cmd.OutOrStdout(), Err: cmd.ErrOrStderr()})
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Bool("confirm", false, "Ask before every step")
	runCmd.Flags().StringSlice("deny", nil, "Commands to refuse (e.g. --deny home,pause)")
	runCmd.Flags().Bool("json", false, "Print the run report as JSON")
}

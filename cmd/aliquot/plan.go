package main

import (
	"github.com/aretw0/aliquot/internal/cli"
	"github.com/spf13/cobra"
)

var planCmd = &cobra.Command{
	Use:   "plan <protocol>",
	Short: "Dry-run a protocol on simulated hardware",
	Long:  `Simulates the protocol with the pipettes it names and prints the commands the robot would perform.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		primitives, _ := cmd.Flags().GetBool("primitives")
		jsonMode, _ := cmd.Flags().GetBool("json")
		mermaid, _ := cmd.Flags().GetBool("mermaid")
		return cli.Plan(cmd.Context(), cli.PlanOptions{
			Options:      globalOptions(cmd),
			ProtocolPath: args[0],
			Primitives:   primitives,
			JSON:         jsonMode,
			Mermaid:      mermaid,
		}, cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

func init() {
	rootCmd.AddCommand(planCmd)
	planCmd.Flags().Bool("primitives", false, "Also list the steps inside transfers")
	planCmd.Flags().Bool("json", false, "Print the events as JSON")
	planCmd.Flags().Bool("mermaid", false, "Print the liquid flow as a Mermaid flowchart")
}

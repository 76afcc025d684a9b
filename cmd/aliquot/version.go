package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/aliquot"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of aliquot",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "aliquot version %s\n", strings.TrimSpace(aliquot.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

package main

import (
	"fmt"
	"os"

	"github.com/aretw0/aliquot/internal/cli"
	"github.com/aretw0/aliquot/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "aliquot",
	Short:         "Aliquot drives a liquid-handling robot",
	Long:          `Aliquot runs declarative pipetting protocols on a simulated or Smoothie-driven liquid-handling robot.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringP("config", "c", "", "Robot configuration file (default $"+config.EnvPath+" or "+config.DefaultPath+")")
	rootCmd.PersistentFlags().Bool("debug", false, "Log every command event")
	rootCmd.PersistentFlags().String("log-level", "", "Override the configured log level (debug, info, warn, error)")
}

// globalOptions reads the persistent flags.
func globalOptions(cmd *cobra.Command) cli.Options {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = os.Getenv(config.EnvPath)
	}
	if path == "" {
		path = config.DefaultPath
	}
	debug, _ := cmd.Flags().GetBool("debug")
	level, _ := cmd.Flags().GetString("log-level")
	return cli.Options{ConfigPath: path, Debug: debug, LogLevel: level}
}

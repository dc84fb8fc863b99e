package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/use-agent/elemshot/config"
)

// NewRootCmd creates the root command for elemshot.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "elemshot",
		Short: "Capture screenshots of individual DOM elements",
		Long: `elemshot drives a headless browser to a page, finds every element matching
each CSS selector, and saves one cropped PNG per element.

Settings come from ELEMSHOT_* environment variables (a .env file in the
working directory is read first); command-line flags take precedence.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(NewCaptureCmd())
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the environment and applies the global flags.
func loadConfig(cmd *cobra.Command) *config.Config {
	cfg := config.Load()
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		cfg.Log.Level = "debug"
	}
	return cfg
}

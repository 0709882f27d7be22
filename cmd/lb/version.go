package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

const (
	// Version is the current version of lb
	Version = "0.3.0"
	// Build can be set via ldflags at compile time
	Build = "dev"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		if jsonOutput {
			return outputJSON(map[string]string{
				"version": Version,
				"build":   Build,
			})
		}
		fmt.Printf("lb version %s (%s)\n", Version, Build)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

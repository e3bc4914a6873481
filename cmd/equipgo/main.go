// Package main implements the equipgo CLI.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/qryxip/equipgo/internal/cliui"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:          "equipgo",
		Short:        "equipgo - bundle a Rust binary crate with its path dependencies into one file",
		Version:      version,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(bundleCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the equipgo version",
		Run: func(cmd *cobra.Command, args []string) {
			cliui.PrintHeader(version)
		},
	}
}

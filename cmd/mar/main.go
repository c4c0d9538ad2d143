package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "mar",
		Short: "Pack, inspect, and shard content-addressed MAR archives",
	}

	rootCmd.AddCommand(
		newCreateCommand(),
		newShowsumCommand(),
		newSplitCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

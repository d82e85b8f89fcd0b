// Package cmd implements the indexer command line.
package cmd

import (
	"github.com/spf13/cobra"
)

var configPath string

// RootCmd is the indexer entry point.
var RootCmd = &cobra.Command{
	Use:   "indexer",
	Short: "indexer builds an inverted index in bounded memory",
	Long: `The indexer streams documents through tokenizing, accumulating and
spilling stages and merges the spilled segments into a single index file.`,
	SilenceUsage: true,
}

func init() {
	RootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")
}

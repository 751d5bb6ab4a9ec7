package main

import (
	"github.com/spf13/cobra"
)

var (
	configFile string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:           "gamedb-update",
	Short:         "Keep game server databases up to date",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "gamedb.yaml", "path to the yaml config")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log every statement")
}

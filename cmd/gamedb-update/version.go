package main

import (
	"fmt"

	"github.com/spf13/cobra"
	gamedb "github.com/yggai/ygggo_gamedb"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("gamedb-update %s\n", gamedb.Version())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

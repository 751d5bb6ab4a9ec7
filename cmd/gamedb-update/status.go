package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	gamedb "github.com/yggai/ygggo_gamedb"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check that every configured database is reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		unhealthy := 0
		for _, named := range cfg.Databases() {
			db, err := gamedb.NewDatabase(named.Name, named.Config)
			if err != nil {
				return err
			}
			status, err := db.HealthCheck(ctx)
			if err != nil {
				return err
			}
			if status.Healthy {
				printSuccess("%s: healthy (%s)", named.Name, status.ResponseTime.Round(time.Millisecond))
				continue
			}
			unhealthy++
			for _, e := range status.Errors {
				printError("%s: %s %s: %s", named.Name, e.Type, e.Kind, e.Message)
			}
		}
		if unhealthy > 0 {
			return errUnhealthy(unhealthy)
		}
		return nil
	},
}

type errUnhealthy int

func (e errUnhealthy) Error() string {
	return plural(int(e), "database") + " unhealthy"
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

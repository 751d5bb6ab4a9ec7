package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	gamedb "github.com/yggai/ygggo_gamedb"
)

var (
	assumeYes bool
	only      []string
)

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Create, populate and migrate the configured databases",
	Long: `Bootstraps every configured database: creates it when missing (with
updates.auto_setup), applies its base file when empty and then applies new
or changed migration files from the include directories.

Examples:
  gamedb-update update                     # all databases from gamedb.yaml
  gamedb-update update --only world -y     # world only, create without asking`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		opts := []gamedb.LoaderOption{
			gamedb.WithConfirm(func(_ context.Context, name, database string) bool {
				if assumeYes {
					return true
				}
				return confirm(fmt.Sprintf("Database %q (%s) does not exist. Create it? [y/N] ", database, name))
			}),
		}
		if verbose {
			opts = append(opts, gamedb.WithLoaderLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))))
		}

		loader, err := gamedb.NewLoaderFromConfig(cfg, nil, opts...)
		if err != nil {
			return err
		}
		defer loader.Close()

		printInfo("Updating %s...", plural(len(loader.Databases()), "database"))
		if err := loader.Load(ctx); err != nil {
			printError("Update failed")
			return err
		}

		for _, db := range loader.Databases() {
			res, ok := loader.UpdateResult(db.Name())
			if !ok || !db.Config().Updates {
				printInfo("%s: updates disabled", db.Name())
				continue
			}
			printSuccess("%s: %s applied, %s renamed, %s rehashed (%d released, %d archived)",
				db.Name(), plural(res.Imported, "file"), plural(res.Renamed, "file"), plural(res.Rehashed, "file"),
				res.Recent, res.Archived)
			if res.Drifted() {
				printWarning("%s: %s missing from disk left in the ledger: %s",
					db.Name(), plural(len(res.Orphans), "file"), strings.Join(res.Orphans, ", "))
			} else if res.Cleaned {
				printInfo("%s: removed %s from the ledger", db.Name(), plural(len(res.Orphans), "missing file"))
			}
		}
		return nil
	},
}

func loadConfig() (*gamedb.Config, error) {
	var cfg *gamedb.Config
	if _, err := os.Stat(configFile); err == nil {
		cfg, err = gamedb.LoadFile(configFile)
		if err != nil {
			return nil, err
		}
	} else {
		printWarning("Config %s not found, using defaults", configFile)
		cfg = gamedb.DefaultConfig()
		if err := gamedb.ApplyEnv(cfg); err != nil {
			return nil, err
		}
	}
	if len(only) > 0 {
		keep := make(map[string]bool, len(only))
		for _, name := range only {
			keep[name] = true
		}
		for _, named := range cfg.Databases() {
			if !keep[named.Name] {
				cfg.Disable(named.Name)
			}
		}
	}
	return cfg, nil
}

func init() {
	updateCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "create missing databases without asking")
	updateCmd.Flags().StringSliceVar(&only, "only", nil, "limit to these databases (login, character, world, hotfix)")
	rootCmd.AddCommand(updateCmd)
}

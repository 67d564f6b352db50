package profile

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/terraconstructs/classgrid/internal/app"
	"github.com/terraconstructs/classgrid/internal/config"
	"github.com/terraconstructs/classgrid/internal/db/bunx"
	"github.com/terraconstructs/classgrid/internal/profilestore"
	"github.com/uptrace/bun"
)

var cfg *config.Config

// ProfileCmd groups the profile document commands.
var ProfileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage user profile documents",
}

// SetConfig hands the loaded configuration to the profile commands.
func SetConfig(c *config.Config) {
	cfg = c
}

func init() {
	ProfileCmd.AddCommand(getCmd)
	ProfileCmd.AddCommand(upsertCmd)
	ProfileCmd.AddCommand(listCmd)
	ProfileCmd.AddCommand(migrateCmd)
}

func openStore(ctx context.Context) (*profilestore.BunStore, *bun.DB, error) {
	db, err := app.OpenDB(ctx, cfg.ProfileDatabaseURL, cfg.MaxDBConnections, false)
	if err != nil {
		return nil, nil, err
	}
	return profilestore.NewBunStore(db), db, nil
}

func closeDB(db *bun.DB) {
	_ = bunx.Close(db)
}

package migrations

import (
	"context"
	"fmt"

	"github.com/terraconstructs/classgrid/internal/db/models"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(up_20261015000002, down_20261015000002)
}

// up_20261015000002 creates the session_cache table used by the SQL cache backend
func up_20261015000002(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [up] creating session_cache table...")

	_, err := db.NewCreateTable().
		Model((*models.SessionCacheEntry)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create session_cache table: %w", err)
	}
	fmt.Println(" OK")

	return nil
}

// down_20261015000002 drops the session_cache table
func down_20261015000002(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [down] dropping session_cache table...")

	_, err := db.NewDropTable().
		Model((*models.SessionCacheEntry)(nil)).
		IfExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to drop session_cache table: %w", err)
	}
	fmt.Println(" OK")

	return nil
}

package migrations

import (
	"context"
	"fmt"

	"github.com/terraconstructs/classgrid/internal/db/models"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(up_20261015000001, down_20261015000001)
}

// up_20261015000001 creates the profiles table
func up_20261015000001(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [up] creating profiles table...")

	_, err := db.NewCreateTable().
		Model((*models.Profile)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create profiles table: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_profiles_role ON profiles(role)`)
	if err != nil {
		return fmt.Errorf("failed to create profiles role index: %w", err)
	}
	fmt.Println(" OK")

	return nil
}

// down_20261015000001 drops the profiles table
func down_20261015000001(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [down] dropping profiles table...")

	_, err := db.NewDropTable().
		Model((*models.Profile)(nil)).
		IfExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to drop profiles table: %w", err)
	}
	fmt.Println(" OK")

	return nil
}

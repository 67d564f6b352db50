package profile

import (
	"errors"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/terraconstructs/classgrid/internal/app"
	"github.com/terraconstructs/classgrid/internal/migrate"
)

var (
	sourceDSN string
	table     string
	filter    string
	dryRun    bool
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Copy profile rows from another database",
	Long: `Reads every row of --table in the --source-dsn database and merges it into
the profile store. The document id is taken from the id, uid or uuid column.
Rows can be narrowed with a --filter expression such as 'role == "faculty"'.
Re-running the command is safe.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if sourceDSN == "" {
			return errors.New("--source-dsn is required")
		}
		ctx := cmd.Context()

		srcDB, err := app.OpenDB(ctx, sourceDSN, cfg.MaxDBConnections, false)
		if err != nil {
			return err
		}
		defer closeDB(srcDB)

		store, db, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer closeDB(db)

		report, err := migrate.Run(ctx, migrate.NewBunSource(srcDB, table), store, migrate.Options{
			Filter: filter,
			DryRun: dryRun,
		})
		if err != nil {
			return err
		}

		for _, f := range report.Failures {
			pterm.Warning.Println(f.Error())
		}
		if report.Skipped > 0 {
			pterm.Info.Printf("Skipped %d row(s) not matching the filter\n", report.Skipped)
		}
		if dryRun {
			pterm.Info.Printf("Dry run: %d/%d rows would be migrated from %s\n", report.Migrated, report.Total, report.Source)
			return nil
		}
		pterm.Success.Println(report.String())
		return nil
	},
}

func init() {
	migrateCmd.Flags().StringVar(&sourceDSN, "source-dsn", "", "DSN of the database to copy from")
	migrateCmd.Flags().StringVar(&table, "table", "user_profiles", "Source table name")
	migrateCmd.Flags().StringVar(&filter, "filter", "", "go-bexpr expression selecting rows")
	migrateCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Decode and count rows without writing")
}

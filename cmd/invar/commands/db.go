package commands

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/invar/audit"
	"github.com/teranos/invar/errors"
)

// DbCmd manages the invar database.
var DbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the invar database",
	Long: `db — Database operations

Examples:
  invar db migrate    # apply pending migrations
  invar db stats      # row counts per table`,
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending migrations",
	RunE:  runDbMigrate,
}

var dbStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show database statistics",
	RunE:  runDbStats,
}

func init() {
	DbCmd.AddCommand(dbMigrateCmd)
	DbCmd.AddCommand(dbStatsCmd)
}

func runDbMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}
	database, err := openDatabase(cfg) // openDatabase migrates
	if err != nil {
		return err
	}
	defer database.Close()
	pterm.Success.Println("Database migrated")
	return nil
}

func runDbStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}
	database, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	for _, table := range []string{"audit_log", "defect_samples", "decisions"} {
		var n int
		if err := database.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
			return errors.Wrapf(err, "failed to count %s", table)
		}
		pterm.Info.Printf("%-16s %d rows\n", table, n)
	}

	vetoes, err := audit.NewStore(database).CountVetoes()
	if err != nil {
		return err
	}
	pterm.Info.Printf("%-16s %d\n", "vetoes", vetoes)
	return nil
}

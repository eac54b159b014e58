package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"indoormap/internal/common/config"
	"indoormap/internal/common/logging"
	"indoormap/internal/mapdata/repository"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// env is the state shared by every subcommand once the database is open.
type env struct {
	dbPath string

	cfg  *config.Config
	db   *sql.DB
	repo *repository.Repository
	log  *slog.Logger
}

func newRootCmd() *cobra.Command {
	e := &env{}
	root := &cobra.Command{
		Use:   "floorctl",
		Short: "Operate on the indoor map database",
		Long: `floorctl migrates the map database, exports and imports floor plans, and
runs editor operations such as wallify without a browser. Writes go through
the same ordered queue the editor service uses.`,
		Version:            "1.0.0",
		SilenceUsage:       true,
		SilenceErrors:      true,
		PersistentPreRunE:  func(*cobra.Command, []string) error { return e.open() },
		PersistentPostRunE: func(*cobra.Command, []string) error { return e.close() },
	}
	root.PersistentFlags().StringVar(&e.dbPath, "db", "", "SQLite database file (overrides the configured database)")

	root.AddCommand(
		newMigrateCmd(e),
		newExportCmd(e),
		newImportSVGCmd(e),
		newWallifyCmd(e),
		newBuildingsCmd(e),
	)
	return root
}

func (e *env) open() error {
	e.cfg = config.Load("floorctl")
	if e.dbPath != "" {
		e.cfg.Database = config.DatabaseConfig{Driver: repository.DriverSQLite, DSN: e.dbPath}
	}
	e.log = logging.Init("floorctl", e.cfg.Logging)

	db, err := repository.Open(e.cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	e.db = db
	e.repo = repository.New(db, e.cfg.Database.Driver)
	return nil
}

func (e *env) close() error {
	if e.db == nil {
		return nil
	}
	return e.db.Close()
}

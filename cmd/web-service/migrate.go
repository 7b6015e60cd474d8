package main

import (
	"os"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"

	"github.com/r2r72/x-mkt-v1/internal/logging"
)

func newMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE:  migrateCommand,
	}
	cobraflags.RegisterMap(cmd, newCommonFlags())
	return cmd
}

func migrateCommand(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := logging.New(os.Stdout, cfg.Log.Level, cfg.Log.Format)

	db, err := openDatabase(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer db.close()

	if err := db.migrate(cmd.Context()); err != nil {
		return err
	}
	log.Info("schema up to date", "driver", cfg.Database.Driver)
	return nil
}

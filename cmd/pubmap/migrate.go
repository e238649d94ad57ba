package main

import (
	"github.com/spf13/cobra"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			database, err := a.openDB()
			if err != nil {
				return err
			}
			defer database.Close()
			if err := database.RunMigrations(); err != nil {
				return err
			}
			a.logger.Info("Migrations applied")
			return nil
		},
	}
}

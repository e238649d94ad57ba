package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/FACorreiaa/loci-pubmap/pkg/config"
	"github.com/FACorreiaa/loci-pubmap/pkg/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	app := &app{}
	root := &cobra.Command{
		Use:           "pubmap",
		Short:         "Pub map API and catalogue tools",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			app.cfg = cfg
			app.logger = logger.Setup(cfg.Observability.LogLevel, cfg.Observability.LogFormat)
			return nil
		},
	}
	root.AddCommand(
		newServeCmd(app),
		newMigrateCmd(app),
		newStatsCmd(app),
		newSmallAreasCmd(app),
		newImportCmd(app),
	)
	return root
}

package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/FACorreiaa/loci-pubmap/internal/domain/poi"
)

func newImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.geojson>",
		Short: "Insert or update pubs from a GeoJSON feature collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}
			pubs, skipped, err := poi.DecodeGeoJSON(raw)
			if err != nil {
				return err
			}
			if len(skipped) > 0 {
				a.logger.Warn("Skipped features without id or point geometry", slog.Any("indexes", skipped))
			}

			database, err := a.openDB()
			if err != nil {
				return err
			}
			defer database.Close()

			ctx, cancel := commandContext(cmd.Context(), 5*time.Minute)
			defer cancel()
			written, err := poi.NewRepository(database.Pool, a.logger).UpsertPubs(ctx, pubs)
			if err != nil {
				return fmt.Errorf("imported %d of %d pubs: %w", written, len(pubs), err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %s\n", plural(written, "pub"))
			return nil
		},
	}
}

package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/FACorreiaa/loci-pubmap/internal/domain/statistics"
)

func newSmallAreasCmd(a *app) *cobra.Command {
	var (
		minPubs    int
		maxRangeKm float64
	)
	cmd := &cobra.Command{
		Use:   "small-areas",
		Short: "Suggest which large area each small area could merge into",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, database, err := a.statisticsService()
			if err != nil {
				return err
			}
			defer database.Close()

			ctx, cancel := commandContext(cmd.Context(), time.Minute)
			defer cancel()
			suggestions, skipped, err := svc.GetMergeSuggestions(ctx, minPubs, maxRangeKm)
			if err != nil {
				return err
			}
			return printSuggestions(cmd.OutOrStdout(), suggestions, skipped)
		},
	}
	cmd.Flags().IntVar(&minPubs, "min-pubs", 3, "areas with fewer pubs are merge candidates")
	cmd.Flags().Float64Var(&maxRangeKm, "range", 0, "skip suggestions farther than this many km (0 disables)")
	return cmd
}

func printSuggestions(out io.Writer, suggestions []statistics.MergeSuggestion, skipped []statistics.SkippedArea) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FROM\tTO\tDISTRICT\tPUBS\tAVG KM\tMAX KM")
	for _, s := range suggestions {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%.2f\t%.2f\n",
			s.FromArea, s.ToArea, s.ToDistrict, len(s.PubIDs), s.AvgDistanceKm, s.MaxDistanceKm)
	}
	for _, s := range skipped {
		fmt.Fprintf(tw, "%s\t-\t\t\t\t%s\n", s.Area, s.Reason)
	}
	return tw.Flush()
}

package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/FACorreiaa/loci-pubmap/internal/domain/statistics"
	"github.com/FACorreiaa/loci-pubmap/internal/types"
)

func newStatsCmd(a *app) *cobra.Command {
	var (
		minPubs int
		sortBy  string
	)
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print pub counts per district and area",
		RunE: func(cmd *cobra.Command, _ []string) error {
			by := statistics.SortBy(sortBy)
			if by != statistics.SortByName && by != statistics.SortByCount {
				return fmt.Errorf("%w: --sort-by must be name or count", types.ErrBadRequest)
			}
			svc, database, err := a.statisticsService()
			if err != nil {
				return err
			}
			defer database.Close()

			ctx, cancel := commandContext(cmd.Context(), time.Minute)
			defer cancel()
			report, err := svc.GetReport(ctx, statistics.ReportOptions{MinPubs: minPubs, SortBy: by})
			if err != nil {
				return err
			}
			return printReport(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().IntVar(&minPubs, "min-pubs", 0, "hide areas with fewer pubs")
	cmd.Flags().StringVar(&sortBy, "sort-by", string(statistics.SortByName), "area order: name or count")
	return cmd
}

func printReport(out io.Writer, r *statistics.Report) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, d := range r.Districts {
		marker := ""
		if !d.Canonical {
			marker = " (not in reference list)"
		}
		fmt.Fprintf(tw, "%s%s\t%s\n", d.District, marker, plural(d.Total, "pub"))
		for _, area := range d.Areas {
			fmt.Fprintf(tw, "  %s\t%d\n", area.Name, area.Count)
		}
	}
	fmt.Fprintf(tw, "\nTotal\t%s, %s, %s\n",
		plural(r.TotalDistricts, "district"), plural(r.TotalAreas, "area"), plural(r.TotalPubs, "pub"))
	if len(r.WithoutDistrict) > 0 {
		fmt.Fprintf(tw, "Without district\t%d\n", len(r.WithoutDistrict))
	}
	if len(r.WithoutArea) > 0 {
		fmt.Fprintf(tw, "Without area\t%d\n", len(r.WithoutArea))
	}
	if len(r.SmallAreas) > 0 {
		fmt.Fprintf(tw, "\nSmall areas\t\n")
		for _, s := range r.SmallAreas {
			fmt.Fprintf(tw, "  %s / %s\t%d\n", s.District, s.Area, s.Count)
		}
	}
	return tw.Flush()
}

package statistics

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/FACorreiaa/loci-pubmap/internal/types"
)

var _ Repository = (*RepositoryImpl)(nil)

type Repository interface {
	// FetchSummaries aggregates every pub by district, canonicalized against the
	// reference list. Visited counts are user specific and left at zero.
	FetchSummaries(ctx context.Context) ([]types.DistrictSummary, error)
}

// DBTX is the subset of pgxpool.Pool used here.
type DBTX interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type RepositoryImpl struct {
	logger *slog.Logger
	pgpool DBTX
	refs   *References
}

func NewRepository(logger *slog.Logger, pgpool DBTX, refs *References) *RepositoryImpl {
	return &RepositoryImpl{
		logger: logger,
		pgpool: pgpool,
		refs:   refs,
	}
}

const districtSummaryQuery = `
	SELECT
		btrim(district) AS district,
		COUNT(*)::int AS total,
		COUNT(*) FILTER (WHERE lat IS NOT NULL AND lon IS NOT NULL)::int AS located,
		AVG(lat) FILTER (WHERE lat IS NOT NULL AND lon IS NOT NULL) AS avg_lat,
		AVG(lon) FILTER (WHERE lat IS NOT NULL AND lon IS NOT NULL) AS avg_lon,
		MIN(lat) AS min_lat,
		MAX(lat) AS max_lat,
		MIN(lon) AS min_lon,
		MAX(lon) AS max_lon,
		COALESCE(array_agg(DISTINCT btrim(area)) FILTER (WHERE area IS NOT NULL AND btrim(area) <> ''), '{}') AS areas
	FROM pubs
	WHERE district IS NOT NULL AND btrim(district) <> ''
	GROUP BY btrim(district)
	ORDER BY btrim(district)`

type districtRow struct {
	name                           string
	total, located                 int
	avgLat, avgLon                 *float64
	minLat, maxLat, minLon, maxLon *float64
	areas                          []string
}

func (r *RepositoryImpl) FetchSummaries(ctx context.Context) ([]types.DistrictSummary, error) {
	ctx, span := otel.Tracer("StatisticsRepository").Start(ctx, "FetchSummaries")
	defer span.End()

	l := r.logger.With(slog.String("method", "FetchSummaries"))

	rows, err := r.pgpool.Query(ctx, districtSummaryQuery)
	if err != nil {
		l.ErrorContext(ctx, "Failed to query district summaries", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to query district summaries")
		return nil, fmt.Errorf("failed to query district summaries: %w", err)
	}
	defer rows.Close()

	var raw []districtRow
	for rows.Next() {
		var d districtRow
		if err := rows.Scan(&d.name, &d.total, &d.located, &d.avgLat, &d.avgLon,
			&d.minLat, &d.maxLat, &d.minLon, &d.maxLon, &d.areas); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Failed to scan district summary")
			return nil, fmt.Errorf("failed to scan district summary: %w", err)
		}
		raw = append(raw, d)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to iterate district summaries")
		return nil, fmt.Errorf("error iterating district summaries: %w", err)
	}

	summaries := r.foldSummaries(raw)
	l.InfoContext(ctx, "Fetched district summaries", slog.Int("count", len(summaries)))
	span.SetStatus(codes.Ok, "District summaries fetched")
	return summaries, nil
}

// foldSummaries merges rows whose names resolve to the same reference district,
// weighting centroids by the number of located pubs.
func (r *RepositoryImpl) foldSummaries(rows []districtRow) []types.DistrictSummary {
	type acc struct {
		summary        types.DistrictSummary
		sumLat, sumLon float64
		located        int
		areas          map[string]struct{}
	}
	accs := make(map[string]*acc)
	var order []string

	for _, row := range rows {
		key, display := r.refs.districtKey(row.name)
		a, ok := accs[key]
		if !ok {
			a = &acc{summary: types.DistrictSummary{Name: display}, areas: make(map[string]struct{})}
			accs[key] = a
			order = append(order, key)
		}
		a.summary.Total += row.total
		for _, area := range row.areas {
			a.areas[area] = struct{}{}
		}
		if row.located > 0 && row.avgLat != nil && row.avgLon != nil {
			a.sumLat += *row.avgLat * float64(row.located)
			a.sumLon += *row.avgLon * float64(row.located)
			a.located += row.located
		}
		if row.minLat != nil && row.maxLat != nil && row.minLon != nil && row.maxLon != nil {
			b := types.Bounds{North: *row.maxLat, South: *row.minLat, East: *row.maxLon, West: *row.minLon}
			if a.summary.Bounds == nil {
				a.summary.Bounds = &b
			} else {
				merged := types.BoundsFromOrb(a.summary.Bounds.Bound().Union(b.Bound()))
				a.summary.Bounds = &merged
			}
		}
	}

	out := make([]types.DistrictSummary, 0, len(order))
	for _, key := range order {
		a := accs[key]
		s := a.summary
		if a.located > 0 {
			s.Centroid = &types.Coordinate{
				Latitude:  a.sumLat / float64(a.located),
				Longitude: a.sumLon / float64(a.located),
			}
		}
		for area := range a.areas {
			s.Areas = append(s.Areas, area)
		}
		sort.Strings(s.Areas)
		out = append(out, r.refs.Canonicalize(s))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

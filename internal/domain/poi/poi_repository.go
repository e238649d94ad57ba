package poi

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/loci-pubmap/internal/types"
)

var _ Repository = (*RepositoryImpl)(nil)

type Repository interface {
	// FetchEntities returns the pubs matching the query. Bounds are inclusive on every edge.
	FetchEntities(ctx context.Context, query types.PubQuery) ([]types.PubPatch, error)
	// FindPubsByName returns pubs whose name equals name, ignoring case.
	FindPubsByName(ctx context.Context, name string) ([]types.PubPatch, error)
	// UpsertPubs inserts or replaces the given pubs.
	UpsertPubs(ctx context.Context, pubs []types.Pub) (int, error)
}

// DBTX is the subset of pgxpool.Pool used by the repositories.
type DBTX interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

type RepositoryImpl struct {
	logger *slog.Logger
	pgpool DBTX
}

func NewRepository(pgxpool DBTX, logger *slog.Logger) *RepositoryImpl {
	return &RepositoryImpl{
		logger: logger,
		pgpool: pgxpool,
	}
}

var pubColumns = []string{
	"id", "name", "lat", "lon", "area", "district", "features",
	"ownership", "founded", "points", "achievements",
}

func selectPubs() squirrel.SelectBuilder {
	return squirrel.Select(pubColumns...).From("pubs").PlaceholderFormat(squirrel.Dollar)
}

func buildFetchQuery(q types.PubQuery) (string, []any, error) {
	sb := selectPubs()
	if b := q.Bounds; b != nil {
		sb = sb.Where(squirrel.And{
			squirrel.GtOrEq{"lat": b.South},
			squirrel.LtOrEq{"lat": b.North},
			squirrel.GtOrEq{"lon": b.West},
			squirrel.LtOrEq{"lon": b.East},
		})
	}
	if len(q.Districts) > 0 {
		sb = sb.Where(squirrel.Eq{"district": q.Districts})
	}
	sb = sb.OrderBy("id")
	if q.Limit > 0 {
		sb = sb.Limit(q.Limit)
	}
	return sb.ToSql()
}

func (r *RepositoryImpl) FetchEntities(ctx context.Context, query types.PubQuery) ([]types.PubPatch, error) {
	attrs := []attribute.KeyValue{attribute.Int("districts.count", len(query.Districts))}
	if b := query.Bounds; b != nil {
		attrs = append(attrs,
			attribute.Float64("bounds.north", b.North),
			attribute.Float64("bounds.south", b.South),
			attribute.Float64("bounds.east", b.East),
			attribute.Float64("bounds.west", b.West),
		)
	}
	ctx, span := otel.Tracer("PubRepository").Start(ctx, "FetchEntities", trace.WithAttributes(attrs...))
	defer span.End()

	l := r.logger.With(slog.String("method", "FetchEntities"))

	sql, args, err := buildFetchQuery(query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to build query")
		return nil, fmt.Errorf("failed to build pub query: %w", err)
	}

	pubs, err := r.queryPubs(ctx, sql, args...)
	if err != nil {
		l.ErrorContext(ctx, "Failed to fetch pubs", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to fetch pubs")
		return nil, err
	}

	l.DebugContext(ctx, "Fetched pubs", slog.Int("count", len(pubs)))
	span.SetAttributes(attribute.Int("results.count", len(pubs)))
	span.SetStatus(codes.Ok, "Pubs fetched")
	return pubs, nil
}

func (r *RepositoryImpl) FindPubsByName(ctx context.Context, name string) ([]types.PubPatch, error) {
	ctx, span := otel.Tracer("PubRepository").Start(ctx, "FindPubsByName", trace.WithAttributes(
		attribute.String("pub.name", name),
	))
	defer span.End()

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: empty name", types.ErrBadRequest)
	}

	sql, args, err := selectPubs().
		Where(squirrel.Expr("lower(name) = lower(?)", name)).
		OrderBy("id").
		ToSql()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to build query")
		return nil, fmt.Errorf("failed to build name query: %w", err)
	}

	pubs, err := r.queryPubs(ctx, sql, args...)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to find pubs by name", slog.String("name", name), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to find pubs")
		return nil, err
	}
	span.SetStatus(codes.Ok, "Pubs found")
	return pubs, nil
}

func (r *RepositoryImpl) UpsertPubs(ctx context.Context, pubs []types.Pub) (int, error) {
	ctx, span := otel.Tracer("PubRepository").Start(ctx, "UpsertPubs", trace.WithAttributes(
		attribute.Int("pubs.count", len(pubs)),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "UpsertPubs"))

	written := 0
	for _, p := range pubs {
		if strings.TrimSpace(p.ID) == "" {
			l.WarnContext(ctx, "Skipping pub without id", slog.String("name", p.Name))
			continue
		}
		sql, args, err := squirrel.Insert("pubs").
			Columns(pubColumns...).
			Values(p.ID, p.Name, nullableCoordinate(p.Location.Latitude, p.Location), nullableCoordinate(p.Location.Longitude, p.Location),
				nullableString(p.Area), nullableString(p.District), p.Features, nullableString(p.Ownership),
				p.FoundedYear, p.Points, p.Achievements).
			Suffix(`ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name, lat = EXCLUDED.lat, lon = EXCLUDED.lon,
				area = EXCLUDED.area, district = EXCLUDED.district, features = EXCLUDED.features,
				ownership = EXCLUDED.ownership, founded = EXCLUDED.founded,
				points = EXCLUDED.points, achievements = EXCLUDED.achievements`).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Failed to build upsert")
			return written, fmt.Errorf("failed to build upsert for %s: %w", p.ID, err)
		}
		if _, err := r.pgpool.Exec(ctx, sql, args...); err != nil {
			l.ErrorContext(ctx, "Failed to upsert pub", slog.String("id", p.ID), slog.Any("error", err))
			span.RecordError(err)
			span.SetStatus(codes.Error, "Failed to upsert pub")
			return written, fmt.Errorf("failed to upsert pub %s: %w", p.ID, err)
		}
		written++
	}

	span.SetStatus(codes.Ok, "Pubs upserted")
	return written, nil
}

func (r *RepositoryImpl) queryPubs(ctx context.Context, sql string, args ...any) ([]types.PubPatch, error) {
	rows, err := r.pgpool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query pubs: %w", err)
	}
	defer rows.Close()

	var pubs []types.PubPatch
	for rows.Next() {
		p, err := scanPubPatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pub row: %w", err)
		}
		pubs = append(pubs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pub rows: %w", err)
	}
	return pubs, nil
}

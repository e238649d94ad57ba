package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	a "github.com/petar-dambovaliev/aho-corasick"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/loci-pubmap/internal/domain/geocode"
	"github.com/FACorreiaa/loci-pubmap/internal/domain/statistics"
	"github.com/FACorreiaa/loci-pubmap/internal/types"
)

type Kind string

const (
	KindArea  Kind = "area"
	KindPub   Kind = "pub"
	KindPlace Kind = "place"
)

// Span of the camera target for each kind of result.
const (
	AreaDelta  = 0.03
	PubDelta   = 0.01
	PlaceDelta = 0.05
)

type Result struct {
	Kind   Kind         `json:"kind"`
	Name   string       `json:"name"`
	Target types.Region `json:"target"`
	Pub    *types.Pub   `json:"pub,omitempty"`
}

// PubFinder looks a pub up by its exact name.
type PubFinder interface {
	FindByName(ctx context.Context, name string) (*types.Pub, error)
}

type Searcher struct {
	pubs     PubFinder
	geocoder geocode.Geocoder
	logger   *slog.Logger
}

// NewSearcher builds a searcher. A nil geocoder disables the place fallback.
func NewSearcher(pubs PubFinder, geocoder geocode.Geocoder, logger *slog.Logger) *Searcher {
	return &Searcher{pubs: pubs, geocoder: geocoder, logger: logger}
}

func regionAt(c types.Coordinate, delta float64) types.Region {
	return types.Region{Latitude: c.Latitude, Longitude: c.Longitude, LatitudeDelta: delta, LongitudeDelta: delta}
}

// Search resolves free text to a camera target. Known areas win over pub names, which
// win over the geocoder. Geocoding failures surface as ErrNotFound.
func (s *Searcher) Search(ctx context.Context, query string, areas map[string]types.AreaStats) (*Result, error) {
	ctx, span := otel.Tracer("Searcher").Start(ctx, "Search", trace.WithAttributes(
		attribute.String("query", query),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "Search"), slog.String("query", query))

	query = strings.TrimSpace(query)
	if query == "" {
		span.SetStatus(codes.Error, "Empty query")
		return nil, fmt.Errorf("%w: empty search query", types.ErrBadRequest)
	}

	if area, ok := matchArea(query, areas); ok {
		span.SetAttributes(attribute.String("result.kind", string(KindArea)))
		span.SetStatus(codes.Ok, "Matched area")
		return &Result{Kind: KindArea, Name: area.Name, Target: regionAt(*area.Centroid, AreaDelta)}, nil
	}

	if s.pubs != nil {
		pub, err := s.pubs.FindByName(ctx, query)
		switch {
		case err == nil && pub.Location.Valid():
			span.SetAttributes(attribute.String("result.kind", string(KindPub)))
			span.SetStatus(codes.Ok, "Matched pub")
			return &Result{Kind: KindPub, Name: pub.Name, Target: regionAt(pub.Location, PubDelta), Pub: pub}, nil
		case err != nil && !errors.Is(err, types.ErrNotFound):
			l.WarnContext(ctx, "Pub lookup failed, falling back to geocoding", slog.Any("error", err))
		}
	}

	if s.geocoder != nil {
		coord, err := s.geocoder.Geocode(ctx, query)
		if err == nil {
			span.SetAttributes(attribute.String("result.kind", string(KindPlace)))
			span.SetStatus(codes.Ok, "Geocoded")
			return &Result{Kind: KindPlace, Name: query, Target: regionAt(coord, PlaceDelta)}, nil
		}
		l.InfoContext(ctx, "Geocoding fallback found nothing", slog.Any("error", err))
	}

	span.SetStatus(codes.Ok, "No match")
	return nil, fmt.Errorf("%w: nothing matches %q", types.ErrNotFound, query)
}

// matchArea tries the exact area key first, then the longest area name appearing as
// whole words inside the query.
func matchArea(query string, areas map[string]types.AreaStats) (types.AreaStats, bool) {
	if stats, ok := areas[statistics.AreaKey(query)]; ok && stats.Centroid != nil {
		return stats, true
	}

	byName := make(map[string]types.AreaStats, len(areas))
	names := make([]string, 0, len(areas))
	for key, stats := range areas {
		if stats.Centroid == nil {
			continue
		}
		byName[key] = stats
		names = append(names, key)
	}
	if len(names) == 0 {
		return types.AreaStats{}, false
	}

	builder := a.NewAhoCorasickBuilder(a.Opts{
		AsciiCaseInsensitive: true,
		MatchOnlyWholeWords:  true,
		MatchKind:            a.LeftMostLongestMatch,
	})
	matcher := builder.Build(names)

	message := strings.ToLower(query)
	var best types.AreaStats
	bestLen := 0
	for _, match := range matcher.FindAll(message) {
		word := message[match.Start():match.End()]
		stats, ok := byName[word]
		if !ok {
			continue
		}
		if n := match.End() - match.Start(); n > bestLen {
			best, bestLen = stats, n
		}
	}
	return best, bestLen > 0
}

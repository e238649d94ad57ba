package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/FACorreiaa/loci-pubmap/internal/types"
	"github.com/FACorreiaa/loci-pubmap/pkg/config"
	"github.com/FACorreiaa/loci-pubmap/pkg/observability"
)

var _ Geocoder = (*NominatimClient)(nil)

// Geocoder resolves a free-text place to its best coordinate.
type Geocoder interface {
	Geocode(ctx context.Context, query string) (types.Coordinate, error)
}

// nominatimPlace mirrors the part of the search payload that is used.
type nominatimPlace struct {
	DisplayName string `json:"display_name"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
}

// NominatimClient queries an OSM Nominatim server. Requests are throttled to the
// server usage policy and answers are cached per normalized query.
type NominatimClient struct {
	baseURL   string
	userAgent string
	http      *http.Client
	limiter   *rate.Limiter
	cache     *cache.Cache
	logger    *slog.Logger
}

func NewNominatimClient(cfg config.GeocodingConfig, logger *slog.Logger) *NominatimClient {
	perSecond := cfg.RatePerSecond
	if perSecond <= 0 {
		perSecond = 1
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &NominatimClient{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		http:      &http.Client{Timeout: timeout},
		limiter:   rate.NewLimiter(rate.Limit(perSecond), 1),
		cache:     cache.New(time.Hour, 2*time.Hour),
		logger:    logger,
	}
}

func (c *NominatimClient) Geocode(ctx context.Context, query string) (types.Coordinate, error) {
	ctx, span := otel.Tracer("Geocoder").Start(ctx, "Geocode", trace.WithAttributes(
		attribute.String("query", query),
	))
	defer span.End()

	l := c.logger.With(slog.String("method", "Geocode"), slog.String("query", query))

	key := strings.ToLower(strings.TrimSpace(query))
	if key == "" {
		return types.Coordinate{}, fmt.Errorf("%w: empty geocoding query", types.ErrBadRequest)
	}
	if cached, found := c.cache.Get(key); found {
		observability.GeocodeRequestsTotal.WithLabelValues("cached").Inc()
		span.SetStatus(codes.Ok, "Served from cache")
		return cached.(types.Coordinate), nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Rate limiter wait failed")
		return types.Coordinate{}, fmt.Errorf("geocoding rate limit: %w", err)
	}

	coord, err := c.search(ctx, key)
	if err != nil {
		observability.GeocodeRequestsTotal.WithLabelValues("error").Inc()
		l.WarnContext(ctx, "Geocoding failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Geocoding failed")
		return types.Coordinate{}, err
	}

	c.cache.Set(key, coord, cache.DefaultExpiration)
	observability.GeocodeRequestsTotal.WithLabelValues("ok").Inc()
	span.SetAttributes(
		attribute.Float64("result.latitude", coord.Latitude),
		attribute.Float64("result.longitude", coord.Longitude),
	)
	span.SetStatus(codes.Ok, "Geocoded")
	return coord, nil
}

func (c *NominatimClient) search(ctx context.Context, query string) (types.Coordinate, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "jsonv2")
	params.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return types.Coordinate{}, fmt.Errorf("failed to build geocoding request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return types.Coordinate{}, fmt.Errorf("geocoding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return types.Coordinate{}, fmt.Errorf("geocoding request returned status %d", resp.StatusCode)
	}

	var places []nominatimPlace
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		return types.Coordinate{}, fmt.Errorf("failed to decode geocoding response: %w", err)
	}
	if len(places) == 0 {
		return types.Coordinate{}, fmt.Errorf("%w: no geocoding result for %q", types.ErrNotFound, query)
	}

	lat, latErr := strconv.ParseFloat(places[0].Lat, 64)
	lon, lonErr := strconv.ParseFloat(places[0].Lon, 64)
	coord := types.Coordinate{Latitude: lat, Longitude: lon}
	if latErr != nil || lonErr != nil || !coord.Valid() {
		return types.Coordinate{}, fmt.Errorf("%w: invalid coordinates in geocoding result", types.ErrNotFound)
	}
	return coord, nil
}

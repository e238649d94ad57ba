package loader

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/loci-pubmap/internal/types"
	"github.com/FACorreiaa/loci-pubmap/pkg/observability"
)

// Fetcher is the pub source queried for each viewport.
type Fetcher interface {
	FetchEntities(ctx context.Context, query types.PubQuery) ([]types.PubPatch, error)
}

type Options struct {
	// Padding widens each region delta before fetching so small pans stay cached.
	Padding float64
	// MinSpan is the smallest padded span in degrees worth fetching.
	MinSpan      float64
	FirstDelay   time.Duration
	Delay        time.Duration
	FetchTimeout time.Duration
	// LoadedTTL expires loaded bounds. Zero keeps them for the loader lifetime.
	LoadedTTL time.Duration
	Clock     clockwork.Clock
}

func DefaultOptions() Options {
	return Options{
		Padding:      0.2,
		MinSpan:      0.0005,
		FirstDelay:   100 * time.Millisecond,
		Delay:        400 * time.Millisecond,
		FetchTimeout: 15 * time.Second,
		Clock:        clockwork.NewRealClock(),
	}
}

// Status is a point in time view of the loader.
type Status struct {
	InFlight   bool
	LastBounds *types.Bounds
	LastError  error
}

// Loader fetches the pubs of the visible region. Calls are debounced with the last one
// winning, at most one fetch runs at a time and bounds already loaded are never fetched
// again.
type Loader struct {
	fetcher  Fetcher
	onLoaded func([]types.PubPatch)
	logger   *slog.Logger
	opts     Options
	clock    clockwork.Clock
	loaded   *cache.Cache

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	alive      bool
	inFlight   bool
	fired      bool
	generation uint64
	pending    clockwork.Timer
	lastBounds *types.Bounds
	lastErr    error
}

func New(fetcher Fetcher, onLoaded func([]types.PubPatch), logger *slog.Logger, opts Options) *Loader {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	expiration, cleanup := cache.NoExpiration, time.Duration(0)
	if opts.LoadedTTL > 0 {
		expiration, cleanup = opts.LoadedTTL, 2*opts.LoadedTTL
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Loader{
		fetcher:  fetcher,
		onLoaded: onLoaded,
		logger:   logger,
		opts:     opts,
		clock:    opts.Clock,
		loaded:   cache.New(expiration, cleanup),
		ctx:      ctx,
		cancel:   cancel,
		alive:    true,
	}
}

// LoadForRegion schedules a fetch for the padded bounds of region. It never blocks on
// the fetch itself.
func (l *Loader) LoadForRegion(region types.Region) {
	bounds := types.PaddedBounds(region, l.opts.Padding)
	if bounds.LatSpan() < l.opts.MinSpan || bounds.LonSpan() < l.opts.MinSpan {
		observability.ViewportLoadSkippedTotal.WithLabelValues("span").Inc()
		return
	}
	key := bounds.CacheKey()
	if _, ok := l.loaded.Get(key); ok {
		observability.ViewportLoadSkippedTotal.WithLabelValues("cached").Inc()
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.alive {
		return
	}
	if l.inFlight {
		observability.ViewportLoadSkippedTotal.WithLabelValues("in_flight").Inc()
		return
	}
	if l.pending != nil {
		l.pending.Stop()
	}

	delay := l.opts.Delay
	if !l.fired {
		delay = l.opts.FirstDelay
	}
	l.generation++
	gen := l.generation
	l.pending = l.clock.AfterFunc(delay, func() { l.fire(gen, bounds, key) })
}

func (l *Loader) fire(gen uint64, bounds types.Bounds, key string) {
	l.mu.Lock()
	// a timer that lost the race with Stop or a newer schedule must not fetch
	if !l.alive || gen != l.generation || l.inFlight {
		l.mu.Unlock()
		return
	}
	l.pending = nil
	if _, ok := l.loaded.Get(key); ok {
		l.mu.Unlock()
		return
	}
	l.inFlight = true
	l.fired = true
	ctx := l.ctx
	l.mu.Unlock()

	go l.fetch(ctx, bounds, key)
}

func (l *Loader) fetch(ctx context.Context, bounds types.Bounds, key string) {
	ctx, cancel := context.WithTimeout(ctx, l.opts.FetchTimeout)
	defer cancel()

	ctx, span := otel.Tracer("ViewportLoader").Start(ctx, "FetchViewport", trace.WithAttributes(
		attribute.String("bounds.key", key),
	))
	defer span.End()

	log := l.logger.With(slog.String("method", "fetch"), slog.String("bounds", key))

	start := l.clock.Now()
	patches, err := l.fetcher.FetchEntities(ctx, types.PubQuery{Bounds: &bounds})
	observability.ViewportFetchDurationMs.Observe(float64(l.clock.Since(start).Milliseconds()))

	l.mu.Lock()
	l.inFlight = false
	if !l.alive {
		l.mu.Unlock()
		span.SetStatus(codes.Ok, "Loader closed, result dropped")
		return
	}
	if err != nil {
		l.lastErr = err
		l.mu.Unlock()

		log.ErrorContext(ctx, "Failed to load viewport pubs", slog.Any("error", err))
		observability.ViewportFetchTotal.WithLabelValues("error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to load viewport pubs")
		return
	}
	l.loaded.Set(key, struct{}{}, cache.DefaultExpiration)
	b := bounds
	l.lastBounds = &b
	l.lastErr = nil
	l.mu.Unlock()

	log.DebugContext(ctx, "Loaded viewport pubs", slog.Int("count", len(patches)))
	observability.ViewportFetchTotal.WithLabelValues("ok").Inc()
	span.SetAttributes(attribute.Int("results.count", len(patches)))
	span.SetStatus(codes.Ok, "Viewport loaded")

	if l.onLoaded != nil {
		l.onLoaded(patches)
	}
}

// IsLoaded reports whether the padded bounds of region were already fetched.
func (l *Loader) IsLoaded(region types.Region) bool {
	_, ok := l.loaded.Get(types.PaddedBounds(region, l.opts.Padding).CacheKey())
	return ok
}

// Invalidate forgets every loaded bounds so the next call fetches again.
func (l *Loader) Invalidate() {
	l.loaded.Flush()
}

func (l *Loader) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Status{InFlight: l.inFlight, LastBounds: l.lastBounds, LastError: l.lastErr}
}

// Close stops the pending timer, cancels a running fetch and drops any late result.
func (l *Loader) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.alive {
		return
	}
	l.alive = false
	if l.pending != nil {
		l.pending.Stop()
		l.pending = nil
	}
	l.cancel()
}

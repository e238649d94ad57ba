package mapview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/FACorreiaa/loci-pubmap/internal/domain/distance"
	"github.com/FACorreiaa/loci-pubmap/internal/domain/loader"
	"github.com/FACorreiaa/loci-pubmap/internal/domain/location"
	"github.com/FACorreiaa/loci-pubmap/internal/domain/lod"
	"github.com/FACorreiaa/loci-pubmap/internal/domain/markers"
	"github.com/FACorreiaa/loci-pubmap/internal/domain/navigation"
	"github.com/FACorreiaa/loci-pubmap/internal/domain/poi"
	"github.com/FACorreiaa/loci-pubmap/internal/domain/region"
	"github.com/FACorreiaa/loci-pubmap/internal/domain/search"
	"github.com/FACorreiaa/loci-pubmap/internal/domain/statistics"
	"github.com/FACorreiaa/loci-pubmap/internal/types"
	"github.com/FACorreiaa/loci-pubmap/pkg/config"
	"github.com/FACorreiaa/loci-pubmap/pkg/observability"
)

// Options tunes one engine.
type Options struct {
	Thresholds         lod.Thresholds
	RegionEpsilon      float64
	Loader             loader.Options
	NavigationSettle   time.Duration
	InitialLoadMaxWait time.Duration
	DistanceResetKm    float64
	Colors             markers.Interpolator
	Watch              location.WatchOptions
	Clock              clockwork.Clock
}

func DefaultOptions() Options {
	return Options{
		Thresholds:         lod.DefaultThresholds(),
		RegionEpsilon:      region.DefaultEpsilon,
		Loader:             loader.DefaultOptions(),
		NavigationSettle:   navigation.DefaultSettle,
		InitialLoadMaxWait: 2 * time.Second,
		DistanceResetKm:    distance.DefaultMoveThresholdKm,
		Colors:             markers.DefaultInterpolator(),
		Watch:              location.WatchOptions{MinDistanceMeters: 10, MinInterval: time.Second},
		Clock:              clockwork.NewRealClock(),
	}
}

// OptionsFromConfig maps the map section of the configuration onto engine options.
func OptionsFromConfig(cfg config.MapConfig) (Options, error) {
	opts := DefaultOptions()
	opts.Thresholds = lod.Thresholds{
		DistrictEnter: cfg.DistrictEnter,
		DistrictExit:  cfg.DistrictExit,
		AreaEnter:     cfg.AreaEnter,
		AreaExit:      cfg.AreaExit,
	}
	if err := opts.Thresholds.Validate(); err != nil {
		return Options{}, fmt.Errorf("invalid LOD thresholds: %w", err)
	}
	opts.RegionEpsilon = cfg.RegionEpsilon
	opts.Loader.Padding = cfg.BoundsPadding
	opts.Loader.MinSpan = cfg.MinSpan
	opts.Loader.FirstDelay = cfg.FirstLoadDelay
	opts.Loader.Delay = cfg.LoadDelay
	opts.Loader.FetchTimeout = cfg.FetchTimeout
	opts.Loader.LoadedTTL = cfg.LoadedBoundsTTL
	opts.NavigationSettle = cfg.NavigationSettle
	opts.InitialLoadMaxWait = cfg.InitialLoadMaxWait
	opts.DistanceResetKm = cfg.DistanceResetKm
	return opts, nil
}

// Searcher resolves free text to a camera target.
type Searcher interface {
	Search(ctx context.Context, query string, areas map[string]types.AreaStats) (*search.Result, error)
}

// Deps are the collaborators of one engine.
type Deps struct {
	Pubs     poi.Service
	Fetcher  loader.Fetcher
	Searcher Searcher
	// Districts are the catalogue wide summaries; visited counts are overlaid per user.
	Districts []types.DistrictSummary
	Refs      *statistics.References
	Logger    *slog.Logger
}

// View is one rendered frame of the map.
type View struct {
	Mode         types.LODMode           `json:"mode"`
	Region       *types.Region           `json:"region,omitempty"`
	CameraTarget *types.Region           `json:"camera_target,omitempty"`
	Revision     uint64                  `json:"revision"`
	Loading      bool                    `json:"loading"`
	Areas        []types.AreaStats       `json:"areas"`
	Districts    []types.DistrictSummary `json:"districts"`
	Markers      []markers.Marker        `json:"markers"`
	LastError    string                  `json:"last_error,omitempty"`
}

// Engine turns viewport, location and dataset changes into the current level of detail,
// statistics and markers. It holds no rendering state.
type Engine struct {
	logger     *slog.Logger
	clock      clockwork.Clock
	tracker    *region.Tracker
	selector   *lod.Selector
	loader     *loader.Loader
	pubs       poi.Service
	aggregator *statistics.Aggregator
	distances  *distance.Cache
	markers    *markers.Builder
	guard      *navigation.Guard
	searcher   Searcher
	stats      *StatsContext
	watch      location.WatchOptions

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	closed       bool
	user         *types.Coordinate
	target       *types.Region
	preDistricts []types.DistrictSummary

	initialOnce  sync.Once
	initialDone  chan struct{}
	initialTimer clockwork.Timer
}

func NewEngine(deps Deps, opts Options) *Engine {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	opts.Loader.Clock = opts.Clock

	ctx, cancel := context.WithCancel(context.Background())
	distances := distance.New(opts.DistanceResetKm, nil)
	e := &Engine{
		logger:       deps.Logger,
		clock:        opts.Clock,
		tracker:      region.NewTracker(opts.RegionEpsilon),
		selector:     lod.NewSelector(opts.Thresholds),
		pubs:         deps.Pubs,
		aggregator:   statistics.NewAggregator(deps.Refs),
		distances:    distances,
		markers:      markers.NewBuilder(opts.Colors, distances),
		searcher:     deps.Searcher,
		stats:        NewStatsContext(),
		watch:        opts.Watch,
		ctx:          ctx,
		cancel:       cancel,
		preDistricts: deps.Districts,
		initialDone:  make(chan struct{}),
	}
	e.loader = loader.New(deps.Fetcher, e.onLoaded, deps.Logger, opts.Loader)
	e.guard = navigation.NewGuard(opts.Clock, opts.NavigationSettle, e.onSettled, deps.Logger)
	e.mu.Lock()
	e.initialTimer = opts.Clock.AfterFunc(opts.InitialLoadMaxWait, func() {
		e.markInitialLoaded("max wait elapsed")
	})
	e.mu.Unlock()
	return e
}

func (e *Engine) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

func (e *Engine) onLoaded(patches []types.PubPatch) {
	if e.isClosed() {
		return
	}
	e.pubs.Merge(patches)
	e.markInitialLoaded("first load merged")
}

func (e *Engine) markInitialLoaded(reason string) {
	e.initialOnce.Do(func() {
		e.mu.Lock()
		timer := e.initialTimer
		e.mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		close(e.initialDone)
		e.logger.Debug("Initial load complete", slog.String("reason", reason))
	})
}

// OnRegionChange handles a viewport event reported by the client. Events during a
// programmatic move and jitter below the tracker epsilon are dropped; accepted reports
// whether the region was committed.
func (e *Engine) OnRegionChange(r types.Region) (mode types.LODMode, accepted bool, err error) {
	if err := r.Validate(); err != nil {
		return e.selector.Mode(), false, err
	}
	if e.isClosed() {
		return e.selector.Mode(), false, types.ErrClosed
	}
	if e.guard.Suppressed() {
		observability.NavigationSuppressedTotal.Inc()
		return e.selector.Mode(), false, nil
	}
	if !e.tracker.Commit(r) {
		return e.selector.Mode(), false, nil
	}
	return e.apply(r), true, nil
}

func (e *Engine) apply(r types.Region) types.LODMode {
	mode, changed := e.selector.Update(r.MaxDelta())
	if changed {
		observability.LODTransitionsTotal.WithLabelValues(string(mode)).Inc()
		e.logger.Debug("Level of detail changed", slog.String("mode", string(mode)))
	}
	e.loader.LoadForRegion(r)
	return mode
}

// Reload asks the loader again for the committed region, e.g. after a failed fetch.
// Bounds already loaded are still skipped.
func (e *Engine) Reload() error {
	if e.isClosed() {
		return types.ErrClosed
	}
	r, ok := e.tracker.Current()
	if !ok {
		return fmt.Errorf("%w: no region reported yet", types.ErrBadRequest)
	}
	e.loader.LoadForRegion(r)
	return nil
}

// NavigateTo moves the camera programmatically. The target is committed and loaded only
// once the move has settled.
func (e *Engine) NavigateTo(r types.Region) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if e.isClosed() {
		return types.ErrClosed
	}
	e.guard.Navigate(r, func(target types.Region) {
		e.mu.Lock()
		e.target = &target
		e.mu.Unlock()
	})
	return nil
}

func (e *Engine) onSettled(r types.Region) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.target = nil
	e.mu.Unlock()

	e.tracker.Commit(r)
	e.apply(r)
}

// Search resolves the query against the last rendered statistics and navigates to the
// result.
func (e *Engine) Search(ctx context.Context, query string) (*search.Result, error) {
	if e.searcher == nil {
		return nil, fmt.Errorf("%w: search is not available", types.ErrNotFound)
	}
	stats, ok := e.stats.Get()
	if !ok {
		pubs, revision := e.pubs.Dataset().Snapshot()
		stats.Areas, _ = e.aggregator.Compute(pubs, revision)
	}

	res, err := e.searcher.Search(ctx, query, stats.Areas)
	if err != nil {
		return nil, err
	}
	if err := e.NavigateTo(res.Target); err != nil {
		return nil, err
	}
	return res, nil
}

// SetUserLocation records the user position used for distances and sort order.
func (e *Engine) SetUserLocation(c types.Coordinate) error {
	if !c.Valid() {
		return fmt.Errorf("%w: invalid user location", types.ErrBadRequest)
	}
	e.mu.Lock()
	e.user = &c
	e.mu.Unlock()
	e.distances.Observe(c)
	return nil
}

// FollowLocation relays provider updates into SetUserLocation until the engine closes.
func (e *Engine) FollowLocation(provider location.Provider) {
	go func() {
		err := location.Follow(e.ctx, provider, e.watch, func(u location.Update) {
			if err := e.SetUserLocation(u.Coordinate); err != nil {
				e.logger.Debug("Ignoring location update", slog.Any("error", err))
			}
		}, e.logger)
		if err != nil && !errors.Is(err, context.Canceled) {
			e.logger.Info("Location updates stopped", slog.Any("error", err))
		}
	}()
}

func (e *Engine) Toggle(ctx context.Context, pubID string, flag poi.Flag) (bool, <-chan error, error) {
	if e.isClosed() {
		return false, nil, types.ErrClosed
	}
	return e.pubs.Toggle(ctx, pubID, flag)
}

// View renders the current frame. Statistics are memoized on the dataset revision.
func (e *Engine) View() View {
	pubs, revision := e.pubs.Dataset().Snapshot()
	areas, derived := e.aggregator.Compute(pubs, revision)

	e.mu.Lock()
	districts := statistics.MergeDistrictSummaries(e.preDistricts, derived)
	var user *types.Coordinate
	if e.user != nil {
		u := *e.user
		user = &u
	}
	var target *types.Region
	if e.target != nil {
		t := *e.target
		target = &t
	}
	e.mu.Unlock()

	v := View{
		Mode:         e.selector.Mode(),
		CameraTarget: target,
		Revision:     revision,
		Loading:      !e.InitialLoaded(),
		Districts:    districts,
		Areas:        sortedAreas(areas),
	}

	var bounds *types.Bounds
	if r, ok := e.tracker.Current(); ok {
		v.Region = &r
		b := types.PaddedBounds(r, 0)
		bounds = &b
	}
	if st := e.loader.Status(); st.LastError != nil {
		v.LastError = st.LastError.Error()
	}

	v.Markers = e.markers.Build(markers.Input{
		Mode:      v.Mode,
		Bounds:    bounds,
		Areas:     areas,
		Districts: districts,
		Pubs:      pubs,
		User:      user,
	})
	e.stats.Set(Stats{Revision: revision, Areas: areas, Districts: districts})
	return v
}

func sortedAreas(areas map[string]types.AreaStats) []types.AreaStats {
	out := make([]types.AreaStats, 0, len(areas))
	for _, a := range areas {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func (e *Engine) InitialLoaded() bool {
	select {
	case <-e.initialDone:
		return true
	default:
		return false
	}
}

// WaitInitialLoad blocks until the first load merged or the maximum wait elapsed.
func (e *Engine) WaitInitialLoad(ctx context.Context) error {
	select {
	case <-e.initialDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns the per session statistics context.
func (e *Engine) Stats() *StatsContext {
	return e.stats
}

// Close stops timers, the loader and location updates. Late callbacks are dropped.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	timer := e.initialTimer
	e.mu.Unlock()

	if timer != nil {
		timer.Stop()
	}
	e.guard.Close()
	e.loader.Close()
	e.cancel()
	e.stats.Clear()
}

package navigation

import (
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/FACorreiaa/loci-pubmap/internal/types"
)

// DefaultSettle outlasts the 1000 ms camera animation.
const DefaultSettle = 1050 * time.Millisecond

// Guard wraps programmatic camera moves. While a move is settling, viewport events are
// to be ignored; once it settles the load callback runs for the target region.
type Guard struct {
	clock  clockwork.Clock
	settle time.Duration
	load   func(types.Region)
	logger *slog.Logger

	mu         sync.Mutex
	active     bool
	closed     bool
	generation uint64
	pending    clockwork.Timer
}

func NewGuard(clock clockwork.Clock, settle time.Duration, load func(types.Region), logger *slog.Logger) *Guard {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if settle <= 0 {
		settle = DefaultSettle
	}
	return &Guard{clock: clock, settle: settle, load: load, logger: logger}
}

// Navigate raises the guard, performs move and schedules the load for after the settle
// delay. A newer navigation replaces the pending one.
func (g *Guard) Navigate(region types.Region, move func(types.Region)) {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	if g.pending != nil {
		g.pending.Stop()
		g.pending = nil
	}
	g.active = true
	g.generation++
	gen := g.generation
	g.mu.Unlock()

	if move != nil {
		move(region)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed || gen != g.generation {
		return
	}
	g.pending = g.clock.AfterFunc(g.settle, func() { g.settled(gen, region) })
	g.logger.Debug("Navigation started",
		slog.Float64("latitude", region.Latitude),
		slog.Float64("longitude", region.Longitude))
}

func (g *Guard) settled(gen uint64, region types.Region) {
	g.mu.Lock()
	if g.closed || gen != g.generation {
		g.mu.Unlock()
		return
	}
	g.active = false
	g.pending = nil
	g.mu.Unlock()

	if g.load != nil {
		g.load(region)
	}
}

// Suppressed reports whether a programmatic move is still settling.
func (g *Guard) Suppressed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active
}

// Cancel lowers the guard without loading.
func (g *Guard) Cancel() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancelLocked()
}

func (g *Guard) cancelLocked() {
	if g.pending != nil {
		g.pending.Stop()
		g.pending = nil
	}
	g.generation++
	g.active = false
}

func (g *Guard) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancelLocked()
	g.closed = true
}

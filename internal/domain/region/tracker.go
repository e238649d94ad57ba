package region

import (
	"math"
	"sync"

	"github.com/FACorreiaa/loci-pubmap/internal/types"
)

// DefaultEpsilon is the smallest change in degrees on any region component that counts
// as a real camera move. Smaller differences are gesture jitter.
const DefaultEpsilon = 3.5e-4

// Tracker holds the last committed viewport.
type Tracker struct {
	mu      sync.RWMutex
	epsilon float64
	current *types.Region
}

func NewTracker(epsilon float64) *Tracker {
	if epsilon <= 0 {
		epsilon = DefaultEpsilon
	}
	return &Tracker{epsilon: epsilon}
}

// Commit stores region unless every component is within epsilon of the current one.
// It reports whether the region was accepted.
func (t *Tracker) Commit(r types.Region) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current != nil && !t.differs(*t.current, r) {
		return false
	}
	next := r
	t.current = &next
	return true
}

// Current returns the last committed region.
func (t *Tracker) Current() (types.Region, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.current == nil {
		return types.Region{}, false
	}
	return *t.current, true
}

func (t *Tracker) Reset() {
	t.mu.Lock()
	t.current = nil
	t.mu.Unlock()
}

func (t *Tracker) differs(a, b types.Region) bool {
	return math.Abs(a.Latitude-b.Latitude) >= t.epsilon ||
		math.Abs(a.Longitude-b.Longitude) >= t.epsilon ||
		math.Abs(a.LatitudeDelta-b.LatitudeDelta) >= t.epsilon ||
		math.Abs(a.LongitudeDelta-b.LongitudeDelta) >= t.epsilon
}

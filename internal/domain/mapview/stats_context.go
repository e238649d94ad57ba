package mapview

import (
	"sync"

	"github.com/FACorreiaa/loci-pubmap/internal/types"
)

// Stats is the last rendered statistics of a session.
type Stats struct {
	Revision  uint64
	Areas     map[string]types.AreaStats
	Districts []types.DistrictSummary
}

// StatsContext holds the last known statistics of one session. It is replaced on every
// render and cleared on logout.
type StatsContext struct {
	mu      sync.RWMutex
	current *Stats
}

func NewStatsContext() *StatsContext {
	return &StatsContext{}
}

func (c *StatsContext) Set(s Stats) {
	c.mu.Lock()
	c.current = &s
	c.mu.Unlock()
}

func (c *StatsContext) Get() (Stats, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current == nil {
		return Stats{}, false
	}
	return *c.current, true
}

func (c *StatsContext) Clear() {
	c.mu.Lock()
	c.current = nil
	c.mu.Unlock()
}

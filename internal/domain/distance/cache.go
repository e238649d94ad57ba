package distance

import (
	"sync"

	"github.com/patrickmn/go-cache"

	"github.com/FACorreiaa/loci-pubmap/internal/geo"
	"github.com/FACorreiaa/loci-pubmap/internal/types"
)

// DefaultMoveThresholdKm is how far the user must move before cached distances are
// dropped.
const DefaultMoveThresholdKm = 0.05

// Func computes the distance in kilometers between two coordinates.
type Func func(a, b types.Coordinate) float64

// Cache memoizes the distance from the user to named buckets (areas, districts).
// Entries are computed once per key and kept until the user moves beyond the threshold
// or Clear is called.
type Cache struct {
	dist      Func
	threshold float64

	mu     sync.Mutex
	items  *cache.Cache
	anchor *types.Coordinate
}

// New builds a cache. A nil dist uses the haversine distance; a non positive threshold
// uses DefaultMoveThresholdKm.
func New(thresholdKm float64, dist Func) *Cache {
	if dist == nil {
		dist = geo.DistanceKm
	}
	if thresholdKm <= 0 {
		thresholdKm = DefaultMoveThresholdKm
	}
	return &Cache{
		dist:      dist,
		threshold: thresholdKm,
		items:     cache.New(cache.NoExpiration, 0),
	}
}

// DistanceTo returns the distance from user to point, cached under key. ok is false when
// the user location is not known yet or the point is unusable.
func (c *Cache) DistanceTo(key string, point types.Coordinate, user *types.Coordinate) (float64, bool) {
	if user == nil || !user.Valid() || !point.Valid() {
		return 0, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.moveLocked(*user)
	if v, found := c.items.Get(key); found {
		return v.(float64), true
	}
	km := c.dist(*user, point)
	c.items.Set(key, km, cache.NoExpiration)
	return km, true
}

// Observe records a new user location and reports whether it invalidated the cache.
func (c *Cache) Observe(user types.Coordinate) bool {
	if !user.Valid() {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.moveLocked(user)
}

func (c *Cache) moveLocked(user types.Coordinate) bool {
	if c.anchor != nil && geo.DistanceKm(*c.anchor, user) <= c.threshold {
		return false
	}
	c.items.Flush()
	c.anchor = &user
	return true
}

func (c *Cache) Clear() {
	c.mu.Lock()
	c.items.Flush()
	c.anchor = nil
	c.mu.Unlock()
}

func (c *Cache) Len() int {
	return c.items.ItemCount()
}

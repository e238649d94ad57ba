package types

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// Coordinate is a WGS84 point.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid reports whether the coordinate is usable for geometry. The 0,0 pair is the
// placeholder written by imports that could not geocode a pub, so it is rejected too.
func (c Coordinate) Valid() bool {
	if math.IsNaN(c.Latitude) || math.IsNaN(c.Longitude) ||
		math.IsInf(c.Latitude, 0) || math.IsInf(c.Longitude, 0) {
		return false
	}
	if c.Latitude < -90 || c.Latitude > 90 || c.Longitude < -180 || c.Longitude > 180 {
		return false
	}
	return c.Latitude != 0 || c.Longitude != 0
}

// Point converts to an orb point (lon, lat order).
func (c Coordinate) Point() orb.Point {
	return orb.Point{c.Longitude, c.Latitude}
}

// Region is the visible map viewport: a center plus the span on each axis in degrees.
type Region struct {
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	LatitudeDelta  float64 `json:"latitude_delta"`
	LongitudeDelta float64 `json:"longitude_delta"`
}

// MaxDelta is the larger of the two spans. It drives level-of-detail selection.
func (r Region) MaxDelta() float64 {
	return math.Max(r.LatitudeDelta, r.LongitudeDelta)
}

func (r Region) Center() Coordinate {
	return Coordinate{Latitude: r.Latitude, Longitude: r.Longitude}
}

// Validate rejects regions that cannot be turned into bounds.
func (r Region) Validate() error {
	if !r.Center().Valid() {
		return fmt.Errorf("%w: center %f,%f", ErrInvalidRegion, r.Latitude, r.Longitude)
	}
	if !(r.LatitudeDelta > 0) || !(r.LongitudeDelta > 0) ||
		math.IsInf(r.LatitudeDelta, 0) || math.IsInf(r.LongitudeDelta, 0) {
		return fmt.Errorf("%w: deltas %f,%f", ErrInvalidRegion, r.LatitudeDelta, r.LongitudeDelta)
	}
	return nil
}

// Bounds is an axis aligned box. All edges are inclusive.
type Bounds struct {
	North float64 `json:"north"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	West  float64 `json:"west"`
}

// PaddedBounds expands each delta of the region by the pad fraction and returns the box
// centered on the region.
func PaddedBounds(r Region, pad float64) Bounds {
	latHalf := r.LatitudeDelta * (1 + pad) / 2
	lonHalf := r.LongitudeDelta * (1 + pad) / 2
	return Bounds{
		North: r.Latitude + latHalf,
		South: r.Latitude - latHalf,
		East:  r.Longitude + lonHalf,
		West:  r.Longitude - lonHalf,
	}
}

// BoundsFromOrb converts an orb bound back to Bounds.
func BoundsFromOrb(b orb.Bound) Bounds {
	return Bounds{North: b.Max.Lat(), South: b.Min.Lat(), East: b.Max.Lon(), West: b.Min.Lon()}
}

func (b Bounds) Bound() orb.Bound {
	return orb.Bound{Min: orb.Point{b.West, b.South}, Max: orb.Point{b.East, b.North}}
}

func (b Bounds) Contains(c Coordinate) bool {
	return b.Bound().Contains(c.Point())
}

// LatSpan and LonSpan are the box extents in degrees.
func (b Bounds) LatSpan() float64 { return b.North - b.South }
func (b Bounds) LonSpan() float64 { return b.East - b.West }

// CacheKey quantizes the bounds to four decimal places (about 11 m).
func (b Bounds) CacheKey() string {
	return fmt.Sprintf("%.4f:%.4f:%.4f:%.4f", b.North, b.South, b.East, b.West)
}

package distance

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/loci-pubmap/internal/geo"
	"github.com/FACorreiaa/loci-pubmap/internal/types"
)

type countingDistance struct {
	calls atomic.Int32
}

func (c *countingDistance) fn(a, b types.Coordinate) float64 {
	c.calls.Add(1)
	return geo.DistanceKm(a, b)
}

var (
	soho      = types.Coordinate{Latitude: 51.5136, Longitude: -0.1365}
	greenwich = types.Coordinate{Latitude: 51.4826, Longitude: -0.0077}
	user      = types.Coordinate{Latitude: 51.5074, Longitude: -0.1278}
)

func TestCache_DistanceTo(t *testing.T) {
	t.Run("unknown location", func(t *testing.T) {
		c := New(0, nil)
		_, ok := c.DistanceTo("soho", soho, nil)
		assert.False(t, ok)
		assert.Equal(t, 0, c.Len())
	})

	t.Run("memoized per key", func(t *testing.T) {
		stub := &countingDistance{}
		c := New(0, stub.fn)

		first, ok := c.DistanceTo("soho", soho, &user)
		require.True(t, ok)
		second, ok := c.DistanceTo("soho", soho, &user)
		require.True(t, ok)

		assert.Equal(t, first, second)
		assert.Equal(t, int32(1), stub.calls.Load())

		_, ok = c.DistanceTo("greenwich", greenwich, &user)
		require.True(t, ok)
		assert.Equal(t, int32(2), stub.calls.Load())
	})

	t.Run("small moves keep cached values", func(t *testing.T) {
		stub := &countingDistance{}
		c := New(0.05, stub.fn)

		c.DistanceTo("soho", soho, &user)
		nudged := types.Coordinate{Latitude: user.Latitude + 0.0001, Longitude: user.Longitude}
		c.DistanceTo("soho", soho, &nudged)
		assert.Equal(t, int32(1), stub.calls.Load())
	})

	t.Run("moving beyond the threshold recomputes", func(t *testing.T) {
		stub := &countingDistance{}
		c := New(0.05, stub.fn)

		before, _ := c.DistanceTo("soho", soho, &user)
		moved := types.Coordinate{Latitude: user.Latitude + 0.01, Longitude: user.Longitude}
		after, ok := c.DistanceTo("soho", soho, &moved)
		require.True(t, ok)

		assert.Equal(t, int32(2), stub.calls.Load())
		assert.NotEqual(t, before, after)
	})

	t.Run("invalid point is not cached", func(t *testing.T) {
		c := New(0, nil)
		_, ok := c.DistanceTo("nowhere", types.Coordinate{}, &user)
		assert.False(t, ok)
		assert.Equal(t, 0, c.Len())
	})
}

func TestCache_ObserveAndClear(t *testing.T) {
	stub := &countingDistance{}
	c := New(0.05, stub.fn)

	assert.True(t, c.Observe(user), "first fix")
	c.DistanceTo("soho", soho, &user)
	assert.False(t, c.Observe(user))
	assert.Equal(t, 1, c.Len())

	assert.True(t, c.Observe(greenwich))
	assert.Equal(t, 0, c.Len())

	c.DistanceTo("soho", soho, &greenwich)
	c.Clear()
	assert.Equal(t, 0, c.Len())
	c.DistanceTo("soho", soho, &greenwich)
	assert.Equal(t, int32(3), stub.calls.Load())
}

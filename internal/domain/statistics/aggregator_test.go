package statistics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/loci-pubmap/internal/types"
)

func pub(id, area, district string, lat, lon float64, visited bool) types.Pub {
	return types.Pub{
		ID:       id,
		Name:     "Pub " + id,
		Area:     area,
		District: district,
		Location: types.Coordinate{Latitude: lat, Longitude: lon},
		Visited:  visited,
	}
}

func sohoPubs() []types.Pub {
	return []types.Pub{
		pub("p1", "Soho", "Westminster", 51.5131, -0.1316, true),
		pub("p2", "Soho", "Westminster", 51.5127, -0.1317, true),
		pub("p3", "Soho", "Westminster", 51.5140, -0.1340, false),
	}
}

func TestCompletionPercent(t *testing.T) {
	tests := []struct {
		visited, total, want int
	}{
		{0, 0, 0},
		{0, 5, 0},
		{2, 3, 67},
		{1, 3, 33},
		{1, 8, 13},
		{1, 200, 1},
		{5, 5, 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CompletionPercent(tt.visited, tt.total), "%d/%d", tt.visited, tt.total)
	}
}

func TestComputeAreaStats(t *testing.T) {
	t.Run("soho completion", func(t *testing.T) {
		stats := ComputeAreaStats(sohoPubs())
		require.Contains(t, stats, "soho")

		soho := stats["soho"]
		assert.Equal(t, "Soho", soho.Name)
		assert.Equal(t, "Westminster", soho.District)
		assert.Equal(t, 3, soho.Total)
		assert.Equal(t, 2, soho.Visited)
		assert.Equal(t, 67, soho.Completion)
		require.NotNil(t, soho.Centroid)
		assert.InDelta(t, (51.5131+51.5127+51.5140)/3, soho.Centroid.Latitude, 1e-9)
	})

	t.Run("keys are trimmed and case insensitive", func(t *testing.T) {
		stats := ComputeAreaStats([]types.Pub{
			pub("p1", " Soho", "", 51.51, -0.13, false),
			pub("p2", "SOHO ", "Westminster", 51.51, -0.13, true),
			pub("p3", "soho", "Camden", 51.51, -0.13, false),
		})
		require.Len(t, stats, 1)
		assert.Equal(t, "Soho", stats["soho"].Name)
		assert.Equal(t, "Westminster", stats["soho"].District, "first non-empty district wins")
		assert.Equal(t, 3, stats["soho"].Total)
	})

	t.Run("totals sum to pubs with an area and never NaN", func(t *testing.T) {
		pubs := []types.Pub{
			pub("p1", "Soho", "Westminster", 51.51, -0.13, true),
			pub("p2", "", "Westminster", 51.51, -0.13, true),
			pub("p3", "   ", "Westminster", 51.51, -0.13, false),
			pub("p4", "Angel", "Islington", 0, 0, false),
			pub("p5", "Angel", "Islington", 51.53, -0.10, true),
		}
		stats := ComputeAreaStats(pubs)

		sum := 0
		for _, s := range stats {
			sum += s.Total
			assert.False(t, math.IsNaN(float64(s.Completion)))
		}
		assert.Equal(t, 3, sum)

		angel := stats["angel"]
		require.NotNil(t, angel.Centroid)
		assert.InDelta(t, 51.53, angel.Centroid.Latitude, 1e-9, "invalid coordinates are not averaged")
	})

	t.Run("area without coordinates has no centroid", func(t *testing.T) {
		stats := ComputeAreaStats([]types.Pub{pub("p1", "Nowhere", "", 0, 0, false)})
		assert.Nil(t, stats["nowhere"].Centroid)
		assert.Equal(t, 0, stats["nowhere"].Completion)
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Empty(t, ComputeAreaStats(nil))
	})
}

func TestComputeDistrictSummaries(t *testing.T) {
	refs, err := DefaultReferences()
	require.NoError(t, err)

	pubs := []types.Pub{
		pub("p1", "Soho", "Westminster", 51.5131, -0.1316, true),
		pub("p2", "Mayfair", "City of Westminster", 51.5100, -0.1470, false),
		pub("p3", "Angel", "Islington", 51.5320, -0.1060, false),
		pub("p4", "Nowhere", "Atlantis", 51.6000, -0.2000, true),
		pub("p5", "Lost", "", 51.6000, -0.2000, true),
	}

	t.Run("with references", func(t *testing.T) {
		summaries := ComputeDistrictSummaries(pubs, refs)
		require.Len(t, summaries, 3)

		byName := map[string]types.DistrictSummary{}
		for _, s := range summaries {
			byName[s.Name] = s
		}

		wm := byName["Westminster"]
		assert.True(t, wm.Canonical)
		assert.Equal(t, 2, wm.Total)
		assert.Equal(t, 1, wm.Visited)
		assert.Equal(t, 50, wm.Completion)
		assert.Equal(t, []string{"Mayfair", "Soho"}, wm.Areas)
		require.NotNil(t, wm.Bounds)
		assert.Equal(t, 51.5131, wm.Bounds.North)
		assert.Equal(t, 51.5100, wm.Bounds.South)
		assert.Equal(t, -0.1316, wm.Bounds.East)
		assert.Equal(t, -0.1470, wm.Bounds.West)
		require.NotNil(t, wm.Centroid)
		assert.Equal(t, 51.4973, wm.Centroid.Latitude, "reference centroid")

		atl := byName["Atlantis"]
		assert.False(t, atl.Canonical)
		require.NotNil(t, atl.Centroid)
		assert.Equal(t, 51.6, atl.Centroid.Latitude)
		assert.Equal(t, 100, atl.Completion)
	})

	t.Run("without references names are grouped case insensitively", func(t *testing.T) {
		summaries := ComputeDistrictSummaries([]types.Pub{
			pub("p1", "Soho", "Westminster", 51.51, -0.13, false),
			pub("p2", "Soho", "westminster ", 51.51, -0.13, false),
		}, nil)
		require.Len(t, summaries, 1)
		assert.Equal(t, "Westminster", summaries[0].Name)
		assert.Equal(t, 2, summaries[0].Total)
		assert.False(t, summaries[0].Canonical)
	})
}

func TestMergeDistrictSummaries(t *testing.T) {
	pre := []types.DistrictSummary{
		{Name: "Westminster", Canonical: true, Total: 120},
		{Name: "Camden", Canonical: true, Total: 80},
	}
	derived := []types.DistrictSummary{
		{Name: "Westminster", Total: 3, Visited: 2},
		{Name: "Atlantis", Total: 1, Visited: 1, Completion: 100},
	}

	merged := MergeDistrictSummaries(pre, derived)
	require.Len(t, merged, 3)
	assert.Equal(t, "Atlantis", merged[0].Name)
	assert.Equal(t, "Camden", merged[1].Name)
	assert.Equal(t, 0, merged[1].Visited)
	assert.Equal(t, "Westminster", merged[2].Name)
	assert.Equal(t, 120, merged[2].Total)
	assert.Equal(t, 2, merged[2].Visited)
	assert.Equal(t, 2, merged[2].Completion)

	assert.Equal(t, derived, MergeDistrictSummaries(nil, derived))
}

func TestAggregator_Memoizes(t *testing.T) {
	a := NewAggregator(nil)
	pubs := sohoPubs()

	areas1, _ := a.Compute(pubs, 1)
	areas2, _ := a.Compute(pubs, 1)
	assert.Equal(t, 1, a.Computations())
	assert.Equal(t, areas1, areas2)

	pubs[2].Visited = true
	areas3, _ := a.Compute(pubs, 2)
	assert.Equal(t, 2, a.Computations())
	assert.Equal(t, 100, areas3["soho"].Completion)

	a.Reset()
	a.Compute(pubs, 2)
	assert.Equal(t, 3, a.Computations())
}

package statistics

import (
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/paulmach/orb"

	"github.com/FACorreiaa/loci-pubmap/internal/types"
)

// AreaKey is the case insensitive grouping key of an area name.
func AreaKey(area string) string {
	return strings.ToLower(strings.TrimSpace(area))
}

// CompletionPercent rounds half up and is 0 for an empty group.
func CompletionPercent(visited, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Floor(float64(visited)/float64(total)*100 + 0.5))
}

type areaAcc struct {
	stats  types.AreaStats
	sumLat float64
	sumLon float64
	valid  int
}

// ComputeAreaStats groups pubs by area in one pass. Pubs without an area are skipped.
// The district of an area is the first non-empty district seen for it.
func ComputeAreaStats(pubs []types.Pub) map[string]types.AreaStats {
	accs := make(map[string]*areaAcc)
	for _, p := range pubs {
		key := AreaKey(p.Area)
		if key == "" {
			continue
		}
		acc, ok := accs[key]
		if !ok {
			acc = &areaAcc{stats: types.AreaStats{Key: key, Name: strings.TrimSpace(p.Area)}}
			accs[key] = acc
		}
		acc.stats.Total++
		if p.Visited {
			acc.stats.Visited++
		}
		if acc.stats.District == "" {
			acc.stats.District = strings.TrimSpace(p.District)
		}
		if p.Location.Valid() {
			acc.sumLat += p.Location.Latitude
			acc.sumLon += p.Location.Longitude
			acc.valid++
		}
	}

	out := make(map[string]types.AreaStats, len(accs))
	for key, acc := range accs {
		s := acc.stats
		s.Completion = CompletionPercent(s.Visited, s.Total)
		if acc.valid > 0 {
			s.Centroid = &types.Coordinate{
				Latitude:  acc.sumLat / float64(acc.valid),
				Longitude: acc.sumLon / float64(acc.valid),
			}
		}
		out[key] = s
	}
	return out
}

type districtAcc struct {
	summary types.DistrictSummary
	sumLat  float64
	sumLon  float64
	valid   int
	bound   orb.Bound
	areas   map[string]string
}

// ComputeDistrictSummaries groups pubs by district, tracking a bounding box next to the
// centroid. With refs, spelling variants of a listed district are folded together and
// take the reference centroid.
func ComputeDistrictSummaries(pubs []types.Pub, refs *References) []types.DistrictSummary {
	accs := make(map[string]*districtAcc)
	for _, p := range pubs {
		if strings.TrimSpace(p.District) == "" {
			continue
		}
		key, display := refs.districtKey(p.District)
		acc, ok := accs[key]
		if !ok {
			acc = &districtAcc{summary: types.DistrictSummary{Name: display}, areas: make(map[string]string)}
			accs[key] = acc
		}
		acc.summary.Total++
		if p.Visited {
			acc.summary.Visited++
		}
		if k := AreaKey(p.Area); k != "" {
			if _, seen := acc.areas[k]; !seen {
				acc.areas[k] = strings.TrimSpace(p.Area)
			}
		}
		if p.Location.Valid() {
			pt := p.Location.Point()
			if acc.valid == 0 {
				acc.bound = orb.Bound{Min: pt, Max: pt}
			} else {
				acc.bound = acc.bound.Extend(pt)
			}
			acc.sumLat += p.Location.Latitude
			acc.sumLon += p.Location.Longitude
			acc.valid++
		}
	}

	out := make([]types.DistrictSummary, 0, len(accs))
	for _, acc := range accs {
		s := acc.summary
		s.Completion = CompletionPercent(s.Visited, s.Total)
		if acc.valid > 0 {
			b := types.BoundsFromOrb(acc.bound)
			s.Bounds = &b
			s.Centroid = &types.Coordinate{
				Latitude:  acc.sumLat / float64(acc.valid),
				Longitude: acc.sumLon / float64(acc.valid),
			}
		}
		for _, name := range acc.areas {
			s.Areas = append(s.Areas, name)
		}
		sort.Strings(s.Areas)
		out = append(out, refs.Canonicalize(s))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// MergeDistrictSummaries overlays the visited counts derived from loaded pubs onto the
// repository summaries, which carry the full totals. Derived districts missing from pre
// are appended. Without repository summaries the derived ones are returned as is.
func MergeDistrictSummaries(pre, derived []types.DistrictSummary) []types.DistrictSummary {
	if len(pre) == 0 {
		return derived
	}
	visited := make(map[string]int, len(derived))
	for _, d := range derived {
		visited[NormalizeDistrict(d.Name)] += d.Visited
	}

	out := make([]types.DistrictSummary, 0, len(pre)+len(derived))
	seen := make(map[string]struct{}, len(pre))
	for _, s := range pre {
		key := NormalizeDistrict(s.Name)
		seen[key] = struct{}{}
		s.Visited = min(visited[key], s.Total)
		s.Completion = CompletionPercent(s.Visited, s.Total)
		out = append(out, s)
	}
	for _, d := range derived {
		if _, ok := seen[NormalizeDistrict(d.Name)]; !ok {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Aggregator memoizes area and district statistics on the dataset revision. Returned
// values are shared and must not be modified.
type Aggregator struct {
	refs *References

	mu           sync.Mutex
	valid        bool
	revision     uint64
	areas        map[string]types.AreaStats
	districts    []types.DistrictSummary
	computations int
}

func NewAggregator(refs *References) *Aggregator {
	return &Aggregator{refs: refs}
}

func (a *Aggregator) Compute(pubs []types.Pub, revision uint64) (map[string]types.AreaStats, []types.DistrictSummary) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.valid && a.revision == revision {
		return a.areas, a.districts
	}
	a.areas = ComputeAreaStats(pubs)
	a.districts = ComputeDistrictSummaries(pubs, a.refs)
	a.revision = revision
	a.valid = true
	a.computations++
	return a.areas, a.districts
}

// Computations counts the recomputations performed so far.
func (a *Aggregator) Computations() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.computations
}

// Reset drops the memoized result.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	a.valid = false
	a.areas = nil
	a.districts = nil
	a.mu.Unlock()
}

package statistics

import (
	"sort"
	"strings"

	"github.com/FACorreiaa/loci-pubmap/internal/geo"
	"github.com/FACorreiaa/loci-pubmap/internal/types"
)

// SmallAreaThreshold is the pub count below which an area is considered small.
const SmallAreaThreshold = 3

type SortBy string

const (
	SortByName  SortBy = "name"
	SortByCount SortBy = "count"
)

type ReportOptions struct {
	// MinPubs hides areas with fewer pubs from the district listing.
	MinPubs int
	SortBy  SortBy
}

type AreaCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type DistrictReport struct {
	District  string      `json:"district"`
	Canonical bool        `json:"canonical"`
	Total     int         `json:"total"`
	Areas     []AreaCount `json:"areas"`
}

type SmallArea struct {
	District string `json:"district"`
	Area     string `json:"area"`
	Count    int    `json:"count"`
}

type PubRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Report is the data quality overview of the pub catalogue grouped by district and area.
type Report struct {
	Districts       []DistrictReport `json:"districts"`
	TotalDistricts  int              `json:"total_districts"`
	TotalAreas      int              `json:"total_areas"`
	TotalPubs       int              `json:"total_pubs"`
	NonCanonical    []AreaCount      `json:"non_canonical_districts,omitempty"`
	WithoutDistrict []PubRef         `json:"without_district,omitempty"`
	WithoutArea     []PubRef         `json:"without_area,omitempty"`
	SmallAreas      []SmallArea      `json:"small_areas,omitempty"`
}

func missing(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || strings.EqualFold(s, "none")
}

// BuildReport groups pubs by district then area. Small areas are listed only when no
// MinPubs filter is applied.
func BuildReport(pubs []types.Pub, refs *References, opts ReportOptions) Report {
	var report Report
	counts := make(map[string]map[string]int)

	for _, p := range pubs {
		district, area := strings.TrimSpace(p.District), strings.TrimSpace(p.Area)
		if missing(district) {
			report.WithoutDistrict = append(report.WithoutDistrict, PubRef{ID: p.ID, Name: p.Name})
			continue
		}
		if missing(area) {
			report.WithoutArea = append(report.WithoutArea, PubRef{ID: p.ID, Name: p.Name})
			continue
		}
		if counts[district] == nil {
			counts[district] = make(map[string]int)
		}
		counts[district][area]++
	}

	districts := make([]string, 0, len(counts))
	for d := range counts {
		districts = append(districts, d)
	}
	sort.Strings(districts)
	report.TotalDistricts = len(districts)

	for _, district := range districts {
		_, canonical := refs.Lookup(district)
		all := 0
		var areas []AreaCount
		for area, n := range counts[district] {
			all += n
			if n < SmallAreaThreshold {
				report.SmallAreas = append(report.SmallAreas, SmallArea{District: district, Area: area, Count: n})
			}
			if n >= opts.MinPubs {
				areas = append(areas, AreaCount{Name: area, Count: n})
			}
		}
		if !canonical {
			report.NonCanonical = append(report.NonCanonical, AreaCount{Name: district, Count: all})
		}
		if len(areas) == 0 {
			continue
		}
		sortAreas(areas, opts.SortBy)

		total := 0
		for _, a := range areas {
			total += a.Count
		}
		report.TotalAreas += len(areas)
		report.TotalPubs += total
		report.Districts = append(report.Districts, DistrictReport{
			District:  district,
			Canonical: canonical,
			Total:     total,
			Areas:     areas,
		})
	}

	if opts.MinPubs > 0 {
		report.SmallAreas = nil
	}
	sort.Slice(report.SmallAreas, func(i, j int) bool {
		a, b := report.SmallAreas[i], report.SmallAreas[j]
		if a.Count != b.Count {
			return a.Count < b.Count
		}
		if a.District != b.District {
			return a.District < b.District
		}
		return a.Area < b.Area
	})
	return report
}

func sortAreas(areas []AreaCount, by SortBy) {
	sort.Slice(areas, func(i, j int) bool {
		if by == SortByCount && areas[i].Count != areas[j].Count {
			return areas[i].Count > areas[j].Count
		}
		return areas[i].Name < areas[j].Name
	})
}

// MergeSuggestion proposes folding a small area into its nearest large neighbor.
type MergeSuggestion struct {
	FromArea      string   `json:"from_area"`
	ToArea        string   `json:"to_area"`
	ToDistrict    string   `json:"to_district,omitempty"`
	PubIDs        []string `json:"pub_ids"`
	AvgDistanceKm float64  `json:"avg_distance_km"`
	MaxDistanceKm float64  `json:"max_distance_km"`
}

type SkippedArea struct {
	Area   string `json:"area"`
	Reason string `json:"reason"`
}

// SuggestMerges finds, for every area with fewer than minPubs located pubs, the large
// area most of its pubs are closest to. A positive maxRangeKm skips suggestions whose
// farthest pub exceeds it.
func SuggestMerges(pubs []types.Pub, minPubs int, maxRangeKm float64) ([]MergeSuggestion, []SkippedArea) {
	if minPubs <= 0 {
		minPubs = SmallAreaThreshold
	}

	groups := make(map[string][]types.Pub)
	for _, p := range pubs {
		area := strings.TrimSpace(p.Area)
		if missing(area) || !p.Location.Valid() {
			continue
		}
		groups[area] = append(groups[area], p)
	}

	var smallNames []string
	var largePubs []types.Pub
	for area, members := range groups {
		if len(members) < minPubs {
			smallNames = append(smallNames, area)
		} else {
			largePubs = append(largePubs, members...)
		}
	}
	sort.Strings(smallNames)

	var suggestions []MergeSuggestion
	var skipped []SkippedArea
	if len(largePubs) == 0 {
		for _, area := range smallNames {
			skipped = append(skipped, SkippedArea{Area: area, Reason: "no large areas"})
		}
		return nil, skipped
	}

	type hit struct {
		pubID string
		km    float64
	}
	for _, area := range smallNames {
		byTarget := make(map[string][]hit)
		for _, p := range groups[area] {
			best, bestKm := "", 0.0
			for _, other := range largePubs {
				km := geo.DistanceKm(p.Location, other.Location)
				if best == "" || km < bestKm {
					best, bestKm = strings.TrimSpace(other.Area), km
				}
			}
			byTarget[best] = append(byTarget[best], hit{pubID: p.ID, km: bestKm})
		}

		target := ""
		for name, hits := range byTarget {
			if target == "" || len(hits) > len(byTarget[target]) ||
				(len(hits) == len(byTarget[target]) && name < target) {
				target = name
			}
		}
		hits := byTarget[target]

		s := MergeSuggestion{FromArea: area, ToArea: target, ToDistrict: dominantDistrict(groups[target])}
		for _, h := range hits {
			s.PubIDs = append(s.PubIDs, h.pubID)
			s.AvgDistanceKm += h.km
			s.MaxDistanceKm = max(s.MaxDistanceKm, h.km)
		}
		s.AvgDistanceKm /= float64(len(hits))

		if maxRangeKm > 0 && s.MaxDistanceKm > maxRangeKm {
			skipped = append(skipped, SkippedArea{Area: area, Reason: "beyond merge range"})
			continue
		}
		suggestions = append(suggestions, s)
	}
	return suggestions, skipped
}

func dominantDistrict(pubs []types.Pub) string {
	counts := make(map[string]int)
	for _, p := range pubs {
		if d := strings.TrimSpace(p.District); !missing(d) {
			counts[d]++
		}
	}
	best := ""
	for d, n := range counts {
		if best == "" || n > counts[best] || (n == counts[best] && d < best) {
			best = d
		}
	}
	return best
}

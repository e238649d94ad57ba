package markers

import (
	"sort"

	"github.com/paulmach/orb/geojson"

	"github.com/FACorreiaa/loci-pubmap/internal/domain/distance"
	"github.com/FACorreiaa/loci-pubmap/internal/types"
)

type Kind string

const (
	KindDistrict Kind = "district"
	KindArea     Kind = "area"
	KindPub      Kind = "pub"
)

// Marker is one map pin at the current level of detail.
type Marker struct {
	ID         string           `json:"id"`
	Kind       Kind             `json:"kind"`
	Name       string           `json:"name"`
	District   string           `json:"district,omitempty"`
	Location   types.Coordinate `json:"location"`
	Total      int              `json:"total"`
	Visited    int              `json:"visited"`
	Completion int              `json:"completion"`
	Color      string           `json:"color"`
	Favorite   bool             `json:"favorite,omitempty"`
	DistanceKm *float64         `json:"distance_km,omitempty"`
}

// Input is everything needed to render one frame of markers.
type Input struct {
	Mode      types.LODMode
	Bounds    *types.Bounds
	Areas     map[string]types.AreaStats
	Districts []types.DistrictSummary
	Pubs      []types.Pub
	User      *types.Coordinate
}

type Builder struct {
	colors    Interpolator
	distances *distance.Cache
}

func NewBuilder(colors Interpolator, distances *distance.Cache) *Builder {
	return &Builder{colors: colors, distances: distances}
}

// Build returns the markers for the tier in in.Mode. Buckets without a centroid are not
// placeable and are left out. Entity markers are limited to in.Bounds when set.
func (b *Builder) Build(in Input) []Marker {
	var out []Marker
	switch in.Mode {
	case types.LODDistrict:
		for _, d := range in.Districts {
			if d.Centroid == nil {
				continue
			}
			out = append(out, b.bucket("district:"+d.Name, KindDistrict, d.Name, "", *d.Centroid,
				d.Total, d.Visited, d.Completion, in.User))
		}
	case types.LODArea:
		for _, a := range in.Areas {
			if a.Centroid == nil {
				continue
			}
			out = append(out, b.bucket("area:"+a.Key, KindArea, a.Name, a.District, *a.Centroid,
				a.Total, a.Visited, a.Completion, in.User))
		}
	case types.LODEntity:
		for _, p := range in.Pubs {
			if !p.Location.Valid() || (in.Bounds != nil && !in.Bounds.Contains(p.Location)) {
				continue
			}
			visited := 0
			if p.Visited {
				visited = 1
			}
			m := b.bucket("pub:"+p.ID, KindPub, p.Name, p.District, p.Location, 1, visited, visited*100, in.User)
			m.Favorite = p.Favorite
			out = append(out, m)
		}
	}
	sortMarkers(out)
	return out
}

func (b *Builder) bucket(id string, kind Kind, name, district string, at types.Coordinate,
	total, visited, completion int, user *types.Coordinate) Marker {
	m := Marker{
		ID:         id,
		Kind:       kind,
		Name:       name,
		District:   district,
		Location:   at,
		Total:      total,
		Visited:    visited,
		Completion: completion,
		Color:      b.colors.ColorFor(float64(completion)).Hex(),
	}
	if b.distances != nil {
		if km, ok := b.distances.DistanceTo(id, at, user); ok {
			m.DistanceKm = &km
		}
	}
	return m
}

// sortMarkers puts the nearest first when distances are known, otherwise the most
// complete first. Ties fall back to the name.
func sortMarkers(ms []Marker) {
	sort.SliceStable(ms, func(i, j int) bool {
		a, b := ms[i], ms[j]
		switch {
		case a.DistanceKm != nil && b.DistanceKm != nil:
			if *a.DistanceKm != *b.DistanceKm {
				return *a.DistanceKm < *b.DistanceKm
			}
		case a.DistanceKm != nil:
			return true
		case b.DistanceKm != nil:
			return false
		default:
			if a.Completion != b.Completion {
				return a.Completion > b.Completion
			}
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID < b.ID
	})
}

// FeatureCollection renders markers as GeoJSON points.
func FeatureCollection(ms []Marker) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, m := range ms {
		f := geojson.NewFeature(m.Location.Point())
		f.ID = m.ID
		f.Properties["kind"] = string(m.Kind)
		f.Properties["name"] = m.Name
		f.Properties["total"] = m.Total
		f.Properties["visited"] = m.Visited
		f.Properties["completion"] = m.Completion
		f.Properties["color"] = m.Color
		if m.District != "" {
			f.Properties["district"] = m.District
		}
		if m.Favorite {
			f.Properties["favorite"] = true
		}
		if m.DistanceKm != nil {
			f.Properties["distance_km"] = *m.DistanceKm
		}
		fc.Append(f)
	}
	return fc
}

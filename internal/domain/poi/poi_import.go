package poi

import (
	"fmt"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/FACorreiaa/loci-pubmap/internal/types"
)

// DecodeGeoJSON reads pubs from a feature collection of points. The feature id, or the
// "id" property, is the pub id. Features without an id or a point geometry are reported
// in skipped by index.
func DecodeGeoJSON(raw []byte) (pubs []types.Pub, skipped []int, err error) {
	fc, err := geojson.UnmarshalFeatureCollection(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: invalid GeoJSON: %v", types.ErrBadRequest, err)
	}

	for i, f := range fc.Features {
		pub, ok := pubFromFeature(f)
		if !ok {
			skipped = append(skipped, i)
			continue
		}
		pubs = append(pubs, pub)
	}
	return pubs, skipped, nil
}

func pubFromFeature(f *geojson.Feature) (types.Pub, bool) {
	id := strings.TrimSpace(fmt.Sprint(f.ID))
	if f.ID == nil || id == "" {
		id = strings.TrimSpace(f.Properties.MustString("id", ""))
	}
	pt, isPoint := f.Geometry.(orb.Point)
	if id == "" || !isPoint {
		return types.Pub{}, false
	}

	p := types.Pub{
		ID:           id,
		Name:         strings.TrimSpace(f.Properties.MustString("name", "")),
		Location:     types.Coordinate{Latitude: pt.Lat(), Longitude: pt.Lon()},
		Area:         strings.TrimSpace(f.Properties.MustString("area", "")),
		District:     strings.TrimSpace(f.Properties.MustString("district", "")),
		Ownership:    f.Properties.MustString("ownership", ""),
		Points:       f.Properties.MustInt("points", 0),
		Features:     stringList(f.Properties["features"]),
		Achievements: stringList(f.Properties["achievements"]),
	}
	if year := f.Properties.MustInt("founded", 0); year > 0 {
		p.FoundedYear = &year
	}
	if !p.Location.Valid() {
		return types.Pub{}, false
	}
	return p, true
}

func stringList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}

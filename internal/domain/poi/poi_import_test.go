package poi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/loci-pubmap/internal/types"
)

const pubsGeoJSON = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "id": "p1",
      "geometry": {"type": "Point", "coordinates": [-0.1316, 51.5131]},
      "properties": {
        "name": " The Coach and Horses ",
        "area": "Soho",
        "district": "Westminster",
        "features": ["real ale", " ", "quiz"],
        "founded": 1847,
        "points": 12
      }
    },
    {
      "type": "Feature",
      "geometry": {"type": "Point", "coordinates": [-0.1317, 51.5127]},
      "properties": {"id": "p2", "name": "The French House", "area": "Soho"}
    },
    {
      "type": "Feature",
      "geometry": {"type": "Point", "coordinates": [-0.1, 51.5]},
      "properties": {"name": "No id"}
    },
    {
      "type": "Feature",
      "id": "p4",
      "geometry": {"type": "LineString", "coordinates": [[-0.1, 51.5], [-0.2, 51.6]]},
      "properties": {"name": "Pub crawl"}
    },
    {
      "type": "Feature",
      "id": "p5",
      "geometry": {"type": "Point", "coordinates": [0, 0]},
      "properties": {"name": "Null island"}
    }
  ]
}`

func TestDecodeGeoJSON(t *testing.T) {
	pubs, skipped, err := DecodeGeoJSON([]byte(pubsGeoJSON))
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3, 4}, skipped)
	require.Len(t, pubs, 2)

	year := 1847
	assert.Equal(t, types.Pub{
		ID:          "p1",
		Name:        "The Coach and Horses",
		Location:    types.Coordinate{Latitude: 51.5131, Longitude: -0.1316},
		Area:        "Soho",
		District:    "Westminster",
		Features:    []string{"real ale", "quiz"},
		FoundedYear: &year,
		Points:      12,
	}, pubs[0])
	assert.Equal(t, "p2", pubs[1].ID)
	assert.Nil(t, pubs[1].FoundedYear)
}

func TestDecodeGeoJSON_Invalid(t *testing.T) {
	_, _, err := DecodeGeoJSON([]byte(`{"type":`))
	assert.ErrorIs(t, err, types.ErrBadRequest)
}

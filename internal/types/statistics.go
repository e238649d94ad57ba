package types

// AreaStats is the completion summary for one neighborhood.
type AreaStats struct {
	Key        string      `json:"key"`
	Name       string      `json:"name"`
	District   string      `json:"district,omitempty"`
	Total      int         `json:"total"`
	Visited    int         `json:"visited"`
	Completion int         `json:"completion"`
	Centroid   *Coordinate `json:"centroid,omitempty"`
}

// DistrictSummary is the completion summary for one administrative district.
// Canonical is false for names missing from the reference list.
type DistrictSummary struct {
	Name       string      `json:"name"`
	Canonical  bool        `json:"canonical"`
	Centroid   *Coordinate `json:"centroid,omitempty"`
	Bounds     *Bounds     `json:"bounds,omitempty"`
	Total      int         `json:"total"`
	Visited    int         `json:"visited"`
	Completion int         `json:"completion"`
	Areas      []string    `json:"areas,omitempty"`
}

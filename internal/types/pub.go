package types

import "slices"

// Pub is a venue shown on the map. Visited and Favorite mirror the local id lists and
// are filled in at merge time.
type Pub struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Location     Coordinate `json:"location"`
	Area         string     `json:"area,omitempty"`
	District     string     `json:"district,omitempty"`
	Features     []string   `json:"features,omitempty"`
	Ownership    string     `json:"ownership,omitempty"`
	FoundedYear  *int       `json:"founded_year,omitempty"`
	Points       int        `json:"points"`
	Achievements []string   `json:"achievements,omitempty"`
	Visited      bool       `json:"visited"`
	Favorite     bool       `json:"favorite"`
}

// PubPatch is a partial pub record as returned by a repository. A nil field was not
// present in the source row and must not overwrite an existing value.
type PubPatch struct {
	ID           string
	Name         *string
	Latitude     *float64
	Longitude    *float64
	Area         *string
	District     *string
	Features     *[]string
	Ownership    *string
	FoundedYear  *int
	Points       *int
	Achievements *[]string
	Visited      *bool
	Favorite     *bool
}

// ApplyTo shallow merges the present fields of p into dst and reports whether any field
// actually changed.
func (p PubPatch) ApplyTo(dst *Pub) bool {
	changed := false
	setString := func(dst *string, v *string) {
		if v != nil && *dst != *v {
			*dst = *v
			changed = true
		}
	}
	setFloat := func(dst *float64, v *float64) {
		if v != nil && *dst != *v {
			*dst = *v
			changed = true
		}
	}
	setSlice := func(dst *[]string, v *[]string) {
		if v != nil && !slices.Equal(*dst, *v) {
			*dst = slices.Clone(*v)
			changed = true
		}
	}
	setBool := func(dst *bool, v *bool) {
		if v != nil && *dst != *v {
			*dst = *v
			changed = true
		}
	}

	if dst.ID == "" && p.ID != "" {
		dst.ID = p.ID
		changed = true
	}
	setString(&dst.Name, p.Name)
	setFloat(&dst.Location.Latitude, p.Latitude)
	setFloat(&dst.Location.Longitude, p.Longitude)
	setString(&dst.Area, p.Area)
	setString(&dst.District, p.District)
	setSlice(&dst.Features, p.Features)
	setString(&dst.Ownership, p.Ownership)
	if p.FoundedYear != nil && (dst.FoundedYear == nil || *dst.FoundedYear != *p.FoundedYear) {
		year := *p.FoundedYear
		dst.FoundedYear = &year
		changed = true
	}
	if p.Points != nil && dst.Points != *p.Points {
		dst.Points = *p.Points
		changed = true
	}
	setSlice(&dst.Achievements, p.Achievements)
	setBool(&dst.Visited, p.Visited)
	setBool(&dst.Favorite, p.Favorite)
	return changed
}

// PatchFromPub builds a patch with every field present.
func PatchFromPub(p Pub) PubPatch {
	patch := PubPatch{
		ID:           p.ID,
		Name:         &p.Name,
		Latitude:     &p.Location.Latitude,
		Longitude:    &p.Location.Longitude,
		Area:         &p.Area,
		District:     &p.District,
		Features:     &p.Features,
		Ownership:    &p.Ownership,
		Points:       &p.Points,
		Achievements: &p.Achievements,
		Visited:      &p.Visited,
		Favorite:     &p.Favorite,
	}
	if p.FoundedYear != nil {
		year := *p.FoundedYear
		patch.FoundedYear = &year
	}
	return patch
}

// PubQuery narrows a pub fetch. An empty query returns every pub.
type PubQuery struct {
	Bounds    *Bounds
	Districts []string
	Limit     uint64
}

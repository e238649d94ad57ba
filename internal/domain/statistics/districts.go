package statistics

import (
	_ "embed"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/FACorreiaa/loci-pubmap/internal/types"
)

//go:embed districts.yaml
var districtsYAML []byte

// DistrictReference is a curated district with its display centroid.
type DistrictReference struct {
	Name      string   `yaml:"name"`
	Aliases   []string `yaml:"aliases"`
	Latitude  float64  `yaml:"latitude"`
	Longitude float64  `yaml:"longitude"`
}

func (d DistrictReference) Centroid() types.Coordinate {
	return types.Coordinate{Latitude: d.Latitude, Longitude: d.Longitude}
}

// References resolves free-form district names to their canonical reference.
type References struct {
	list  []DistrictReference
	byKey map[string]DistrictReference
}

// LoadReferences parses a YAML document with a top level "districts" list.
func LoadReferences(raw []byte) (*References, error) {
	var doc struct {
		Districts []DistrictReference `yaml:"districts"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse district references: %w", err)
	}

	refs := &References{byKey: make(map[string]DistrictReference, len(doc.Districts))}
	for _, d := range doc.Districts {
		d.Name = strings.TrimSpace(d.Name)
		if d.Name == "" {
			return nil, fmt.Errorf("%w: district reference without a name", types.ErrBadRequest)
		}
		if !d.Centroid().Valid() {
			return nil, fmt.Errorf("%w: district %q has invalid coordinates", types.ErrBadRequest, d.Name)
		}
		refs.list = append(refs.list, d)
		refs.byKey[NormalizeDistrict(d.Name)] = d
		for _, alias := range d.Aliases {
			refs.byKey[NormalizeDistrict(alias)] = d
		}
	}
	sort.Slice(refs.list, func(i, j int) bool { return refs.list[i].Name < refs.list[j].Name })
	return refs, nil
}

// DefaultReferences returns the embedded London district list.
func DefaultReferences() (*References, error) {
	return LoadReferences(districtsYAML)
}

var spaces = regexp.MustCompile(`\s+`)

// NormalizeDistrict folds case, the "London Borough of" style prefixes and "&" so that
// spelling variants of one district compare equal.
func NormalizeDistrict(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.ReplaceAll(n, "&", " and ")
	for _, prefix := range []string{"london borough of ", "royal borough of ", "borough of "} {
		n = strings.TrimPrefix(n, prefix)
	}
	return strings.TrimSpace(spaces.ReplaceAllString(n, " "))
}

func (r *References) Lookup(name string) (DistrictReference, bool) {
	if r == nil {
		return DistrictReference{}, false
	}
	d, ok := r.byKey[NormalizeDistrict(name)]
	return d, ok
}

func (r *References) All() []DistrictReference {
	if r == nil {
		return nil
	}
	return append([]DistrictReference(nil), r.list...)
}

// Canonicalize applies the reference spelling and centroid. Unlisted names keep their
// own spelling and computed centroid and are marked non canonical.
func (r *References) Canonicalize(s types.DistrictSummary) types.DistrictSummary {
	ref, ok := r.Lookup(s.Name)
	if !ok {
		s.Canonical = false
		return s
	}
	c := ref.Centroid()
	s.Name = ref.Name
	s.Centroid = &c
	s.Canonical = true
	return s
}

// districtKey is the grouping key for a raw district name.
func (r *References) districtKey(name string) (key, display string) {
	if ref, ok := r.Lookup(name); ok {
		return NormalizeDistrict(ref.Name), ref.Name
	}
	return NormalizeDistrict(name), strings.TrimSpace(name)
}

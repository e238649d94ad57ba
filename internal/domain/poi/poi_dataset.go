package poi

import (
	"sync"

	"github.com/FACorreiaa/loci-pubmap/internal/types"
)

// Dataset is the canonical in-memory pub collection for one map session. Every change
// bumps the revision, and derived data is memoized on it.
type Dataset struct {
	mu       sync.RWMutex
	pubs     map[string]*types.Pub
	order    []string
	revision uint64
}

func NewDataset() *Dataset {
	return &Dataset{pubs: make(map[string]*types.Pub)}
}

// Merge upserts patches by id. Existing fields absent from a patch are kept. It returns
// false, leaving the revision untouched, when nothing actually differed.
func (d *Dataset) Merge(patches []types.PubPatch) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	changed := false
	for _, patch := range patches {
		if patch.ID == "" {
			continue
		}
		existing, ok := d.pubs[patch.ID]
		if !ok {
			p := &types.Pub{ID: patch.ID}
			patch.ApplyTo(p)
			d.pubs[patch.ID] = p
			d.order = append(d.order, patch.ID)
			changed = true
			continue
		}
		// apply to a copy so concurrent Snapshot readers never see a half merged pub
		next := *existing
		if patch.ApplyTo(&next) {
			d.pubs[patch.ID] = &next
			changed = true
		}
	}
	if changed {
		d.revision++
	}
	return changed
}

// SetFlag updates the visited or favorite flag of one pub. ok is false for an unknown id.
func (d *Dataset) SetFlag(id string, flag Flag, value bool) (prev bool, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	existing, ok := d.pubs[id]
	if !ok {
		return false, false
	}
	next := *existing
	switch flag {
	case FlagVisited:
		prev, next.Visited = next.Visited, value
	case FlagFavorite:
		prev, next.Favorite = next.Favorite, value
	}
	if prev != value {
		d.pubs[id] = &next
		d.revision++
	}
	return prev, true
}

func (d *Dataset) Get(id string) (types.Pub, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.pubs[id]
	if !ok {
		return types.Pub{}, false
	}
	return *p, true
}

// Snapshot returns the pubs in insertion order together with the revision they belong to.
func (d *Dataset) Snapshot() ([]types.Pub, uint64) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]types.Pub, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, *d.pubs[id])
	}
	return out, d.revision
}

func (d *Dataset) Revision() uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.revision
}

func (d *Dataset) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.order)
}

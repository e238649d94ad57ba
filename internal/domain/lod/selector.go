package lod

import (
	"fmt"
	"sync"

	"github.com/FACorreiaa/loci-pubmap/internal/types"
)

// Thresholds are the hysteresis bounds in degrees of max delta. Each tier is entered on
// one value and left on another so that a zoom level near a boundary does not flap.
type Thresholds struct {
	DistrictEnter float64
	DistrictExit  float64
	AreaEnter     float64
	AreaExit      float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		DistrictEnter: 0.12,
		DistrictExit:  0.10,
		AreaEnter:     0.055,
		AreaExit:      0.035,
	}
}

func (t Thresholds) Validate() error {
	if t.AreaExit <= 0 {
		return fmt.Errorf("%w: area exit threshold must be positive", types.ErrBadRequest)
	}
	if t.AreaExit >= t.AreaEnter {
		return fmt.Errorf("%w: area exit %.4f must be below area enter %.4f", types.ErrBadRequest, t.AreaExit, t.AreaEnter)
	}
	if t.DistrictExit >= t.DistrictEnter {
		return fmt.Errorf("%w: district exit %.4f must be below district enter %.4f", types.ErrBadRequest, t.DistrictExit, t.DistrictEnter)
	}
	if t.AreaEnter >= t.DistrictExit {
		return fmt.Errorf("%w: area enter %.4f must be below district exit %.4f", types.ErrBadRequest, t.AreaEnter, t.DistrictExit)
	}
	return nil
}

// Selector is the level-of-detail state machine. It starts in DISTRICT.
type Selector struct {
	mu         sync.Mutex
	thresholds Thresholds
	mode       types.LODMode
}

func NewSelector(t Thresholds) *Selector {
	return &Selector{thresholds: t, mode: types.LODDistrict}
}

func (s *Selector) Mode() types.LODMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Update feeds a new max delta and returns the resulting mode and whether it changed.
// Transitions are applied until the state is stable, so one call can move from DISTRICT
// straight to ENTITY on a large zoom.
func (s *Selector) Update(maxDelta float64) (types.LODMode, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := s.mode
	for range 3 {
		next := s.next(s.mode, maxDelta)
		if next == s.mode {
			break
		}
		s.mode = next
	}
	return s.mode, s.mode != start
}

func (s *Selector) Reset() {
	s.mu.Lock()
	s.mode = types.LODDistrict
	s.mu.Unlock()
}

func (s *Selector) next(mode types.LODMode, maxDelta float64) types.LODMode {
	t := s.thresholds
	switch mode {
	case types.LODDistrict:
		if maxDelta < t.DistrictExit {
			return types.LODArea
		}
	case types.LODArea:
		if maxDelta > t.DistrictEnter {
			return types.LODDistrict
		}
		if maxDelta < t.AreaExit {
			return types.LODEntity
		}
	case types.LODEntity:
		if maxDelta > t.AreaEnter {
			return types.LODArea
		}
	}
	return mode
}

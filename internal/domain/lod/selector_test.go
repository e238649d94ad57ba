package lod

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/loci-pubmap/internal/types"
)

func TestSelector_Transitions(t *testing.T) {
	th := DefaultThresholds()

	tests := []struct {
		name     string
		deltas   []float64
		expected types.LODMode
	}{
		{name: "starts in district", deltas: nil, expected: types.LODDistrict},
		{name: "stays district between exit and enter", deltas: []float64{0.11}, expected: types.LODDistrict},
		{name: "zoom below district exit", deltas: []float64{0.09}, expected: types.LODArea},
		{name: "zoom below area exit cascades to entity", deltas: []float64{th.AreaExit - 0.001}, expected: types.LODEntity},
		{name: "entity holds inside the band", deltas: []float64{0.03, 0.05}, expected: types.LODEntity},
		{name: "entity back to area above area enter", deltas: []float64{0.03, 0.06}, expected: types.LODArea},
		{name: "area back to district above district enter", deltas: []float64{0.09, 0.13}, expected: types.LODDistrict},
		{name: "area holds between district exit and enter", deltas: []float64{0.09, 0.115}, expected: types.LODArea},
		{name: "entity zoomed far out returns to district", deltas: []float64{0.02, 0.5}, expected: types.LODDistrict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSelector(th)
			for _, d := range tt.deltas {
				s.Update(d)
			}
			assert.Equal(t, tt.expected, s.Mode())
		})
	}
}

func TestSelector_NoFlapping(t *testing.T) {
	th := DefaultThresholds()
	s := NewSelector(th)

	transitions := 0
	for i := range 20 {
		delta := th.DistrictExit + 0.005
		if i%2 == 0 {
			delta = th.DistrictExit - 0.005
		}
		if _, changed := s.Update(delta); changed {
			transitions++
		}
	}
	assert.Equal(t, 1, transitions)
	assert.Equal(t, types.LODArea, s.Mode())

	transitions = 0
	s = NewSelector(th)
	s.Update(th.AreaExit - 0.001)
	require.Equal(t, types.LODEntity, s.Mode())
	for i := range 20 {
		delta := th.AreaExit + 0.005
		if i%2 == 0 {
			delta = th.AreaExit - 0.005
		}
		if _, changed := s.Update(delta); changed {
			transitions++
		}
	}
	assert.Zero(t, transitions)
}

func TestThresholds_Validate(t *testing.T) {
	require.NoError(t, DefaultThresholds().Validate())

	bad := DefaultThresholds()
	bad.AreaExit = bad.AreaEnter
	assert.ErrorIs(t, bad.Validate(), types.ErrBadRequest)

	bad = DefaultThresholds()
	bad.DistrictEnter = 0.09
	assert.Error(t, bad.Validate())
}

package types

// LODMode is the marker granularity tier shown for the current zoom.
type LODMode string

const (
	LODDistrict LODMode = "DISTRICT"
	LODArea     LODMode = "AREA"
	LODEntity   LODMode = "ENTITY"
)

func (m LODMode) Valid() bool {
	switch m {
	case LODDistrict, LODArea, LODEntity:
		return true
	}
	return false
}

package markers

import (
	"fmt"
	"math"
)

// RGB is a display color.
type RGB struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

func (c RGB) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

var (
	// LowCompletion colors untouched buckets.
	LowCompletion = RGB{R: 239, G: 68, B: 68}
	// FullCompletion colors fully visited buckets.
	FullCompletion = RGB{R: 34, G: 197, B: 94}
)

// Interpolator maps a completion percentage onto the line between two anchors.
type Interpolator struct {
	Low  RGB
	High RGB
}

func DefaultInterpolator() Interpolator {
	return Interpolator{Low: LowCompletion, High: FullCompletion}
}

// ColorFor clamps pct to [0,100] and interpolates each channel linearly. NaN is treated
// as 0.
func (i Interpolator) ColorFor(pct float64) RGB {
	if math.IsNaN(pct) || pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	t := pct / 100
	lerp := func(a, b uint8) uint8 {
		return uint8(math.Round(float64(a) + (float64(b)-float64(a))*t))
	}
	return RGB{
		R: lerp(i.Low.R, i.High.R),
		G: lerp(i.Low.G, i.High.G),
		B: lerp(i.Low.B, i.High.B),
	}
}

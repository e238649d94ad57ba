package markers

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func channelDistance(a, b RGB) float64 {
	dr := float64(a.R) - float64(b.R)
	dg := float64(a.G) - float64(b.G)
	db := float64(a.B) - float64(b.B)
	return math.Sqrt(dr*dr + dg*dg + db*db)
}

func TestInterpolator_ColorFor(t *testing.T) {
	i := DefaultInterpolator()

	assert.Equal(t, LowCompletion, i.ColorFor(0))
	assert.Equal(t, FullCompletion, i.ColorFor(100))
	assert.Equal(t, LowCompletion, i.ColorFor(-20), "clamped below")
	assert.Equal(t, FullCompletion, i.ColorFor(250), "clamped above")
	assert.Equal(t, LowCompletion, i.ColorFor(math.NaN()))

	mid := i.ColorFor(50)
	assert.Equal(t, RGB{R: 137, G: 133, B: 81}, mid)

	c := i.ColorFor(67)
	assert.NotEqual(t, LowCompletion, c)
	assert.NotEqual(t, FullCompletion, c)
	assert.Less(t, channelDistance(c, FullCompletion), channelDistance(c, LowCompletion))
}

func TestInterpolator_Continuous(t *testing.T) {
	i := DefaultInterpolator()
	prev := i.ColorFor(0)
	for pct := 1; pct <= 100; pct++ {
		c := i.ColorFor(float64(pct))
		assert.LessOrEqual(t, channelDistance(prev, c), 4.0, "step at %d%%", pct)
		prev = c
	}
}

func TestRGB_Hex(t *testing.T) {
	assert.Equal(t, "#ef4444", LowCompletion.Hex())
	assert.Equal(t, "#22c55e", FullCompletion.Hex())
	assert.Equal(t, "#000000", RGB{}.Hex())
}

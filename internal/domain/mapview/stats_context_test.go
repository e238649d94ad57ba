package mapview

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/loci-pubmap/internal/types"
)

func TestStatsContext(t *testing.T) {
	c := NewStatsContext()
	_, ok := c.Get()
	assert.False(t, ok)

	c.Set(Stats{Revision: 1, Areas: map[string]types.AreaStats{"soho": {Key: "soho", Total: 3}}})
	c.Set(Stats{Revision: 2})
	got, ok := c.Get()
	require.True(t, ok)
	assert.Equal(t, uint64(2), got.Revision)
	assert.Empty(t, got.Areas)

	c.Clear()
	_, ok = c.Get()
	assert.False(t, ok)
}

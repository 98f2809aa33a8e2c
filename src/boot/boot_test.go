package boot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLargestAvailableIgnoresUnavailable(t *testing.T) {
	regions := []MemoryRegion{
		{Base: 0, Size: 100, Available: false},
		{Base: 0x1000, Size: 50, Available: true},
		{Base: 0x2000, Size: 200, Available: true},
	}
	best, ok := LargestAvailable(regions)
	assert.True(t, ok)
	assert.Equal(t, uint64(0x2000), best.Base)
	assert.Equal(t, uint64(200), best.Size)
}

func TestLargestAvailableNoneQualify(t *testing.T) {
	regions := []MemoryRegion{{Base: 0, Size: 100, Available: false}}
	_, ok := LargestAvailable(regions)
	assert.False(t, ok)
}

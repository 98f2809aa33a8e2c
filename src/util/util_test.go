package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMinMax(t *testing.T) {
	assert.Equal(t, 3, Min(3, 7))
	assert.Equal(t, 7, Max(3, 7))
}

func TestRoundupRounddown(t *testing.T) {
	assert.Equal(t, 4096, Rounddown(4097, 4096))
	assert.Equal(t, 8192, Roundup(4097, 4096))
	assert.Equal(t, 4096, Roundup(4096, 4096))
}

func TestWrapIncrement(t *testing.T) {
	assert.Equal(t, uint32(1), WrapIncrement(0))
	assert.Equal(t, uint32(0), WrapIncrement(^uint32(0)))
}

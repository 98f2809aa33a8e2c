package captab

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandlePackUnpackRoundTrip(t *testing.T) {
	h := CapabilityHandle{Index: 1234, Generation: 56}
	gen, idx := Unpack(h.Pack())
	assert.Equal(t, h.Generation, gen)
	assert.Equal(t, h.Index, idx)
}

func TestSlotStateString(t *testing.T) {
	assert.Equal(t, "free", Free.String())
	assert.Equal(t, "live", Live.String())
	assert.Equal(t, "pending_revoke", PendingRevoke.String())
}

package captab

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exocap/kernel/src/defs"
)

func TestStatsByResourceType(t *testing.T) {
	tab := NewTable()
	_, err := tab.BindResourceExclusive(1, pageRid(1), allRights, defs.ScopeProcess(), nil)
	require.Zero(t, err)
	_, err = tab.BindResourceExclusive(1, defs.ResourceId{Type: defs.IoPort, Id: 1}, allRights, defs.ScopeProcess(), nil)
	require.Zero(t, err)

	s := tab.Stats()
	assert.Equal(t, 2, s.UsedSlots)
	assert.Equal(t, 1, s.ByResource[defs.PhysicalPage])
	assert.Equal(t, 1, s.ByResource[defs.IoPort])
	assert.Equal(t, MaxCapabilities-2, s.FreeSlots)
}

func TestWriteProfileProducesOutput(t *testing.T) {
	tab := NewTable()
	_, err := tab.BindResourceExclusive(1, pageRid(1), allRights, defs.ScopeProcess(), nil)
	require.Zero(t, err)

	var buf bytes.Buffer
	require.NoError(t, tab.WriteProfile(&buf))
	assert.NotZero(t, buf.Len())
}

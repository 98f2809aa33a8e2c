package defs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRightsString(t *testing.T) {
	assert.Equal(t, "R-------", (READ).String())
	assert.Equal(t, "RW------", (READ | WRITE).String())
	assert.Equal(t, "RWXMDTGV", (READ | WRITE | EXECUTE | MAP | DELETE | TRANSFER | GRANT | REVOKE).String())
}

func TestRightsHas(t *testing.T) {
	r := READ | WRITE
	assert.True(t, r.Has(READ))
	assert.False(t, r.Has(EXECUTE))
	assert.True(t, r.Has(READ|WRITE))
}

func TestTransferableMaskExcludesGrant(t *testing.T) {
	assert.False(t, TransferableMask.Has(GRANT))
	assert.True(t, TransferableMask.Has(READ|WRITE|EXECUTE|MAP|DELETE))
}

func TestResourceIdFastHashDistinguishesType(t *testing.T) {
	a := ResourceId{Type: PhysicalPage, Id: 1}
	b := ResourceId{Type: VirtualMemory, Id: 1}
	assert.NotEqual(t, a.FastHash(), b.FastHash())
}

func TestResourceIdLess(t *testing.T) {
	a := ResourceId{Type: PhysicalPage, Id: 1}
	b := ResourceId{Type: PhysicalPage, Id: 2}
	c := ResourceId{Type: VirtualMemory, Id: 0}
	assert.True(t, a.Less(b))
	assert.True(t, b.Less(c))
	assert.False(t, c.Less(a))
}

func TestRequiredExclusiveRights(t *testing.T) {
	assert.Equal(t, WRITE|MAP, RequiredExclusiveRights(PhysicalPage))
	assert.Equal(t, WRITE, RequiredExclusiveRights(Device))
	assert.Equal(t, WRITE, RequiredExclusiveRights(Custom))
}

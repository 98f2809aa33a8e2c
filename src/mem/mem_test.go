package mem

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllocFreeRoundTrip(t *testing.T) {
	a := New(0x100000, 4*uint64(PGSIZE))
	assert.Equal(t, 4, a.TotalPages)
	assert.Equal(t, 4, a.FreePages())

	addr, ok := a.Alloc(7)
	assert.True(t, ok)
	assert.Equal(t, Pa_t(0x100000), addr)
	assert.Equal(t, 3, a.FreePages())
	assert.Equal(t, uint32(7), a.Owner(addr))

	if !a.Free(7, addr) {
		t.Fatalf("Free(7, %x) failed", addr)
	}
	assert.Equal(t, 4, a.FreePages())
	assert.Equal(t, uint32(0), a.Owner(addr))
}

func TestFreeWrongOwnerFails(t *testing.T) {
	a := New(0, uint64(PGSIZE))
	addr, ok := a.Alloc(1)
	if !ok {
		t.Fatal("Alloc failed")
	}
	if a.Free(2, addr) {
		t.Fatalf("Free with wrong pid should fail")
	}
	assert.Equal(t, 0, a.FreePages())
}

func TestAllocExhaustion(t *testing.T) {
	a := New(0, 2*uint64(PGSIZE))
	for i := 0; i < 2; i++ {
		if _, ok := a.Alloc(1); !ok {
			t.Fatalf("Alloc %d should have succeeded", i)
		}
	}
	if _, ok := a.Alloc(1); ok {
		t.Fatalf("Alloc should fail once the region is exhausted")
	}
}

func TestChangeOwner(t *testing.T) {
	a := New(0, uint64(PGSIZE))
	addr, _ := a.Alloc(1)

	if !a.ChangeOwner(addr, 1, 2) {
		t.Fatalf("ChangeOwner(1 -> 2) should succeed")
	}
	assert.Equal(t, uint32(2), a.Owner(addr))

	if a.ChangeOwner(addr, 1, 3) {
		t.Fatalf("ChangeOwner with stale expected owner should fail")
	}
}

func TestPageBytesLength(t *testing.T) {
	a := New(0, uint64(PGSIZE))
	addr, _ := a.Alloc(1)
	assert.Len(t, a.PageBytes(addr), PGSIZE)
}

func TestMaxPagesClamp(t *testing.T) {
	a := New(0, uint64(MaxPages+10)*uint64(PGSIZE))
	assert.Equal(t, MaxPages, a.TotalPages)
}

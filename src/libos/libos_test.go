package libos

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exocap/kernel/src/boot"
	"github.com/exocap/kernel/src/defs"
	"github.com/exocap/kernel/src/mem"
)

func newTestKernel(t *testing.T, pages int) *Kernel {
	t.Helper()
	regions := []boot.MemoryRegion{
		{Base: 0x200000, Size: uint64(pages * mem.PGSIZE), Available: true},
		{Base: 0, Size: 1, Available: false}, // ignored, per LargestAvailable
	}
	k, ok := NewKernel(regions)
	require.True(t, ok)
	return k
}

// Scenario 1: alloc/drop round-trip.
func TestOwnedPageAllocCloseRoundTrip(t *testing.T) {
	k := newTestKernel(t, 4)
	free := k.Phys.FreePages()

	pid := k.AllocPid()
	p, err := AllocPage(k, pid)
	require.Zero(t, err)
	assert.Equal(t, free-1, k.Phys.FreePages())

	addr := p.Addr()
	h := p.handle
	p.Close()

	assert.Equal(t, free, k.Phys.FreePages())
	_, verr := k.Cap.Validate(h)
	assert.Equal(t, defs.InvalidHandle, verr)
	_ = addr
}

func TestOwnedPageCloseIsIdempotent(t *testing.T) {
	k := newTestKernel(t, 2)
	pid := k.AllocPid()
	p, err := AllocPage(k, pid)
	require.Zero(t, err)

	p.Close()
	free := k.Phys.FreePages()
	p.Close() // must not double-free or panic
	assert.Equal(t, free, k.Phys.FreePages())
}

func TestOwnedPageBytesPanicsAfterClose(t *testing.T) {
	k := newTestKernel(t, 1)
	pid := k.AllocPid()
	p, err := AllocPage(k, pid)
	require.Zero(t, err)
	p.Close()

	assert.Panics(t, func() { p.Bytes() })
}

func TestAsReadonlyFreezeAndRelease(t *testing.T) {
	k := newTestKernel(t, 1)
	pid := k.AllocPid()
	tid := defs.ThreadId(1)

	p, err := AllocPage(k, pid)
	require.Zero(t, err)

	ro, roErr := p.AsReadonly(tid)
	require.Zero(t, roErr)
	assert.Equal(t, p.Addr(), ro.Addr())

	require.Zero(t, ro.Release())
	p.Close()
}

func TestTransferToMovesOwnership(t *testing.T) {
	k := newTestKernel(t, 1)
	pidA := k.AllocPid()
	pidB := k.AllocPid()

	p, err := AllocPage(k, pidA)
	require.Zero(t, err)
	addr := p.Addr()

	moved, terr := p.TransferTo(pidB)
	require.Zero(t, terr)
	assert.Equal(t, addr, moved.Addr())
	assert.Equal(t, uint32(pidB), k.Phys.Owner(addr))

	assert.Panics(t, func() { p.Bytes() })
	moved.Close()
}

// Scenario 6: process exit revokes the capability on every page the
// process owned. OnProcessExit works on the capability table only; it does
// not free the physical pages in k.Phys.
func TestOnProcessExitRevokesPageCapabilities(t *testing.T) {
	k := newTestKernel(t, 10)
	pid := k.AllocPid()
	free := k.Phys.FreePages()

	pv, err := AllocPages(k, pid, 10)
	require.Zero(t, err)
	assert.Equal(t, 10, pv.Len())
	assert.Equal(t, free-10, k.Phys.FreePages())

	n := k.Cap.OnProcessExit(pid)
	assert.Equal(t, 10, n)

	for i := 0; i < pv.Len(); i++ {
		page := pv.At(i)
		assert.False(t, k.Cap.VerifyCapability(pid, pageResource(page.Addr()), defs.READ))
	}
}

func TestAllocPagesReturnsPartialVectorOnShortage(t *testing.T) {
	k := newTestKernel(t, 3)
	pid := k.AllocPid()

	pv, err := AllocPages(k, pid, 4)
	require.Zero(t, err)
	require.NotNil(t, pv)
	assert.Equal(t, 3, pv.Len())
	assert.Equal(t, 0, k.Phys.FreePages())

	pv.Close()
	assert.Equal(t, 3, k.Phys.FreePages())
}

func TestAllocPagesErrorsWhenNoneSucceed(t *testing.T) {
	k := newTestKernel(t, 0)
	pid := k.AllocPid()

	pv, err := AllocPages(k, pid, 2)
	assert.Nil(t, pv)
	assert.Equal(t, defs.OutOfMemory, err)
}

func TestSharedPageGrantReadonlyAndLastDropFrees(t *testing.T) {
	k := newTestKernel(t, 1)
	owner := k.AllocPid()
	grantee := k.AllocPid()
	free := k.Phys.FreePages()

	sp, err := AllocSharedPage(k, owner)
	require.Zero(t, err)
	assert.Equal(t, free-1, k.Phys.FreePages())

	ref, gerr := sp.GrantReadonly(grantee)
	require.Zero(t, gerr)
	assert.True(t, k.Cap.VerifyCapability(grantee, pageResource(sp.Addr()), defs.READ))

	sp.Close()
	assert.Equal(t, free-1, k.Phys.FreePages(), "page must stay allocated while the grantee still holds a reference")

	ref.Release()
	assert.Equal(t, free, k.Phys.FreePages(), "page frees once the last reference releases")
}

func TestSharedPageShareKeepsPageAliveUntilBothClose(t *testing.T) {
	k := newTestKernel(t, 1)
	owner := k.AllocPid()
	free := k.Phys.FreePages()

	sp, err := AllocSharedPage(k, owner)
	require.Zero(t, err)
	assert.Equal(t, free-1, k.Phys.FreePages())

	clone := sp.Share()
	assert.Equal(t, sp.Addr(), clone.Addr())

	sp.Close()
	assert.Equal(t, free-1, k.Phys.FreePages(), "page must stay allocated while the shared clone is still open")

	clone.Close()
	assert.Equal(t, free, k.Phys.FreePages(), "page frees once the last shared clone closes")
}

func TestAsExclusiveBorrowBlocksSecondBorrow(t *testing.T) {
	k := newTestKernel(t, 1)
	pid := k.AllocPid()

	p, err := AllocPage(k, pid)
	require.Zero(t, err)

	rw, berr := p.AsExclusiveBorrow(2)
	require.Zero(t, berr)

	_, conflictErr := p.AsExclusiveBorrow(3)
	assert.Equal(t, defs.BorrowConflict, conflictErr)

	require.Zero(t, rw.Release())
	p.Close()
}

func TestPageVecPushRejectsOwnerMismatch(t *testing.T) {
	k := newTestKernel(t, 2)
	pidA := k.AllocPid()
	pidB := k.AllocPid()

	p, err := AllocPage(k, pidB)
	require.Zero(t, err)
	defer p.Close()

	pv := NewPageVec(pidA)
	assert.Panics(t, func() { pv.Push(p) })
}

func TestSyscallSurfacePageFromAddr(t *testing.T) {
	k := newTestKernel(t, 1)
	pid := k.AllocPid()
	tid := defs.ThreadId(1)
	sc := NewSyscall(k, pid, tid)

	p, err := sc.AllocPage()
	require.Zero(t, err)

	same, ferr := sc.PageFromAddr(p.Addr())
	require.Zero(t, ferr)
	assert.Equal(t, p.Addr(), same.Addr())

	info := sc.SystemInfo()
	assert.GreaterOrEqual(t, info.Capabilities.UsedSlots, 1)
	p.Close()
}

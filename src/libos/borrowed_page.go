package libos

import (
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/exocap/kernel/src/captab"
	"github.com/exocap/kernel/src/defs"
	"github.com/exocap/kernel/src/mem"
)

/// BorrowedPageRO is a read-only, shared borrow of a page owned elsewhere.
/// It is produced only by OwnedPage.AsReadonly and must be released exactly
/// once. SharedPage has no method that returns one: its GrantReadonly
/// returns a *SharedPageRef.
type BorrowedPageRO struct {
	k        *Kernel
	handle   captab.CapabilityHandle
	tid      defs.ThreadId
	addr     mem.Pa_t
	froze    bool // whether this borrow also froze the owner's exclusive hold
	released int32
}

/// Addr returns the borrowed page's physical address.
func (b *BorrowedPageRO) Addr() mem.Pa_t { return b.addr }

/// Bytes returns a read-only view; Go has no const slices, so callers are
/// trusted not to write through it, exactly as the owning capability's
/// rights are the only enforcement mechanism here.
func (b *BorrowedPageRO) Bytes() []byte {
	return b.k.Phys.PageBytes(b.addr)
}

/// Release drops the shared borrow and, if this borrow had frozen the
/// owner's exclusive hold, unfreezes it. Release is idempotent.
func (b *BorrowedPageRO) Release() defs.Err_t {
	if !atomic.CompareAndSwapInt32(&b.released, 0, 1) {
		return 0
	}
	if err := b.k.Cap.ReleaseShared(b.handle, b.tid); err != 0 {
		logrus.Warnf("libos: BorrowedPageRO release: %v", err)
		return err
	}
	if b.froze {
		if err := b.k.Cap.UnfreezeExclusive(b.handle, b.tid); err != 0 {
			logrus.Warnf("libos: BorrowedPageRO unfreeze: %v", err)
			return err
		}
	}
	return 0
}

/// BorrowedPageRW is an exclusive borrow of a page owned elsewhere,
/// produced by OwnedPage.AsExclusiveBorrow. Only one thread may hold this
/// at a time for a given resource.
type BorrowedPageRW struct {
	k        *Kernel
	handle   captab.CapabilityHandle
	tid      defs.ThreadId
	addr     mem.Pa_t
	released int32
}

/// AsExclusiveBorrow takes out an exclusive borrow of p for tid, scoped to
/// tid's thread. p retains ownership; this is for a single in-process
/// caller temporarily taking sole write access.
func (p *OwnedPage) AsExclusiveBorrow(tid defs.ThreadId) (*BorrowedPageRW, defs.Err_t) {
	borrowScope := defs.ScopeThread(tid)
	if err := p.k.Cap.BorrowExclusive(p.handle, tid, borrowScope); err != 0 {
		return nil, err
	}
	return &BorrowedPageRW{k: p.k, handle: p.handle, tid: tid, addr: p.addr}, 0
}

/// Addr returns the borrowed page's physical address.
func (b *BorrowedPageRW) Addr() mem.Pa_t { return b.addr }

/// Bytes returns a mutable view of the borrowed page.
func (b *BorrowedPageRW) Bytes() []byte {
	return b.k.Phys.PageBytes(b.addr)
}

/// Release drops the exclusive borrow. Idempotent.
func (b *BorrowedPageRW) Release() defs.Err_t {
	if !atomic.CompareAndSwapInt32(&b.released, 0, 1) {
		return 0
	}
	if err := b.k.Cap.ReleaseExclusive(b.handle, b.tid); err != 0 {
		logrus.Warnf("libos: BorrowedPageRW release: %v", err)
		return err
	}
	return 0
}

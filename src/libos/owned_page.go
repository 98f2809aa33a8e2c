package libos

import (
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/exocap/kernel/src/captab"
	"github.com/exocap/kernel/src/defs"
	"github.com/exocap/kernel/src/mem"
)

/// exclusiveRights is what an OwnedPage's backing capability is bound
/// with: full control over its own physical page.
const exclusiveRights = defs.READ | defs.WRITE | defs.EXECUTE | defs.MAP | defs.DELETE | defs.TRANSFER | defs.GRANT | defs.REVOKE

/// OwnedPage is a physical page bound exclusively to one process. It is
/// born bound to a freshly allocated page and an exclusive capability;
/// Close revokes the capability and frees the page.
type OwnedPage struct {
	k      *Kernel
	pid    defs.ProcessId
	addr   mem.Pa_t
	handle captab.CapabilityHandle
	closed int32 // atomic
}

/// AllocPage allocates a physical page for pid and binds an exclusive
/// capability over it, scoped to the process.
func AllocPage(k *Kernel, pid defs.ProcessId) (*OwnedPage, defs.Err_t) {
	addr, ok := k.Phys.Alloc(uint32(pid))
	if !ok {
		return nil, defs.OutOfMemory
	}
	rid := pageResource(addr)
	h, err := k.Cap.BindResourceExclusive(pid, rid, exclusiveRights, defs.ScopeProcess(), nil)
	if err != 0 {
		k.Phys.Free(uint32(pid), addr)
		return nil, err
	}
	return &OwnedPage{k: k, pid: pid, addr: addr, handle: h}, 0
}

/// ownedFromHandle wraps an already-bound handle in an OwnedPage, used by
/// grant/transfer paths that bind the capability themselves.
func ownedFromHandle(k *Kernel, pid defs.ProcessId, addr mem.Pa_t, h captab.CapabilityHandle) *OwnedPage {
	return &OwnedPage{k: k, pid: pid, addr: addr, handle: h}
}

/// Addr returns the page's physical address.
func (p *OwnedPage) Addr() mem.Pa_t { return p.addr }

/// Owner returns the owning process id.
func (p *OwnedPage) Owner() defs.ProcessId { return p.pid }

/// Bytes returns a mutable view of the page's PGSIZE bytes. It panics if
/// the page has already been closed, mirroring a use-after-free.
func (p *OwnedPage) Bytes() []byte {
	if atomic.LoadInt32(&p.closed) != 0 {
		panic("libos: use of closed OwnedPage")
	}
	return p.k.Phys.PageBytes(p.addr)
}

/// AsReadonly freezes the underlying exclusive capability and returns a
/// BorrowedPageRO good for tid's use; Release on the borrow unfreezes.
func (p *OwnedPage) AsReadonly(tid defs.ThreadId) (*BorrowedPageRO, defs.Err_t) {
	if err := p.k.Cap.FreezeExclusive(p.handle, tid); err != 0 {
		return nil, err
	}
	borrowScope := defs.ScopeThread(tid)
	if err := p.k.Cap.BorrowSharedFromFrozen(p.handle, tid, borrowScope); err != 0 {
		_ = p.k.Cap.UnfreezeExclusive(p.handle, tid)
		return nil, err
	}
	return &BorrowedPageRO{k: p.k, handle: p.handle, tid: tid, addr: p.addr, froze: true}, 0
}

/// TransferTo hands the page to newPid: the capability subtree is revoked
/// and rebound to newPid, and physical ownership follows. The receiver
/// gets a fresh *OwnedPage; p itself must not be used again.
func (p *OwnedPage) TransferTo(newPid defs.ProcessId) (*OwnedPage, defs.Err_t) {
	rid := pageResource(p.addr)
	h, err := p.k.Cap.TransferResource(p.handle, newPid, rid)
	if err != 0 {
		return nil, err
	}
	if !p.k.Phys.ChangeOwner(p.addr, uint32(p.pid), uint32(newPid)) {
		return nil, defs.ResourceNotFound
	}
	atomic.StoreInt32(&p.closed, 1) // p is consumed
	return ownedFromHandle(p.k, newPid, p.addr, h), 0
}

/// RevokeNow strict-revokes the backing capability without freeing the
/// physical page or marking the page closed; used when a caller wants to
/// sever the capability but the page's lifetime is managed elsewhere
/// (e.g. it was just handed off to a PageVec).
func (p *OwnedPage) RevokeNow() defs.Err_t {
	_, err := p.k.Cap.RevokeCapability(p.handle)
	return err
}

/// RevokeDeferred queues a deferred revoke of the backing capability; it
/// completes automatically once every outstanding borrow of the page
/// releases.
func (p *OwnedPage) RevokeDeferred() defs.Err_t {
	_, err := p.k.Cap.RevokeCapabilityDeferred(p.handle)
	return err
}

/// Close revokes the capability (best effort; failures are logged and
/// swallowed, since a destructor has no return path) and frees the
/// physical page. Close is idempotent.
func (p *OwnedPage) Close() {
	if !atomic.CompareAndSwapInt32(&p.closed, 0, 1) {
		return
	}
	if _, err := p.k.Cap.RevokeCapability(p.handle); err != 0 {
		logrus.Warnf("libos: OwnedPage close: revoke failed for pid=%d addr=0x%x: %v", p.pid, p.addr, err)
	}
	if !p.k.Phys.Free(uint32(p.pid), p.addr) {
		logrus.Warnf("libos: OwnedPage close: free failed for pid=%d addr=0x%x", p.pid, p.addr)
	}
}

package libos

import (
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/exocap/kernel/src/captab"
	"github.com/exocap/kernel/src/defs"
	"github.com/exocap/kernel/src/mem"
)

/// sharedRights is what a SharedPage's master capability is bound with:
/// everything exclusiveRights has, since the creator may later grant a
/// subset down to each sharer.
const sharedRights = exclusiveRights

/// SharedPage is a physical page with reference-counted ownership: a
/// creating process holds the master capability, and each call to
/// GrantReadonly hands out an independent read-only capability to another
/// process while bumping the refcount. The page is freed only once the
/// master and every granted reference have released.
type SharedPage struct {
	k      *Kernel
	pid    defs.ProcessId
	addr   mem.Pa_t
	handle captab.CapabilityHandle
	refs   *int32 // atomic, shared across every Share() clone; starts at 1
	closed int32
}

/// AllocSharedPage allocates a physical page for pid and binds the master
/// capability, ready for Share or GrantReadonly to fan out references.
func AllocSharedPage(k *Kernel, pid defs.ProcessId) (*SharedPage, defs.Err_t) {
	addr, ok := k.Phys.Alloc(uint32(pid))
	if !ok {
		return nil, defs.OutOfMemory
	}
	rid := pageResource(addr)
	h, err := k.Cap.BindResourceExclusive(pid, rid, sharedRights, defs.ScopeProcess(), nil)
	if err != 0 {
		k.Phys.Free(uint32(pid), addr)
		return nil, err
	}
	refs := new(int32)
	*refs = 1
	return &SharedPage{k: k, pid: pid, addr: addr, handle: h, refs: refs}, 0
}

/// Share increments the reference count for another holder within the same
/// owning process and returns an independent *SharedPage over the same
/// backing capability and page — the same-owner analogue of GrantReadonly,
/// which crosses a process boundary and derives a fresh capability instead.
/// Every value Share returns must be Closed exactly once, same as the
/// original.
func (s *SharedPage) Share() *SharedPage {
	atomic.AddInt32(s.refs, 1)
	return &SharedPage{k: s.k, pid: s.pid, addr: s.addr, handle: s.handle, refs: s.refs}
}

/// Addr returns the shared page's physical address.
func (s *SharedPage) Addr() mem.Pa_t { return s.addr }

/// Bytes returns a mutable view, available only to the master holder.
func (s *SharedPage) Bytes() []byte {
	return s.k.Phys.PageBytes(s.addr)
}

/// SharedPageRef is one grantee's reference to a SharedPage's backing
/// page, obtained through GrantReadonly. Release drops the reference.
type SharedPageRef struct {
	s        *SharedPage
	handle   captab.CapabilityHandle
	released int32
}

/// Addr returns the referenced page's physical address.
func (r *SharedPageRef) Addr() mem.Pa_t { return r.s.addr }

/// Bytes returns a read-only view of the referenced page.
func (r *SharedPageRef) Bytes() []byte {
	return r.s.k.Phys.PageBytes(r.s.addr)
}

/// GrantReadonly derives a fresh read-only capability on s's resource for
/// grantee and bumps the shared refcount. The returned SharedPageRef must
/// be released exactly once.
func (s *SharedPage) GrantReadonly(grantee defs.ProcessId) (*SharedPageRef, defs.Err_t) {
	rid := pageResource(s.addr)
	h, err := s.k.Cap.GrantReadonly(s.handle, grantee, rid)
	if err != 0 {
		return nil, err
	}
	atomic.AddInt32(s.refs, 1)
	return &SharedPageRef{s: s, handle: h}, 0
}

/// Release drops this grantee's reference. If it was the last outstanding
/// reference (refcount reaches zero), the backing page is revoked and
/// freed. Idempotent.
func (r *SharedPageRef) Release() {
	if !atomic.CompareAndSwapInt32(&r.released, 0, 1) {
		return
	}
	if _, err := r.s.k.Cap.RevokeCapability(r.handle); err != 0 {
		logrus.Warnf("libos: SharedPageRef release: revoke failed: %v", err)
	}
	r.s.dropRef()
}

/// dropRef decrements the shared refcount and frees the backing page once
/// it, and every other reference, have all gone.
func (s *SharedPage) dropRef() {
	if atomic.AddInt32(s.refs, -1) > 0 {
		return
	}
	s.closeMaster()
}

/// Close drops this reference (the master's, or one obtained via Share).
/// If every other reference has already released, the backing page is
/// freed now; otherwise it is freed when the last one releases.
func (s *SharedPage) Close() {
	if !atomic.CompareAndSwapInt32(&s.closed, 0, 1) {
		return
	}
	s.dropRef()
}

func (s *SharedPage) closeMaster() {
	if _, err := s.k.Cap.RevokeCapability(s.handle); err != 0 {
		logrus.Warnf("libos: SharedPage close: revoke failed for pid=%d addr=0x%x: %v", s.pid, s.addr, err)
	}
	if !s.k.Phys.Free(uint32(s.pid), s.addr) {
		logrus.Warnf("libos: SharedPage close: free failed for pid=%d addr=0x%x", s.pid, s.addr)
	}
}

package captab

import "github.com/exocap/kernel/src/defs"

/// checkScopeLocked enforces that a borrow scoped to borrowScope is legal
/// against a capability owned at ownerScope: borrowScope subset ownerScope.
func checkScopeLocked(borrowScope, ownerScope defs.ScopeKind) defs.Err_t {
	if !borrowScope.Subset(ownerScope) {
		return defs.PermissionDenied
	}
	return 0
}

/// validateForRelease accepts what Validate accepts, plus a handle whose
/// slot is PendingRevoke: a deferred revoke waits on exactly these
/// releases, so they must still go through.
func (t *Table) validateForRelease(h CapabilityHandle) (slot_t, defs.Err_t) {
	if int(h.Index) >= len(t.slots) {
		return slot_t{}, defs.InvalidHandle
	}
	s := t.snapshot(h.Index)
	if (s.State != Live && s.State != PendingRevoke) || s.Generation != h.Generation || !s.Scope.Eq(h.Scope) {
		return slot_t{}, defs.InvalidHandle
	}
	return s, 0
}

/// BorrowSharedRO attempts a shared, read-only borrow of h's resource for
/// tid at borrowScope.
func (t *Table) BorrowSharedRO(h CapabilityHandle, tid defs.ThreadId, borrowScope defs.ScopeKind) defs.Err_t {
	s, err := t.Validate(h)
	if err != 0 {
		return err
	}
	if serr := checkScopeLocked(borrowScope, s.Scope); serr != 0 {
		return serr
	}

	t.wrData.Lock()
	defer t.wrData.Unlock()
	bs := t.borrowStateLocked(s.ResourceId)
	return bs.TryShared(h.Index, tid, s.Rights)
}

/// BorrowExclusive attempts an exclusive borrow of h's resource for tid at
/// borrowScope.
func (t *Table) BorrowExclusive(h CapabilityHandle, tid defs.ThreadId, borrowScope defs.ScopeKind) defs.Err_t {
	s, err := t.Validate(h)
	if err != 0 {
		return err
	}
	if serr := checkScopeLocked(borrowScope, s.Scope); serr != 0 {
		return serr
	}

	t.wrData.Lock()
	defer t.wrData.Unlock()
	bs := t.borrowStateLocked(s.ResourceId)
	return bs.TryExclusive(h.Index, tid, borrowScope, s.Rights, s.ResourceId.Type)
}

/// BorrowSharedFromFrozen attempts a shared re-borrow while the resource's
/// exclusive holder has it frozen; legal only for the freezing thread
/// itself (TryShared already enforces same-thread-while-frozen).
func (t *Table) BorrowSharedFromFrozen(h CapabilityHandle, tid defs.ThreadId, borrowScope defs.ScopeKind) defs.Err_t {
	return t.BorrowSharedRO(h, tid, borrowScope)
}

/// ReleaseShared releases a shared borrow held by tid on h's resource. If
/// this was the last active borrow and a deferred revoke is queued for
/// the resource, the queued revocation completes in this same call.
func (t *Table) ReleaseShared(h CapabilityHandle, tid defs.ThreadId) defs.Err_t {
	s, err := t.validateForRelease(h)
	if err != 0 {
		return err
	}

	t.wrData.Lock()
	defer t.wrData.Unlock()
	bs := t.borrowStateLocked(s.ResourceId)
	if rerr := bs.ReleaseShared(h.Index, tid); rerr != 0 {
		return rerr
	}
	t.completeDeferredLocked(s.ResourceId)
	return 0
}

/// ReleaseExclusive releases the exclusive borrow held by tid on h's
/// resource, completing any queued deferred revoke if this was the last
/// active borrow.
func (t *Table) ReleaseExclusive(h CapabilityHandle, tid defs.ThreadId) defs.Err_t {
	s, err := t.validateForRelease(h)
	if err != 0 {
		return err
	}

	t.wrData.Lock()
	defer t.wrData.Unlock()
	bs := t.borrowStateLocked(s.ResourceId)
	if rerr := bs.ReleaseExclusive(h.Index, tid); rerr != 0 {
		return rerr
	}
	t.completeDeferredLocked(s.ResourceId)
	return 0
}

/// FreezeExclusive lets tid, the current exclusive holder of h's resource,
/// temporarily permit same-thread shared re-borrows.
func (t *Table) FreezeExclusive(h CapabilityHandle, tid defs.ThreadId) defs.Err_t {
	s, err := t.Validate(h)
	if err != 0 {
		return err
	}
	t.wrData.Lock()
	defer t.wrData.Unlock()
	return t.borrowStateLocked(s.ResourceId).Freeze(h.Index, tid)
}

/// UnfreezeExclusive undoes one FreezeExclusive. If this drops
/// FrozenCount to zero, any deferred revoke queued for the resource (and
/// blocked only on the freeze) completes here.
func (t *Table) UnfreezeExclusive(h CapabilityHandle, tid defs.ThreadId) defs.Err_t {
	s, err := t.validateForRelease(h)
	if err != 0 {
		return err
	}
	t.wrData.Lock()
	defer t.wrData.Unlock()
	bs := t.borrowStateLocked(s.ResourceId)
	if uerr := bs.Unfreeze(h.Index, tid); uerr != 0 {
		return uerr
	}
	t.completeDeferredLocked(s.ResourceId)
	return 0
}

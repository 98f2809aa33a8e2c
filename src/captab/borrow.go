package captab

import "github.com/exocap/kernel/src/defs"

/// sharedBorrow_t is one entry in ResourceBorrowState.Shared.
type sharedBorrow_t struct {
	CapIdx uint32
	Tid    defs.ThreadId
}

/// exclusiveBorrow_t is the single exclusive borrow a resource may hold.
type exclusiveBorrow_t struct {
	CapIdx uint32
	Tid    defs.ThreadId
	Scope  defs.ScopeKind
}

/// ResourceBorrowState is the borrow arbitration state for one resource,
/// shared by every capability that names it (per spec: borrowing is
/// resource-level, not capability-level). Freeze lets the current
/// exclusive holder take out same-thread shared re-borrows without
/// releasing the exclusive borrow itself.
type ResourceBorrowState struct {
	Shared      []sharedBorrow_t
	Exclusive   *exclusiveBorrow_t
	FrozenCount uint32
}

/// HasActive reports whether any shared borrow, exclusive borrow or
/// freeze is currently outstanding on the resource.
func (s *ResourceBorrowState) HasActive() bool {
	return len(s.Shared) > 0 || s.Exclusive != nil || s.FrozenCount > 0
}

func (s *ResourceBorrowState) hasDup(capIdx uint32, tid defs.ThreadId) bool {
	for _, e := range s.Shared {
		if e.CapIdx == capIdx && e.Tid == tid {
			return true
		}
	}
	return false
}

/// TryShared attempts a shared borrow. It requires READ in caps, and
/// requires that either no exclusive borrow is outstanding, or the
/// resource is frozen by the very thread requesting the shared borrow.
func (s *ResourceBorrowState) TryShared(capIdx uint32, tid defs.ThreadId, caps defs.Rights) defs.Err_t {
	if !caps.Has(defs.READ) {
		return defs.PermissionDenied
	}
	if s.Exclusive != nil {
		if !(s.FrozenCount > 0 && s.Exclusive.Tid == tid) {
			return defs.BorrowConflict
		}
	}
	if s.hasDup(capIdx, tid) {
		return defs.AlreadyBorrowed
	}
	if len(s.Shared) >= maxSharedBorrows {
		return defs.TooManyBorrows
	}
	s.Shared = append(s.Shared, sharedBorrow_t{CapIdx: capIdx, Tid: tid})
	return 0
}

/// TryExclusive attempts an exclusive borrow. It requires the rights
/// RequiredExclusiveRights(rty) demands, and requires the resource to be
/// completely idle (no shared borrows, no existing exclusive, not frozen).
func (s *ResourceBorrowState) TryExclusive(capIdx uint32, tid defs.ThreadId, scope defs.ScopeKind, caps defs.Rights, rty defs.ResourceType) defs.Err_t {
	need := defs.RequiredExclusiveRights(rty)
	if !caps.Has(need) {
		return defs.PermissionDenied
	}
	if len(s.Shared) > 0 || s.Exclusive != nil || s.FrozenCount > 0 {
		return defs.BorrowConflict
	}
	s.Exclusive = &exclusiveBorrow_t{CapIdx: capIdx, Tid: tid, Scope: scope}
	return 0
}

/// ReleaseShared removes the (capIdx, tid) shared borrow entry.
func (s *ResourceBorrowState) ReleaseShared(capIdx uint32, tid defs.ThreadId) defs.Err_t {
	for i, e := range s.Shared {
		if e.CapIdx == capIdx && e.Tid == tid {
			s.Shared = append(s.Shared[:i], s.Shared[i+1:]...)
			return 0
		}
	}
	return defs.NotBorrowed
}

/// ReleaseExclusive clears the exclusive borrow held by (capIdx, tid). It
/// fails while the borrow is frozen.
func (s *ResourceBorrowState) ReleaseExclusive(capIdx uint32, tid defs.ThreadId) defs.Err_t {
	if s.Exclusive == nil || s.Exclusive.CapIdx != capIdx || s.Exclusive.Tid != tid {
		return defs.NotBorrowed
	}
	if s.FrozenCount > 0 {
		return defs.StillFrozen
	}
	s.Exclusive = nil
	return 0
}

/// Freeze increments FrozenCount on the exclusive borrow held by
/// (capIdx, tid), enabling same-thread shared re-borrows.
func (s *ResourceBorrowState) Freeze(capIdx uint32, tid defs.ThreadId) defs.Err_t {
	if s.Exclusive == nil || s.Exclusive.CapIdx != capIdx || s.Exclusive.Tid != tid {
		return defs.NotBorrowed
	}
	s.FrozenCount++
	return 0
}

/// Unfreeze decrements FrozenCount, requiring it be positive.
func (s *ResourceBorrowState) Unfreeze(capIdx uint32, tid defs.ThreadId) defs.Err_t {
	if s.Exclusive == nil || s.Exclusive.CapIdx != capIdx || s.Exclusive.Tid != tid {
		return defs.NotBorrowed
	}
	if s.FrozenCount == 0 {
		return defs.NotFrozen
	}
	s.FrozenCount--
	return 0
}

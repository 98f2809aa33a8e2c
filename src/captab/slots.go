package captab

import (
	"github.com/exocap/kernel/src/defs"
	"github.com/exocap/kernel/src/util"
)

/// allocSlotLocked pops a free index and writes a fresh Live entry into
/// roData. Caller must hold wrData; this method takes roData's write lock
/// itself, honoring the strict wrData-then-roData ordering.
func (t *Table) allocSlotLocked(rid defs.ResourceId, pid defs.ProcessId, rights defs.Rights, scope defs.ScopeKind) (uint32, uint32, defs.Err_t) {
	n := len(t.rw.freeSlots)
	if n == 0 {
		return 0, 0, defs.TableFull
	}
	idx := t.rw.freeSlots[n-1]
	t.rw.freeSlots = t.rw.freeSlots[:n-1]

	t.roData.Lock()
	gen := t.slots[idx].Generation
	t.slots[idx] = slot_t{
		ResourceId:    rid,
		OwnerPid:      pid,
		Rights:        rights,
		Generation:    gen,
		State:         Live,
		CreatedAt:     t.now(),
		CreationOrder: t.nextCreationOrder(),
		Scope:         scope,
	}
	t.roData.Unlock()

	return idx, gen, 0
}

/// freeSlotLocked transitions a slot to Free: bumps its generation
/// (invariant I5), detaches every index that referenced it, invalidates
/// per-CPU caches, and returns it to the free stack. Caller must hold
/// wrData.
func (t *Table) freeSlotLocked(idx uint32) {
	t.roData.Lock()
	s := &t.slots[idx]
	rid := s.ResourceId
	pid := s.OwnerPid
	scope := s.Scope
	s.State = Free
	s.Generation = util.WrapIncrement(s.Generation)
	t.roData.Unlock()

	t.quickRemoveLocked(pid, rid, idx)
	if scope.Class == defs.Process {
		t.processCapsRemoveLocked(pid, idx)
	} else {
		t.scopeIndexRemoveLocked(idx, scope)
	}
	t.detachChildLocked(idx)
	t.rw.freeSlots = append(t.rw.freeSlots, idx)
	t.cacheInvalidateAll(idx)
}

/// snapshot copies out slot idx's entry under roData's read lock, which it
/// takes itself. Callers may hold wrData but must not hold roData.
func (t *Table) snapshot(idx uint32) slot_t {
	t.roData.RLock()
	defer t.roData.RUnlock()
	return t.slots[idx]
}

/// Validate checks a handle against the live slot array: index in range,
/// state Live, generation and scope matching. Any mismatch is
/// InvalidHandle.
func (t *Table) Validate(h CapabilityHandle) (slot_t, defs.Err_t) {
	if int(h.Index) >= len(t.slots) {
		return slot_t{}, defs.InvalidHandle
	}
	s := t.snapshot(h.Index)
	if s.State != Live || s.Generation != h.Generation || !s.Scope.Eq(h.Scope) {
		return slot_t{}, defs.InvalidHandle
	}
	return s, 0
}

func (t *Table) handleFor(idx, gen uint32, scope defs.ScopeKind, creationOrder uint64, tag AccessTag) CapabilityHandle {
	return CapabilityHandle{Index: idx, Generation: gen, Scope: scope, CreationOrder: creationOrder, Tag: tag}
}

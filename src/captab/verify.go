package captab

import "github.com/exocap/kernel/src/defs"

/// VerifyCapability checks whether pid currently holds required rights on
/// rid. It tries the wait-free per-CPU cache first, then quick_cache under
/// wrData, and only falls back to a full linear table scan as a last,
/// diagnostic resort (e.g. to recover from a cold per-CPU cache after a
/// migration).
func (t *Table) VerifyCapability(pid defs.ProcessId, rid defs.ResourceId, required defs.Rights) bool {
	if t.VerifyFast(pid, rid, required) {
		return true
	}

	t.wrData.Lock()
	idx, ok := t.quickLookupLocked(pid, rid)
	t.wrData.Unlock()
	if ok {
		s := t.snapshot(idx)
		if s.State == Live && s.Rights.Has(required) {
			t.cachePut(uint32(pid), rid.FastHash(), idx)
			return true
		}
	}

	return t.verifyScan(pid, rid, required)
}

/// LookupHandle returns the live handle bound to (pid, rid), if one
/// exists, via the same quick_cache path preCheck uses. It is the public
/// counterpart callers outside this package need when they already know
/// a capability was bound and want the handle back, e.g. to rewrap an
/// existing physical page in a LibOS type.
func (t *Table) LookupHandle(pid defs.ProcessId, rid defs.ResourceId) (CapabilityHandle, bool) {
	t.wrData.Lock()
	idx, ok := t.quickLookupLocked(pid, rid)
	t.wrData.Unlock()
	if !ok {
		return CapabilityHandle{}, false
	}
	s := t.snapshot(idx)
	if s.State != Live {
		return CapabilityHandle{}, false
	}
	return t.handleFor(idx, s.Generation, s.Scope, s.CreationOrder, tagFor(s.Rights)), true
}

/// verifyScan is the diagnostic last resort: a linear walk of the whole
/// slot array. It exists so that a broken or evicted index never makes a
/// held capability unverifiable, at the cost of O(MaxCapabilities).
func (t *Table) verifyScan(pid defs.ProcessId, rid defs.ResourceId, required defs.Rights) bool {
	t.roData.RLock()
	defer t.roData.RUnlock()
	for i := range t.slots {
		s := &t.slots[i]
		if s.State == Live && s.OwnerPid == pid && s.ResourceId == rid && s.Rights.Has(required) {
			return true
		}
	}
	return false
}

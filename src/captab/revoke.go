package captab

import (
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/exocap/kernel/src/defs"
)

/// RevokeMode selects how revoke_capability behaves when it meets a slot
/// whose resource has an active borrow.
type RevokeMode uint8

const (
	Strict RevokeMode = iota
	Deferred
)

/// RevokeCapability performs a strict, children-first DFS revocation of h
/// and its delegated subtree. If any visited slot's resource has an
/// active borrow, the whole call aborts with BorrowConflict, leaving
/// already-revoked descendants revoked.
func (t *Table) RevokeCapability(h CapabilityHandle) (int, defs.Err_t) {
	return t.revoke(h, Strict)
}

/// RevokeCapabilityDeferred performs the same children-first DFS, but a
/// slot whose resource has an active borrow is marked PendingRevoke and
/// queued instead of blocking the call; it completes automatically once
/// the last borrow on its resource releases (see completeDeferredLocked).
func (t *Table) RevokeCapabilityDeferred(h CapabilityHandle) (int, defs.Err_t) {
	return t.revoke(h, Deferred)
}

func (t *Table) revoke(h CapabilityHandle, mode RevokeMode) (int, defs.Err_t) {
	if _, err := t.Validate(h); err != 0 {
		return 0, err
	}

	t.wrData.Lock()
	defer t.wrData.Unlock()

	freed := 0
	err := t.revokeSubtreeLocked(h.Index, mode, &freed)
	return freed, err
}

/// revokeSubtreeLocked visits idx's children before idx itself (children-
/// first DFS), so that no orphaned grant ever outlives its grantor. Caller
/// must hold wrData.
func (t *Table) revokeSubtreeLocked(idx uint32, mode RevokeMode, freed *int) defs.Err_t {
	children := append([]uint32(nil), t.childrenOf[idx]...)
	for _, c := range children {
		if err := t.revokeSubtreeLocked(c, mode, freed); err != 0 {
			return err
		}
	}

	s := t.snapshot(idx)
	if s.State != Live {
		return 0
	}
	bs := t.borrowStateLocked(s.ResourceId)
	if bs.HasActive() {
		switch mode {
		case Strict:
			return defs.BorrowConflict
		case Deferred:
			t.roData.Lock()
			t.slots[idx].State = PendingRevoke
			t.roData.Unlock()
			t.pendingRevoke[s.ResourceId] = append(t.pendingRevoke[s.ResourceId], idx)
			logrus.Debugf("captab: deferred revoke queued idx=%d rid=%v", idx, s.ResourceId)
			return 0
		}
	}

	t.freeSlotLocked(idx)
	*freed++
	logrus.Debugf("captab: revoked idx=%d rid=%v pid=%d", idx, s.ResourceId, s.OwnerPid)
	return 0
}

/// completeDeferredLocked is invoked after a borrow release: if rid has no
/// pending revocations or still has active borrows, it is a no-op.
/// Otherwise every queued slot is revoked immediately, in the same lock
/// epoch as the release that unblocked it (invariant P5). Caller must hold
/// wrData.
func (t *Table) completeDeferredLocked(rid defs.ResourceId) {
	pending := t.pendingRevoke[rid]
	if len(pending) == 0 {
		return
	}
	bs := t.borrowStateLocked(rid)
	if bs.HasActive() {
		return
	}
	delete(t.pendingRevoke, rid)
	for _, idx := range pending {
		if t.snapshot(idx).State == PendingRevoke {
			t.freeSlotLocked(idx)
			logrus.Debugf("captab: completed deferred revoke idx=%d rid=%v", idx, rid)
		}
	}
}

/// OnProcessExit drains process_caps[pid], revoking in strict, reverse
/// creation-order DFS (deterministic RAII teardown), and returns the
/// number of slots actually freed.
func (t *Table) OnProcessExit(pid defs.ProcessId) int {
	t.wrData.Lock()
	idxs := append([]uint32(nil), t.processCaps[pid]...)
	t.wrData.Unlock()
	return t.revokeScopeSet(idxs)
}

/// OnThreadExit drains thread_caps[tid] the same way.
func (t *Table) OnThreadExit(tid defs.ThreadId) int {
	t.wrData.Lock()
	idxs := append([]uint32(nil), t.threadCaps[tid]...)
	t.wrData.Unlock()
	return t.revokeScopeSet(idxs)
}

/// OnSyscallReturn drains syscall_caps[(tid, seq)] the same way.
func (t *Table) OnSyscallReturn(tid defs.ThreadId, seq uint64) int {
	t.wrData.Lock()
	idxs := append([]uint32(nil), t.syscallCaps[syscallKey{Tid: tid, Seq: seq}]...)
	t.wrData.Unlock()
	return t.revokeScopeSet(idxs)
}

/// revokeScopeSet sorts the candidate indices by creation_order descending
/// (property P7) and strict-DFS-revokes each still-live one, tolerating
/// ones already removed as part of an earlier entry's subtree.
func (t *Table) revokeScopeSet(idxs []uint32) int {
	type ordered struct {
		idx   uint32
		order uint64
	}
	items := make([]ordered, 0, len(idxs))
	for _, idx := range idxs {
		items = append(items, ordered{idx: idx, order: t.snapshot(idx).CreationOrder})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].order > items[j].order })

	freed := 0
	for _, it := range items {
		t.wrData.Lock()
		if t.snapshot(it.idx).State == Live {
			var n int
			_ = t.revokeSubtreeLocked(it.idx, Strict, &n)
			freed += n
		}
		t.wrData.Unlock()
	}
	return freed
}

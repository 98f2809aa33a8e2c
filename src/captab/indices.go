package captab

import "github.com/exocap/kernel/src/defs"

/// quickAddLocked inserts idx into the (pid, rid) reverse index. Caller
/// must hold wrData.
func (t *Table) quickAddLocked(pid defs.ProcessId, rid defs.ResourceId, idx uint32) {
	k := qkey_t{Pid: pid, Rid: rid}
	list, _ := t.quickCach.Get(k)
	list = append(list, idx)
	t.quickCach.Set(k, list)
}

/// quickRemoveLocked deletes idx from the (pid, rid) reverse index,
/// dropping the key entirely once its list empties.
func (t *Table) quickRemoveLocked(pid defs.ProcessId, rid defs.ResourceId, idx uint32) {
	k := qkey_t{Pid: pid, Rid: rid}
	list, ok := t.quickCach.Get(k)
	if !ok {
		return
	}
	list = removeFromSlice(list, idx)
	if len(list) == 0 {
		t.quickCach.Del(k)
	} else {
		t.quickCach.Set(k, list)
	}
}

/// quickLookupLocked returns a live slot index already bound to (pid, rid),
/// if one exists. It is the basis of bind_resource_*'s duplicate-avoiding
/// pre-check (invariant P1).
func (t *Table) quickLookupLocked(pid defs.ProcessId, rid defs.ResourceId) (uint32, bool) {
	list, ok := t.quickCach.Get(qkey_t{Pid: pid, Rid: rid})
	if !ok {
		return 0, false
	}
	for _, idx := range list {
		if t.snapshot(idx).State == Live {
			return idx, true
		}
	}
	return 0, false
}

func (t *Table) processCapsAddLocked(pid defs.ProcessId, idx uint32) {
	t.processCaps[pid] = append(t.processCaps[pid], idx)
}

func (t *Table) processCapsRemoveLocked(pid defs.ProcessId, idx uint32) {
	t.processCaps[pid] = removeFromSlice(t.processCaps[pid], idx)
	if len(t.processCaps[pid]) == 0 {
		delete(t.processCaps, pid)
	}
}

/// linkChildLocked registers the parent->child delegation edge, enforcing
/// the 32-children cap (invariant P3).
func (t *Table) linkChildLocked(parent, child uint32) defs.Err_t {
	if len(t.childrenOf[parent]) >= maxChildren {
		return defs.TooManyChildren
	}
	t.childrenOf[parent] = append(t.childrenOf[parent], child)
	t.parentOf[child] = parent
	return 0
}

/// detachChildLocked removes idx from the delegation graph: it is dropped
/// from its parent's child list (if any) and its own child list entry is
/// discarded (children are expected to already be gone by the time a
/// parent is freed, per children-first DFS revocation).
func (t *Table) detachChildLocked(idx uint32) {
	if parent, ok := t.parentOf[idx]; ok {
		t.childrenOf[parent] = removeFromSlice(t.childrenOf[parent], idx)
		delete(t.parentOf, idx)
	}
	delete(t.childrenOf, idx)
}

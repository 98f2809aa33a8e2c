package captab

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/exocap/kernel/src/defs"
)

func qkeyGroupKey(pid defs.ProcessId, rid defs.ResourceId) string {
	return fmt.Sprintf("%d:%d:%d", pid, rid.Type, rid.Id)
}

/// preCheck looks for a live handle already bound to (pid, rid) rather
/// than minting a duplicate (invariant P1). Only when the calling CPU's
/// validation cache reports a hit does it take wrData, briefly, to read
/// the slot index from quick_cache. A miss here is not final: bindCore
/// re-checks quick_cache under wrData inside its singleflight closure
/// before allocating.
func (t *Table) preCheck(pid defs.ProcessId, rid defs.ResourceId, required defs.Rights) (CapabilityHandle, bool) {
	if t.VerifyFast(pid, rid, required) {
		t.wrData.Lock()
		idx, ok := t.quickLookupLocked(pid, rid)
		t.wrData.Unlock()
		if ok {
			s := t.snapshot(idx)
			return t.handleFor(idx, s.Generation, s.Scope, s.CreationOrder, tagFor(s.Rights)), true
		}
	}
	return CapabilityHandle{}, false
}

func tagFor(r defs.Rights) AccessTag {
	if r.Has(defs.WRITE | defs.MAP) {
		return Exclusive
	}
	return ReadOnly
}

/// bindCore allocates (or finds) a live capability for (pid, rid), links
/// it under parent if given, and registers it in every index the scope
/// requires.
func (t *Table) bindCore(pid defs.ProcessId, rid defs.ResourceId, caps defs.Rights, scope defs.ScopeKind, parent *CapabilityHandle, tag AccessTag) (CapabilityHandle, defs.Err_t) {
	if h, ok := t.preCheck(pid, rid, caps); ok {
		return h, 0
	}

	key := qkeyGroupKey(pid, rid)
	v, err, _ := t.bindGroup.Do(key, func() (interface{}, error) {
		t.wrData.Lock()
		defer t.wrData.Unlock()

		if idx, ok := t.quickLookupLocked(pid, rid); ok {
			s := t.snapshot(idx)
			return t.handleFor(idx, s.Generation, s.Scope, s.CreationOrder, tagFor(s.Rights)), nil
		}

		var parentIdx uint32
		hasParent := false
		if parent != nil {
			if _, verr := t.Validate(*parent); verr != 0 {
				return CapabilityHandle{}, verr
			}
			parentIdx = parent.Index
			hasParent = true
		}

		idx, gen, aerr := t.allocSlotLocked(rid, pid, caps, scope)
		if aerr != 0 {
			return CapabilityHandle{}, aerr
		}

		t.quickAddLocked(pid, rid, idx)
		if scope.Class == defs.Process {
			t.processCapsAddLocked(pid, idx)
		} else {
			t.scopeIndexAddLocked(idx, scope)
		}
		t.borrowStateLocked(rid)

		if hasParent {
			if lerr := t.linkChildLocked(parentIdx, idx); lerr != 0 {
				t.freeSlotLocked(idx)
				return CapabilityHandle{}, lerr
			}
		}

		creationOrder := t.snapshot(idx).CreationOrder
		t.cachePut(uint32(pid), rid.FastHash(), idx)
		logrus.Debugf("captab: bind pid=%d rid=%v caps=%v scope=%v idx=%d gen=%d", pid, rid, caps, scope, idx, gen)
		return t.handleFor(idx, gen, scope, creationOrder, tag), nil
	})
	if err != nil {
		return CapabilityHandle{}, err.(defs.Err_t)
	}
	return v.(CapabilityHandle), 0
}

/// BindResourceReadonly binds a fresh read-only capability for (pid, rid).
func (t *Table) BindResourceReadonly(pid defs.ProcessId, rid defs.ResourceId, caps defs.Rights, scope defs.ScopeKind, parent *CapabilityHandle) (CapabilityHandle, defs.Err_t) {
	return t.bindCore(pid, rid, caps, scope, parent, ReadOnly)
}

/// BindResourceExclusive binds a fresh exclusive capability for (pid, rid).
func (t *Table) BindResourceExclusive(pid defs.ProcessId, rid defs.ResourceId, caps defs.Rights, scope defs.ScopeKind, parent *CapabilityHandle) (CapabilityHandle, defs.Err_t) {
	return t.bindCore(pid, rid, caps, scope, parent, Exclusive)
}

/// BindResourceScoped is the general entry point: the handle's access tag
/// follows the requested rights (WRITE|MAP implies Exclusive, else
/// ReadOnly), and any ScopeKind is accepted.
func (t *Table) BindResourceScoped(pid defs.ProcessId, rid defs.ResourceId, caps defs.Rights, scope defs.ScopeKind, parent *CapabilityHandle) (CapabilityHandle, defs.Err_t) {
	return t.bindCore(pid, rid, caps, scope, parent, tagFor(caps))
}

package captab

import (
	"github.com/sirupsen/logrus"

	"github.com/exocap/kernel/src/defs"
)

/// grantCore validates that grantor holds rid with GRANT plus every right
/// in want, then binds a child capability for grantee under the grantor's
/// slot with want & TransferableMask (GRANT itself never propagates).
func (t *Table) grantCore(grantor CapabilityHandle, grantee defs.ProcessId, rid defs.ResourceId, want defs.Rights, tag AccessTag) (CapabilityHandle, defs.Err_t) {
	gs, err := t.Validate(grantor)
	if err != 0 {
		return CapabilityHandle{}, err
	}
	if gs.ResourceId != rid {
		return CapabilityHandle{}, defs.ResourceNotFound
	}
	if !gs.Rights.Has(defs.GRANT | want) {
		return CapabilityHandle{}, defs.PermissionDenied
	}

	childRights := want & defs.TransferableMask
	h, berr := t.bindCore(grantee, rid, childRights, gs.Scope, &grantor, tag)
	if berr != 0 {
		return CapabilityHandle{}, berr
	}
	logrus.Debugf("captab: grant %v from pid=%d to pid=%d rid=%v", childRights, gs.OwnerPid, grantee, rid)
	return h, 0
}

/// GrantReadonly derives a read-only child capability for grantee from
/// grantor's live capability on rid.
func (t *Table) GrantReadonly(grantor CapabilityHandle, grantee defs.ProcessId, rid defs.ResourceId) (CapabilityHandle, defs.Err_t) {
	return t.grantCore(grantor, grantee, rid, defs.READ, ReadOnly)
}

/// GrantExclusive derives an exclusive child capability for grantee from
/// grantor's live capability on rid.
func (t *Table) GrantExclusive(grantor CapabilityHandle, grantee defs.ProcessId, rid defs.ResourceId) (CapabilityHandle, defs.Err_t) {
	return t.grantCore(grantor, grantee, rid, defs.READ|defs.WRITE|defs.MAP|defs.DELETE, Exclusive)
}

/// TransferResource requires TRANSFER on the source capability. It strict-
/// DFS-revokes the source subtree, then binds a fresh capability to the
/// grantee carrying the transferred rights: exclusive if WRITE|MAP were
/// among them, otherwise read-only.
func (t *Table) TransferResource(from CapabilityHandle, to defs.ProcessId, rid defs.ResourceId) (CapabilityHandle, defs.Err_t) {
	fs, err := t.Validate(from)
	if err != 0 {
		return CapabilityHandle{}, err
	}
	if fs.ResourceId != rid {
		return CapabilityHandle{}, defs.ResourceNotFound
	}
	if !fs.Rights.Has(defs.TRANSFER) {
		return CapabilityHandle{}, defs.PermissionDenied
	}
	transferred := fs.Rights & defs.TransferableMask

	if _, rerr := t.RevokeCapability(from); rerr != 0 {
		return CapabilityHandle{}, rerr
	}

	tag := ReadOnly
	if transferred.Has(defs.WRITE | defs.MAP) {
		tag = Exclusive
	}
	h, berr := t.bindCore(to, rid, transferred, fs.Scope, nil, tag)
	if berr != 0 {
		return CapabilityHandle{}, berr
	}
	logrus.Debugf("captab: transfer rid=%v pid=%d -> pid=%d rights=%v", rid, fs.OwnerPid, to, transferred)
	return h, 0
}

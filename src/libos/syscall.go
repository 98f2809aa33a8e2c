package libos

import (
	"github.com/exocap/kernel/src/captab"
	"github.com/exocap/kernel/src/defs"
	"github.com/exocap/kernel/src/mem"
)

/// Syscall is the LibOS entry surface: every operation is attributed to
/// one (pid, tid) pair, mirroring a real syscall's implicit caller
/// context, and every capability it binds is scoped to that caller unless
/// the operation says otherwise.
type Syscall struct {
	k   *Kernel
	pid defs.ProcessId
	tid defs.ThreadId
}

/// NewSyscall opens a syscall surface bound to a single (process, thread)
/// caller.
func NewSyscall(k *Kernel, pid defs.ProcessId, tid defs.ThreadId) *Syscall {
	return &Syscall{k: k, pid: pid, tid: tid}
}

/// AllocPage allocates one physical page owned by the caller.
func (s *Syscall) AllocPage() (*OwnedPage, defs.Err_t) {
	return AllocPage(s.k, s.pid)
}

/// AllocPages allocates up to n physical pages owned by the caller,
/// returning a partial vector if memory pressure stops it partway through.
func (s *Syscall) AllocPages(n int) (*PageVec, defs.Err_t) {
	return AllocPages(s.k, s.pid, n)
}

/// AllocSharedPage allocates one physical page the caller may later fan
/// out read-only references to via SharedPage.GrantReadonly.
func (s *Syscall) AllocSharedPage() (*SharedPage, defs.Err_t) {
	return AllocSharedPage(s.k, s.pid)
}

// rwMapRights is the fixed pre-existing right set page_from_addr requires of
// the caller's capability: ownership without it isn't enough to rewrap the
// page.
const rwMapRights = defs.READ | defs.WRITE | defs.MAP

/// PageFromAddr rewraps an already-owned page at addr as an *OwnedPage,
/// failing with InvalidHandle if the caller holds no live capability over
/// it, or PermissionDenied if it lacks the pre-existing RW|MAP rights.
func (s *Syscall) PageFromAddr(addr mem.Pa_t) (*OwnedPage, defs.Err_t) {
	rid := pageResource(addr)
	h, ok := s.k.Cap.LookupHandle(s.pid, rid)
	if !ok {
		return nil, defs.InvalidHandle
	}
	if snap, err := s.k.Cap.Validate(h); err != 0 || !snap.Rights.Has(rwMapRights) {
		if err != 0 {
			return nil, err
		}
		return nil, defs.PermissionDenied
	}
	return ownedFromHandle(s.k, s.pid, addr, h), 0
}

/// GrantPageReadonly derives a read-only capability for grantee on the
/// page the caller owns via own.
func (s *Syscall) GrantPageReadonly(own *OwnedPage, grantee defs.ProcessId) (captab.CapabilityHandle, defs.Err_t) {
	return s.k.Cap.GrantReadonly(own.handle, grantee, pageResource(own.addr))
}

/// GrantPageExclusive derives an exclusive capability for grantee on the
/// page the caller owns via own.
func (s *Syscall) GrantPageExclusive(own *OwnedPage, grantee defs.ProcessId) (captab.CapabilityHandle, defs.Err_t) {
	return s.k.Cap.GrantExclusive(own.handle, grantee, pageResource(own.addr))
}

/// TransferPage hands own's page to newPid; own must not be used again
/// after a successful call.
func (s *Syscall) TransferPage(own *OwnedPage, newPid defs.ProcessId) (*OwnedPage, defs.Err_t) {
	return own.TransferTo(newPid)
}

/// SystemInfo is the system_info() payload: current capability-table
/// occupancy and physical-page availability, for diagnostics and the
/// pprof export path.
type SystemInfo struct {
	Capabilities captab.Stats
	FreePages    int
	TotalPages   int
	PageSize     int
}

/// SystemInfo snapshots the kernel's current capability and physical-page
/// accounting.
func (s *Syscall) SystemInfo() SystemInfo {
	return SystemInfo{
		Capabilities: s.k.Cap.Stats(),
		FreePages:    s.k.Phys.FreePages(),
		TotalPages:   s.k.Phys.TotalPages,
		PageSize:     mem.PGSIZE,
	}
}

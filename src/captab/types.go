// Package captab is the capability table: a split data structure pairing a
// read-mostly array of slot entries (the source of truth, guarded by
// roData) with a write-side index of free slots, owner/scope reverse
// indices, the delegation graph, per-resource borrow state and the
// deferred-revoke queue (all guarded by wrData). Per-CPU validation caches
// sit beside both and are the wait-free fast path for verify.
//
// Lock order is strict and never inverted: acquire wrData before taking
// roData's write lock; roData's read lock may be taken while holding
// wrData, never the other way around.
package captab

import (
	"github.com/exocap/kernel/src/defs"
)

/// AccessTag is a phantom, type-level marker on CapabilityHandle: it shapes
/// the LibOS facade's API (OwnedPage vs BorrowedPageRO vs a frozen-shared
/// borrow) but is never consulted by the table itself.
type AccessTag uint8

const (
	ReadOnly AccessTag = iota
	Exclusive
	FrozenShared
)

/// SlotState is the lifecycle state of one capability table slot.
type SlotState uint8

const (
	Free SlotState = iota
	Allocating
	Live
	PendingRevoke
)

func (s SlotState) String() string {
	switch s {
	case Free:
		return "free"
	case Allocating:
		return "allocating"
	case Live:
		return "live"
	case PendingRevoke:
		return "pending_revoke"
	}
	return "unknown"
}

/// maxChildren bounds the delegation fan-out of a single parent.
const maxChildren = 32

/// maxSharedBorrows bounds ResourceBorrowState.Shared, per spec ("capped at
/// 2^16-1").
const maxSharedBorrows = 1<<16 - 1

/// slot_t is one entry in the read-mostly slot array. On a 64-bit build
/// its fields take 72 bytes and the pad field brings it to 80, which is
/// not a multiple of a 64-byte cache line: entries are not cache-line
/// aligned, and adjacent slots can share a line.
type slot_t struct {
	ResourceId    defs.ResourceId
	OwnerPid      defs.ProcessId
	Rights        defs.Rights
	Generation    uint32
	State         SlotState
	CreatedAt     int64
	CreationOrder uint64
	Scope         defs.ScopeKind
	pad           [8]byte
}

/// CapabilityHandle is an opaque, unforgeable reference into the table.
/// Validation compares (Index, Generation, Scope) against the live slot;
/// any mismatch is InvalidHandle. Tag is purely type-level.
type CapabilityHandle struct {
	Index         uint32
	Generation    uint32
	Scope         defs.ScopeKind
	CreationOrder uint64
	Tag           AccessTag
}

/// Pack encodes the handle's (generation, index) pair into the 64-bit
/// representation used by wire-level callers. This is a representation
/// detail, not part of the handle's contract: Validate never consults it.
func (h CapabilityHandle) Pack() uint64 {
	return uint64(h.Generation)<<32 | uint64(h.Index)
}

/// Unpack splits a packed 64-bit value back into (generation, index).
func Unpack(v uint64) (generation uint32, index uint32) {
	return uint32(v >> 32), uint32(v)
}

/// ResourceId is re-exported for callers that only import captab.
type ResourceId = defs.ResourceId

/// Rights is re-exported for callers that only import captab.
type Rights = defs.Rights

/// rwCounters tracks the LIFO free-slot stack. All access happens while
/// the owning Table's wrData mutex is held; it has no lock of its own.
type rwCounters struct {
	freeSlots []uint32
}

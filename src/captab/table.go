package captab

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/exocap/kernel/src/defs"
	"github.com/exocap/kernel/src/hashtable"
)

/// MaxCapabilities bounds a Table instance. The reference kernel uses 8192
/// slots; this is a fixed compile-time bound, not a resizable capacity.
const MaxCapabilities = 8192

/// qkey_t is the quick_cache key: an (owner pid, resource id) pair.
type qkey_t struct {
	Pid defs.ProcessId
	Rid defs.ResourceId
}

func qkeyHash(k qkey_t) uint64 {
	return uint64(k.Pid)*1099511628211 ^ k.Rid.FastHash()
}

/// Table is the capability table: roData is the read-mostly slot array,
/// wrData is everything else (free list, indices, delegation graph, borrow
/// states, deferred-revoke queue). percpu sits beside both as the
/// lock-free verification fast path.
type Table struct {
	roData sync.RWMutex
	slots  []slot_t

	wrData    sync.Mutex
	rw        rwCounters
	quickCach *hashtable.Hashtable_t[qkey_t, []uint32]

	processCaps map[defs.ProcessId][]uint32
	threadCaps  map[defs.ThreadId][]uint32
	syscallCaps map[syscallKey][]uint32

	childrenOf map[uint32][]uint32
	parentOf   map[uint32]uint32

	resourceBorrows map[defs.ResourceId]*ResourceBorrowState
	pendingRevoke   map[defs.ResourceId][]uint32

	creationSeq uint64 // atomic

	percpu []percpuCache

	// bindGroup collapses concurrent bind_resource_* calls for the same
	// (pid, rid) so that only one goroutine actually allocates a slot;
	// the rest observe the winner's handle, which is what the spec's
	// "pre-check ... instead of creating a duplicate" requires under
	// concurrency (invariant P1).
	bindGroup singleflight.Group
}

type syscallKey struct {
	Tid defs.ThreadId
	Seq uint64
}

/// NewTable allocates a Table with every slot Free and every index empty.
func NewTable() *Table {
	t := &Table{
		slots:           make([]slot_t, MaxCapabilities),
		quickCach:       hashtable.New[qkey_t, []uint32](1024, qkeyHash),
		processCaps:     make(map[defs.ProcessId][]uint32),
		threadCaps:      make(map[defs.ThreadId][]uint32),
		syscallCaps:     make(map[syscallKey][]uint32),
		childrenOf:      make(map[uint32][]uint32),
		parentOf:        make(map[uint32]uint32),
		resourceBorrows: make(map[defs.ResourceId]*ResourceBorrowState),
		pendingRevoke:   make(map[defs.ResourceId][]uint32),
		percpu:          make([]percpuCache, numCPUCaches),
	}
	t.rw.freeSlots = make([]uint32, MaxCapabilities)
	for i := range t.rw.freeSlots {
		// push in descending order so slot 0 is allocated first, keeping
		// low indices hot and matching the LIFO "lowest free slot tends
		// to be reused first" behaviour of a freshly initialized table.
		t.rw.freeSlots[i] = uint32(MaxCapabilities - 1 - i)
	}
	for i := range t.percpu {
		t.percpu[i].init()
	}
	logrus.Debugf("captab: table initialized with %d slots", MaxCapabilities)
	return t
}

func (t *Table) now() int64 {
	return time.Now().UnixNano()
}

func (t *Table) nextCreationOrder() uint64 {
	return atomic.AddUint64(&t.creationSeq, 1)
}

/// borrowStateLocked returns the ResourceBorrowState for rid, creating an
/// empty one if absent (invariant I2: every live slot's resource has a
/// borrow state, possibly idle). Caller must hold wrData.
func (t *Table) borrowStateLocked(rid defs.ResourceId) *ResourceBorrowState {
	bs, ok := t.resourceBorrows[rid]
	if !ok {
		bs = &ResourceBorrowState{}
		t.resourceBorrows[rid] = bs
	}
	return bs
}

func (t *Table) scopeIndexAddLocked(idx uint32, scope defs.ScopeKind) {
	switch scope.Class {
	case defs.Process:
		// process scope is looked up by owner pid, tracked separately
	case defs.Thread:
		t.threadCaps[scope.Tid] = append(t.threadCaps[scope.Tid], idx)
	case defs.Syscall:
		k := syscallKey{Tid: scope.Tid, Seq: scope.Seq}
		t.syscallCaps[k] = append(t.syscallCaps[k], idx)
	}
}

func removeFromSlice(s []uint32, idx uint32) []uint32 {
	for i, v := range s {
		if v == idx {
			return append(s[:i], s[i+1:]...)
		}
	}
	return s
}

func (t *Table) scopeIndexRemoveLocked(idx uint32, scope defs.ScopeKind) {
	switch scope.Class {
	case defs.Thread:
		t.threadCaps[scope.Tid] = removeFromSlice(t.threadCaps[scope.Tid], idx)
	case defs.Syscall:
		k := syscallKey{Tid: scope.Tid, Seq: scope.Seq}
		t.syscallCaps[k] = removeFromSlice(t.syscallCaps[k], idx)
	}
}

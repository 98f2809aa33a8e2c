package captab

import (
	"sync/atomic"

	"github.com/exocap/kernel/src/arch"
	"github.com/exocap/kernel/src/defs"
)

/// cacheSlotsPerCPU is the number of atomic validation slots each CPU
/// owns, per spec.
const cacheSlotsPerCPU = 16

/// numCPUCaches bounds the number of distinct per-CPU cache banks kept.
/// Real hardware topology is supplied by the architecture layer via
/// arch.Iface.CPUID(); on a target that has not plumbed real CPU ids yet
/// (spec's open question: cpu_id() is a constant 0 in the reference
/// source) every goroutine simply shares bank 0, which is still correct,
/// just less parallel.
const numCPUCaches = 64

/// percpuSlot_t is one atomic validation entry: a slot index, or
/// sentinelEmpty if unused. sentinelEmpty is ^uint32(0) so that slot 0 is
/// still representable.
type percpuSlot_t struct {
	idx uint32 // atomic
}

const sentinelEmpty uint32 = ^uint32(0)

/// percpuCache is one CPU's bank of 16 validation slots.
type percpuCache struct {
	slots [cacheSlotsPerCPU]percpuSlot_t
}

func (c *percpuCache) init() {
	for i := range c.slots {
		atomic.StoreUint32(&c.slots[i].idx, sentinelEmpty)
	}
}

func cacheHash(pid uint32, ridHash uint64) int {
	return int((uint64(pid) ^ ridHash) % cacheSlotsPerCPU)
}

func (t *Table) currentCPUCache() *percpuCache {
	id := arch.Current.CPUID() % numCPUCaches
	if id < 0 {
		id = 0
	}
	return &t.percpu[id]
}

/// cachePut records that slot index holds a validated entry for (pid, rid)
/// in the calling CPU's bank. Writes use Relaxed-equivalent atomic stores;
/// correctness comes entirely from re-validating against roData on read.
func (t *Table) cachePut(pid uint32, ridHash uint64, index uint32) {
	bank := t.currentCPUCache()
	slot := cacheHash(pid, ridHash)
	atomic.StoreUint32(&bank.slots[slot].idx, index)
}

/// cacheInvalidateAll clears every CPU's cache entry pointing at index.
/// Called whenever a slot transitions to Free so that no CPU's fast path
/// can hand back a stale hit (invariant I5).
func (t *Table) cacheInvalidateAll(index uint32) {
	for b := range t.percpu {
		bank := &t.percpu[b]
		for s := range bank.slots {
			atomic.CompareAndSwapUint32(&bank.slots[s].idx, index, sentinelEmpty)
		}
	}
}

/// VerifyFast is the wait-free verification path: it looks at the calling
/// CPU's cache bank only, and returns true iff the cached slot is Live,
/// matches (pid, rid), and holds every right in required. A cache miss or
/// a stale/mismatched entry simply returns false; it never touches wrData.
func (t *Table) VerifyFast(pid defs.ProcessId, rid ResourceId, required Rights) bool {
	ridHash := rid.FastHash()
	bank := t.currentCPUCache()
	slot := cacheHash(uint32(pid), ridHash)
	idx := atomic.LoadUint32(&bank.slots[slot].idx)
	if idx == sentinelEmpty || int(idx) >= len(t.slots) {
		return false
	}

	t.roData.RLock()
	e := t.slots[idx]
	t.roData.RUnlock()

	if e.State != Live || e.OwnerPid != pid || e.ResourceId != rid {
		return false
	}
	return e.Rights.Has(required)
}

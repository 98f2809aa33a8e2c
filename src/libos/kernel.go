// Package libos is the LibOS ownership facade: typed wrappers that bind a
// physical page to a capability at construction and call the correct
// revocation on destruction. Go has no destructors, so "destruction" here
// means an explicit Close/Release call; the scope hooks in captab are the
// backstop for LibOSes that forget: a process/thread/syscall exit revokes
// every capability tied to that scope. The hooks work on the capability
// table only and do not free the physical pages behind those capabilities.
package libos

import (
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/exocap/kernel/src/boot"
	"github.com/exocap/kernel/src/captab"
	"github.com/exocap/kernel/src/defs"
	"github.com/exocap/kernel/src/mem"
)

/// Kernel wires the physical page allocator to the capability table; it is
/// the process-wide singleton a real boot sequence would build once via
/// init() and never reinitialize.
type Kernel struct {
	Phys *mem.Allocator
	Cap  *captab.Table

	nextPid uint32 // atomic, allocated monotonically starting at 1
}

/// NewKernel picks the largest available memory region out of regions and
/// seeds the physical allocator with it, then builds a fresh capability
/// table. Regions with Available == false are ignored, per the boot
/// contract.
func NewKernel(regions []boot.MemoryRegion) (*Kernel, bool) {
	region, ok := boot.LargestAvailable(regions)
	if !ok {
		return nil, false
	}
	k := &Kernel{
		Phys: mem.New(mem.Pa_t(region.Base), region.Size),
		Cap:  captab.NewTable(),
	}
	logrus.Infof("libos: kernel initialized, base=0x%x pages=%d", region.Base, k.Phys.TotalPages)
	return k, true
}

/// AllocPid hands out the next monotonically increasing process id,
/// starting at 1 (0 is reserved as defs.NoProcess).
func (k *Kernel) AllocPid() defs.ProcessId {
	return defs.ProcessId(atomic.AddUint32(&k.nextPid, 1))
}

func pageResource(addr mem.Pa_t) defs.ResourceId {
	return defs.ResourceId{Type: defs.PhysicalPage, Id: uint64(addr)}
}

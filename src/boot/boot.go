// Package boot models the finite sequence of memory regions handed to the
// kernel by Multiboot2/DTB parsing. Parsing itself lives outside this
// repository; this package only carries the resulting contract and the
// policy for picking a region to seed the physical allocator with.
package boot

/// MemoryRegion describes one span of physical memory discovered at boot.
type MemoryRegion struct {
	Base      uint64
	Size      uint64
	Available bool
}

/// LargestAvailable returns the largest region with Available set, and
/// false if none qualify. Regions with Available == false (reserved by
/// firmware, ACPI tables, MMIO holes, ...) are ignored.
func LargestAvailable(regions []MemoryRegion) (MemoryRegion, bool) {
	var best MemoryRegion
	found := false
	for _, r := range regions {
		if !r.Available {
			continue
		}
		if !found || r.Size > best.Size {
			best = r
			found = true
		}
	}
	return best, found
}

package allocator

import "microkernel/kernel/mem"

// Meminfo is a summary of the system memory usage. Page counts are expressed
// in units of MemUnit bytes.
type Meminfo struct {
	TotalRAM  uint64
	FreeRAM   uint64
	SharedRAM uint64
	BufferRAM uint64
	TotalSwap uint64
	FreeSwap  uint64
	TotalHigh uint64
	FreeHigh  uint64
	MemUnit   uint32
}

// FreePageCount returns the number of frames that are currently free.
func (alloc *BuddyAllocator) FreePageCount() uint64 {
	if !alloc.initialized() {
		return 0
	}

	state := alloc.lock()
	defer alloc.unlock(state)

	return alloc.freePages()
}

// TotalPageCount returns the number of frames managed by the allocator.
func (alloc *BuddyAllocator) TotalPageCount() uint64 {
	if !alloc.initialized() {
		return 0
	}

	state := alloc.lock()
	defer alloc.unlock(state)

	return alloc.managedPages()
}

func (alloc *BuddyAllocator) freePages() uint64 {
	var count uint64
	for zt := range alloc.node.zones {
		count += alloc.node.zones[zt].freePages
	}
	return count
}

func (alloc *BuddyAllocator) managedPages() uint64 {
	var count uint64
	for zt := range alloc.node.zones {
		count += alloc.node.zones[zt].managed
	}
	return count
}

// FillMeminfo populates the RAM fields of info. Swap fields are left alone;
// see FillSwapinfo.
func (alloc *BuddyAllocator) FillMeminfo(info *Meminfo) {
	info.SharedRAM = 0
	info.BufferRAM = 0
	info.MemUnit = uint32(mem.PageSize)

	if !alloc.initialized() {
		info.TotalRAM, info.FreeRAM, info.TotalHigh, info.FreeHigh = 0, 0, 0, 0
		return
	}

	state := alloc.lock()
	defer alloc.unlock(state)

	high := &alloc.node.zones[ZoneHighMem]
	info.TotalRAM = alloc.managedPages()
	info.FreeRAM = alloc.freePages()
	info.TotalHigh = high.managed
	info.FreeHigh = high.freePages
}

// FillSwapinfo populates the swap fields of info. Swapping is not supported
// so both are always zero.
func (alloc *BuddyAllocator) FillSwapinfo(info *Meminfo) {
	info.TotalSwap = 0
	info.FreeSwap = 0
}

// ZoneInfo returns a snapshot of the requested zone.
func (alloc *BuddyAllocator) ZoneInfo(zt ZoneType) ZoneStats {
	if !alloc.initialized() || zt >= zoneCount {
		return ZoneStats{Type: zt, Name: zt.String()}
	}

	state := alloc.lock()
	defer alloc.unlock(state)

	return alloc.node.zones[zt].stats()
}

// DumpStatistics writes a report of the allocator counters and of the
// occupancy of every populated zone to the allocator log.
func (alloc *BuddyAllocator) DumpStatistics() {
	if !alloc.initialized() {
		return
	}

	state := alloc.lock()
	defer alloc.unlock(state)

	var (
		total, free           = alloc.managedPages(), alloc.freePages()
		allocCount, freeCount uint64
	)
	for zt := range alloc.node.zones {
		allocCount += alloc.node.zones[zt].allocCount
		freeCount += alloc.node.zones[zt].freeCount
	}

	alloc.logf("memory statistics:\n")
	alloc.logf("  total pages: %d (%d Kb)\n", total, uint64(mem.Size(total)*mem.PageSize/mem.Kb))
	alloc.logf("  free pages:  %d (%d Kb)\n", free, uint64(mem.Size(free)*mem.PageSize/mem.Kb))
	alloc.logf("  allocations: %d\n", allocCount)
	alloc.logf("  frees:       %d\n", freeCount)
	alloc.logf("node %d: start frame %d, spanned %d, present %d, zones %d\n",
		alloc.node.id, uint64(alloc.node.startFrame), alloc.node.spanned(), alloc.node.present, alloc.node.populatedZones())

	for zt := range alloc.node.zones {
		z := &alloc.node.zones[zt]
		if !z.populated() {
			continue
		}

		alloc.logf("zone %s:\n", z.name())
		alloc.logf("  start frame:   %d\n", uint64(z.start))
		alloc.logf("  spanned pages: %d\n", z.spanned())
		alloc.logf("  present pages: %d\n", z.present)
		alloc.logf("  free pages:    %d\n", z.freePages)
		alloc.logf("  free areas:\n")
		for order := mem.PageOrder(0); order < mem.MaxPageOrder; order++ {
			if count := z.freeArea[order].count; count != 0 {
				alloc.logf("    order %2d: %d blocks (%d pages)\n", uint8(order), count, count*order.Pages())
			}
		}
	}
}

package allocator

import (
	"microkernel/kernel"
	"microkernel/kernel/mem"
	"microkernel/kernel/mem/pmm"
)

// AllocVirtualPages allocates a block of 2^order frames and returns its
// virtual address, or 0 and an error if the allocation fails.
func (alloc *BuddyAllocator) AllocVirtualPages(flags GFP, order mem.PageOrder) (uintptr, *kernel.Error) {
	frame, err := alloc.AllocPages(flags, order)
	if err != nil {
		return 0, err
	}
	return alloc.FrameToVirt(frame), nil
}

// AllocZeroedPage allocates a single zero-filled page and returns its virtual
// address.
func (alloc *BuddyAllocator) AllocZeroedPage(flags GFP) (uintptr, *kernel.Error) {
	return alloc.AllocVirtualPages(flags|GFPZero, 0)
}

// FreeVirtualPages releases a block obtained from AllocVirtualPages. Freeing
// address 0 is a no-op.
func (alloc *BuddyAllocator) FreeVirtualPages(virtAddr uintptr, order mem.PageOrder) *kernel.Error {
	if virtAddr == 0 {
		return nil
	}
	return alloc.FreePages(alloc.VirtToFrame(virtAddr), order)
}

// AllocFrame allocates a single frame for kernel use. Its signature matches
// pmm.FrameAllocatorFn so it can be registered with pmm.SetFrameAllocator.
func (alloc *BuddyAllocator) AllocFrame() (pmm.Frame, *kernel.Error) {
	return alloc.AllocPages(GFPKernel, 0)
}

package allocator

import (
	"unsafe"

	"microkernel/kernel/mem/pmm"
)

// The translation helpers below are plain arithmetic. They perform no
// validation beyond the runtime's slice bounds checks; callers must pass
// frames covered by the descriptor table and addresses inside the kernel's
// direct physical memory map.

// PageOf returns the descriptor for frame.
func (alloc *BuddyAllocator) PageOf(frame pmm.Frame) *Page {
	return &alloc.pages[frame]
}

// FrameOf returns the frame described by p, which must point into the
// allocator's descriptor table.
func (alloc *BuddyAllocator) FrameOf(p *Page) pmm.Frame {
	offset := uintptr(unsafe.Pointer(p)) - uintptr(unsafe.Pointer(&alloc.pages[0]))
	return pmm.Frame(offset / unsafe.Sizeof(Page{}))
}

// PhysToVirt returns the virtual address at which the kernel maps physAddr.
func (alloc *BuddyAllocator) PhysToVirt(physAddr uintptr) uintptr {
	return physAddr + alloc.virtualBase
}

// VirtToPhys is the inverse of PhysToVirt.
func (alloc *BuddyAllocator) VirtToPhys(virtAddr uintptr) uintptr {
	return virtAddr - alloc.virtualBase
}

// FrameToVirt returns the virtual address of the first byte of frame.
func (alloc *BuddyAllocator) FrameToVirt(frame pmm.Frame) uintptr {
	return alloc.PhysToVirt(frame.Address())
}

// VirtToFrame returns the frame that contains virtAddr.
func (alloc *BuddyAllocator) VirtToFrame(virtAddr uintptr) pmm.Frame {
	return pmm.FrameFromAddress(alloc.VirtToPhys(virtAddr))
}

// Package pmm contains code that manages physical memory frame allocations.
package pmm

import (
	"math"

	"microkernel/kernel"
	"microkernel/kernel/mem"
)

// Frame describes a physical memory page index (a PFN).
type Frame uintptr

const (
	// InvalidFrame is returned by page allocators when
	// they fail to reserve the requested frame.
	InvalidFrame = Frame(math.MaxUint64)
)

// Valid returns true if this is a valid frame.
func (f Frame) Valid() bool {
	return f != InvalidFrame
}

// Address returns the physical memory address pointed to by this Frame.
func (f Frame) Address() uintptr {
	return uintptr(f << mem.PageShift)
}

// Buddy returns the frame that heads the buddy of the order-sized block
// starting at f.
func (f Frame) Buddy(order mem.PageOrder) Frame {
	return f ^ Frame(1<<order)
}

// AlignedTo returns true if f is the first frame of a naturally aligned block
// of the given order.
func (f Frame) AlignedTo(order mem.PageOrder) bool {
	return f&(Frame(1<<order)-1) == 0
}

// FrameFromAddress returns a Frame that corresponds to
// the given physical address. This function can handle
// both page-aligned and not aligned addresses. in the
// latter case, the input address will be rounded down
// to the frame that contains it.
func FrameFromAddress(physAddr uintptr) Frame {
	return Frame((physAddr & ^(uintptr(mem.PageSize - 1))) >> mem.PageShift)
}

var (
	// frameAllocator points to a frame allocator function registered using
	// SetFrameAllocator.
	frameAllocator FrameAllocatorFn

	errNoFrameAllocator = &kernel.Error{Module: "pmm", Message: "no frame allocator registered"}
)

// FrameAllocatorFn is a function that can allocate physical frames.
type FrameAllocatorFn func() (Frame, *kernel.Error)

// SetFrameAllocator registers a frame allocator function that will be used by
// kernel subsystems that need single physical frames.
func SetFrameAllocator(allocFn FrameAllocatorFn) { frameAllocator = allocFn }

// AllocFrame allocates a new physical frame using the currently active
// physical frame allocator.
func AllocFrame() (Frame, *kernel.Error) {
	if frameAllocator == nil {
		return InvalidFrame, errNoFrameAllocator
	}
	return frameAllocator()
}

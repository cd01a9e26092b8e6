package allocator

import (
	"io"

	"microkernel/kernel"
	"microkernel/kernel/hal/multiboot"
	"microkernel/kernel/kfmt"
	"microkernel/kernel/mem"
	"microkernel/kernel/mem/pmm"
)

var (
	errBootAllocOutOfMemory = &kernel.Error{Module: "boot_mem_alloc", Message: "out of memory"}
)

// frameRange is a half-open range of frames.
type frameRange struct {
	start, end pmm.Frame
}

func (r frameRange) empty() bool {
	return r.start >= r.end
}

// availableFrames returns the frames fully contained in an available memory
// region. Reported addresses may not be page-aligned; the start is rounded up
// and the end is rounded down.
func availableFrames(region *multiboot.MemoryMapEntry) frameRange {
	pageSizeMinus1 := uint64(mem.PageSize - 1)
	return frameRange{
		start: pmm.Frame(((region.PhysAddress + pageSizeMinus1) & ^pageSizeMinus1) >> mem.PageShift),
		end:   pmm.Frame(((region.PhysAddress + region.Length) & ^pageSizeMinus1) >> mem.PageShift),
	}
}

// bootMemAllocator implements a rudimentary physical memory allocator which is
// used to bootstrap the buddy allocator; its main client is the page
// descriptor table, which must itself live in physical memory.
//
// The allocator uses the memory region information provided by the
// bootloader to find free memory and hands out frames in ascending order,
// skipping the frames occupied by the kernel image. Allocations are tracked
// by the first and last allocated frame.
//
// It is not possible to free allocated frames. When the buddy allocator takes
// over, every available frame in [firstAllocFrame, lastAllocFrame] is
// treated as used.
type bootMemAllocator struct {
	// allocCount tracks the total number of allocated frames.
	allocCount uint64

	// firstAllocFrame and lastAllocFrame track the first and last
	// allocated frame numbers.
	firstAllocFrame pmm.Frame
	lastAllocFrame  pmm.Frame

	// kernelImage holds the frames occupied by the loaded kernel.
	kernelImage frameRange
}

// init sets up the boot memory allocator internal state. The kernel image
// occupies the physical addresses [kernelStart, kernelEnd).
func (alloc *bootMemAllocator) init(kernelStart, kernelEnd uintptr) {
	*alloc = bootMemAllocator{}
	if kernelEnd > kernelStart {
		alloc.kernelImage = frameRange{
			start: pmm.FrameFromAddress(kernelStart),
			end:   pmm.FrameFromAddress(kernelEnd + uintptr(mem.PageSize-1)),
		}
	}
}

// AllocFrame reserves the next available free frame.
func (alloc *bootMemAllocator) AllocFrame() (pmm.Frame, *kernel.Error) {
	return alloc.AllocFrames(1)
}

// AllocFrames scans the system memory regions reported by the bootloader and
// reserves the next run of count contiguous free frames.
//
// AllocFrames returns an error if no region can hold the request.
func (alloc *bootMemAllocator) AllocFrames(count uint64) (pmm.Frame, *kernel.Error) {
	var (
		err   = errBootAllocOutOfMemory
		frame pmm.Frame
	)

	if count == 0 {
		return pmm.InvalidFrame, errBootAllocOutOfMemory
	}

	multiboot.VisitMemRegions(func(region *multiboot.MemoryMapEntry) bool {
		if region.Type != multiboot.MemAvailable {
			return true
		}

		avail := availableFrames(region)

		// Skip frames handed out by previous allocations.
		if alloc.allocCount != 0 && alloc.lastAllocFrame >= avail.start {
			avail.start = alloc.lastAllocFrame + 1
		}

		// Runs may not overlap the kernel image.
		candidate := frameRange{start: avail.start, end: avail.start + pmm.Frame(count)}
		if candidate.start < alloc.kernelImage.end && alloc.kernelImage.start < candidate.end {
			candidate = frameRange{start: alloc.kernelImage.end, end: alloc.kernelImage.end + pmm.Frame(count)}
		}

		if candidate.empty() || candidate.start < avail.start || candidate.end > avail.end {
			return true
		}

		frame = candidate.start
		err = nil
		return false
	})

	if err != nil {
		return pmm.InvalidFrame, err
	}

	if alloc.allocCount == 0 {
		alloc.firstAllocFrame = frame
	}
	alloc.allocCount += count
	alloc.lastAllocFrame = frame + pmm.Frame(count) - 1
	return frame, nil
}

// allocated returns the range of frames consumed by the boot allocator.
func (alloc *bootMemAllocator) allocated() frameRange {
	if alloc.allocCount == 0 {
		return frameRange{}
	}
	return frameRange{start: alloc.firstAllocFrame, end: alloc.lastAllocFrame + 1}
}

// printMemoryMap scans the memory region information provided by the
// bootloader and prints out the system's memory map.
func (alloc *bootMemAllocator) printMemoryMap(w io.Writer) {
	kfmt.Fprintf(w, "system memory map:\n")
	var totalFree mem.Size
	multiboot.VisitMemRegions(func(region *multiboot.MemoryMapEntry) bool {
		kfmt.Fprintf(w, "\t[0x%10x - 0x%10x], size: %10d, type: %s\n", region.PhysAddress, region.PhysAddress+region.Length, region.Length, region.Type.String())

		if region.Type == multiboot.MemAvailable {
			totalFree += mem.Size(region.Length)
		}
		return true
	})
	kfmt.Fprintf(w, "free memory: %dKb\n", uint64(totalFree/mem.Kb))
}

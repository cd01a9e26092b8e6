package allocator

import (
	"unsafe"

	"microkernel/kernel"
	"microkernel/kernel/hal/multiboot"
	"microkernel/kernel/kfmt"
	"microkernel/kernel/mem"
	"microkernel/kernel/mem/pmm"
)

// Init builds a buddy allocator for the memory described by the multiboot
// memory map. The kernel image occupies the physical addresses
// [kernelStart, kernelEnd); its frames are never handed out.
//
// If cfg.Frames is zero, the descriptor table is sized to cover the highest
// available frame. The table itself is placed in physical memory obtained
// from a boot memory allocator and accessed through cfg.VirtualBase; its
// frames also stay reserved. Every other available frame is seeded into the
// allocator.
func Init(cfg Config, kernelStart, kernelEnd uintptr) (*BuddyAllocator, *kernel.Error) {
	var (
		boot bootMemAllocator
		w    = &kfmt.PrefixWriter{Sink: cfg.Platform.Log, Prefix: []byte("[boot_mem_alloc] ")}
	)

	if w.Sink == nil {
		w.Sink = activeSink{}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	boot.init(kernelStart, kernelEnd)
	boot.printMemoryMap(w)

	if cfg.Frames == 0 {
		cfg.Frames = highestAvailableFrame()
	}
	if cfg.Frames == 0 {
		return nil, errOutOfMemory
	}

	tableSize := mem.Size(cfg.Frames) * mem.Size(unsafe.Sizeof(Page{}))
	tableFrame, err := boot.AllocFrames(tableSize.Pages())
	if err != nil {
		return nil, err
	}

	kfmt.Fprintf(w, "page descriptor table: %d frames at 0x%x\n", tableSize.Pages(), tableFrame.Address())

	table := unsafe.Slice((*Page)(unsafe.Pointer(tableFrame.Address()+cfg.VirtualBase)), cfg.Frames)
	alloc, err := newAllocator(cfg, table)
	if err != nil {
		return nil, err
	}

	reserved := [2]frameRange{boot.kernelImage, boot.allocated()}
	if reserved[1].start < reserved[0].start {
		reserved[0], reserved[1] = reserved[1], reserved[0]
	}

	multiboot.VisitMemRegions(func(region *multiboot.MemoryMapEntry) bool {
		if region.Type != multiboot.MemAvailable {
			return true
		}

		avail := availableFrames(region)
		if uint64(avail.end) > cfg.Frames {
			avail.end = pmm.Frame(cfg.Frames)
		}

		err = alloc.seedExcluding(avail, reserved[:])
		return err == nil
	})

	if err != nil {
		return nil, err
	}

	return alloc, nil
}

// highestAvailableFrame returns the first frame past the end of the highest
// available memory region.
func highestAvailableFrame() uint64 {
	var highest pmm.Frame
	multiboot.VisitMemRegions(func(region *multiboot.MemoryMapEntry) bool {
		if region.Type != multiboot.MemAvailable {
			return true
		}

		if avail := availableFrames(region); !avail.empty() && avail.end > highest {
			highest = avail.end
		}
		return true
	})

	return uint64(highest)
}

// seedExcluding seeds the frames in r that do not overlap any of the
// exclusion ranges, which must be sorted by their start frame.
func (alloc *BuddyAllocator) seedExcluding(r frameRange, exclude []frameRange) *kernel.Error {
	cur := r.start
	for _, ex := range exclude {
		if ex.empty() || ex.end <= cur || ex.start >= r.end {
			continue
		}

		if ex.start > cur {
			if err := alloc.Seed(cur, ex.start); err != nil {
				return err
			}
		}
		cur = ex.end
	}

	if cur < r.end {
		return alloc.Seed(cur, r.end)
	}
	return nil
}

package kmain

import (
	"microkernel/kernel"
	"microkernel/kernel/hal/multiboot"
	"microkernel/kernel/kfmt"
	"microkernel/kernel/mem"
	"microkernel/kernel/mem/pmm"
	"microkernel/kernel/mem/pmm/allocator"
)

var (
	// panicFn is mocked by tests.
	panicFn = kfmt.Panic

	errKmainNoMemory = &kernel.Error{Module: "kmain", Message: "no memory available after init"}
)

// Boot brings up physical memory management. It parses the memory map from
// the multiboot payload registered with multiboot.SetInfo, builds the buddy
// allocator and registers it as the system frame allocator.
//
// The kernel image occupies the physical addresses [kernelStart, kernelEnd).
func Boot(cfg allocator.Config, kernelStart, kernelEnd uintptr) (*allocator.BuddyAllocator, *kernel.Error) {
	if name := multiboot.BootLoaderName(); name != "" {
		kfmt.Printf("[kmain] booted by %s\n", name)
	}

	alloc, err := allocator.Init(cfg, kernelStart, kernelEnd)
	if err != nil {
		return nil, err
	}

	free := alloc.FreePageCount()
	if free == 0 {
		return nil, errKmainNoMemory
	}

	pmm.SetFrameAllocator(alloc.AllocFrame)

	total := alloc.TotalPageCount()
	kfmt.Printf("[kmain] memory: %d/%d pages free (%d/%d MiB)\n",
		free, total,
		uint64(mem.Size(free)*mem.PageSize/mem.Mb), uint64(mem.Size(total)*mem.PageSize/mem.Mb),
	)

	return alloc, nil
}

// Kmain registers the supplied multiboot payload and boots the kernel. It
// returns the frame allocator that the rest of the system runs on.
//
// If booting fails, Kmain reports the error through kfmt.Panic which halts
// the CPU.
func Kmain(multibootInfo []byte, cfg allocator.Config, kernelStart, kernelEnd uintptr) *allocator.BuddyAllocator {
	multiboot.SetInfo(multibootInfo)

	alloc, err := Boot(cfg, kernelStart, kernelEnd)
	if err != nil {
		panicFn(err)
		return nil
	}

	return alloc
}

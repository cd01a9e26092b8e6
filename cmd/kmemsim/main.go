// Command kmemsim boots the physical memory manager inside a hosted process
// and drives it with a concurrent allocation workload. Physical memory is
// simulated by an anonymous memory mapping.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"

	"microkernel/kernel"
	"microkernel/kernel/hal/multiboot"
	"microkernel/kernel/kfmt"
	"microkernel/kernel/kmain"
	"microkernel/kernel/mem"
	"microkernel/kernel/mem/arena"
	"microkernel/kernel/mem/pmm/allocator"
)

var errLeakedPages = &kernel.Error{Module: "kmemsim", Message: "free page count differs from the count after boot"}

func main() {
	var (
		memMb       = flag.Uint64("mem", 64, "size of simulated physical memory in MiB")
		workers     = flag.Int("workers", 4, "number of concurrent workers")
		iterations  = flag.Int("iterations", 1000, "operations performed by each worker")
		seed        = flag.Int64("seed", 1, "random seed for the workload")
		maxOrder    = flag.Uint("max-order", 4, "largest block order requested by the workload")
		kernelStart = flag.Uint64("kernel-start", 0x100000, "physical start address of the kernel image")
		kernelEnd   = flag.Uint64("kernel-end", 0x400000, "physical end address of the kernel image")
		debug       = flag.Bool("debug", false, "verify allocator invariants after every operation")
	)
	flag.Parse()

	kfmt.SetOutputSink(os.Stdout)

	if err := run(*memMb, *workers, *iterations, *seed, mem.PageOrder(*maxOrder), uintptr(*kernelStart), uintptr(*kernelEnd), *debug); err != nil {
		kfmt.Printf("kmemsim: %s\n", err)
		os.Exit(1)
	}
}

func run(memMb uint64, workers, iterations int, seed int64, maxOrder mem.PageOrder, kernelStart, kernelEnd uintptr, debug bool) error {
	ram, err := arena.Map(mem.Size(memMb) * mem.Mb)
	if err != nil {
		return err
	}
	defer ram.Unmap()

	cfg := allocator.DefaultConfig()
	cfg.VirtualBase = ram.Base()
	cfg.DebugChecks = debug

	multiboot.SetInfo(multiboot.NewInfo("kmemsim", memoryMap(ram.Len())))
	alloc, err := kmain.Boot(cfg, kernelStart, kernelEnd)
	if err != nil {
		return err
	}

	bootFree := alloc.FreePageCount()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	stats, runErr := runWorkload(ctx, alloc, workloadOptions{
		workers:    workers,
		iterations: iterations,
		seed:       seed,
		maxOrder:   maxOrder,
	})

	kfmt.Printf("workload: %d allocs, %d reallocs, %d frees, %d failed requests\n", stats.allocs, stats.reallocs, stats.frees, stats.failures)
	if runErr != nil {
		return runErr
	}

	alloc.DumpStatistics()

	var info allocator.Meminfo
	alloc.FillMeminfo(&info)
	kfmt.Printf("meminfo: total %d Kb, free %d Kb, high total %d Kb, high free %d Kb\n",
		info.TotalRAM*uint64(info.MemUnit)/uint64(mem.Kb),
		info.FreeRAM*uint64(info.MemUnit)/uint64(mem.Kb),
		info.TotalHigh*uint64(info.MemUnit)/uint64(mem.Kb),
		info.FreeHigh*uint64(info.MemUnit)/uint64(mem.Kb),
	)

	if err := alloc.CheckInvariants(); err != nil {
		return err
	}

	if alloc.FreePageCount() != bootFree {
		return errLeakedPages
	}

	return nil
}

// memoryMap returns a PC-like memory map for size bytes of RAM: low memory
// up to 639K, the legacy BIOS area, and extended memory with the top 1 MiB
// reserved for firmware.
func memoryMap(size mem.Size) []multiboot.MemoryMapEntry {
	top := uint64(size)
	return []multiboot.MemoryMapEntry{
		{PhysAddress: 0, Length: 0x9fc00, Type: multiboot.MemAvailable},
		{PhysAddress: 0x9fc00, Length: 0x400, Type: multiboot.MemReserved},
		{PhysAddress: 0xf0000, Length: 0x10000, Type: multiboot.MemReserved},
		{PhysAddress: 0x100000, Length: top - 0x200000, Type: multiboot.MemAvailable},
		{PhysAddress: top - 0x100000, Length: 0x100000, Type: multiboot.MemAcpiReclaimable},
	}
}

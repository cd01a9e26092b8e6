package main

import (
	"context"
	"math/rand"
	"unsafe"

	"microkernel/kernel"
	"microkernel/kernel/mem"
	"microkernel/kernel/mem/pmm/allocator"

	"golang.org/x/sync/errgroup"
)

var errCorruptBlock = &kernel.Error{Module: "kmemsim", Message: "block contents were overwritten by another worker"}

// workloadOptions control the simulated allocation workload.
type workloadOptions struct {
	workers    int
	iterations int
	seed       int64
	maxOrder   mem.PageOrder
}

// workloadStats aggregates the operations performed by all workers.
type workloadStats struct {
	allocs, frees, reallocs, failures uint64
}

// liveBlock is a block currently owned by a worker.
type liveBlock struct {
	addr  uintptr
	order mem.PageOrder
	tag   byte
}

// runWorkload runs opts.workers goroutines that randomly allocate, grow and
// release blocks. Every block is tagged with its owner so that blocks handed
// out twice are detected. All blocks are released before runWorkload
// returns.
func runWorkload(ctx context.Context, alloc *allocator.BuddyAllocator, opts workloadOptions) (workloadStats, error) {
	var (
		results  = make([]workloadStats, opts.workers)
		g, gctx  = errgroup.WithContext(ctx)
		maxOrder = opts.maxOrder
	)

	if maxOrder >= mem.MaxPageOrder {
		maxOrder = mem.MaxPageOrder - 1
	}

	for w := 0; w < opts.workers; w++ {
		w := w
		g.Go(func() error {
			return worker(gctx, alloc, &results[w], rand.New(rand.NewSource(opts.seed+int64(w))), byte(w+1), opts.iterations, maxOrder)
		})
	}

	err := g.Wait()

	var total workloadStats
	for _, r := range results {
		total.allocs += r.allocs
		total.frees += r.frees
		total.reallocs += r.reallocs
		total.failures += r.failures
	}
	return total, err
}

func worker(ctx context.Context, alloc *allocator.BuddyAllocator, stats *workloadStats, rng *rand.Rand, tag byte, iterations int, maxOrder mem.PageOrder) error {
	var live []liveBlock

	release := func(i int) error {
		b := live[i]
		if err := checkTag(b); err != nil {
			return err
		}
		if err := alloc.Kfree(b.addr); err != nil {
			return err
		}
		live[i] = live[len(live)-1]
		live = live[:len(live)-1]
		stats.frees++
		return nil
	}

	defer func() {
		for len(live) > 0 {
			if release(len(live)-1) != nil {
				return
			}
		}
	}()

	for i := 0; i < iterations; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		switch op := rng.Intn(10); {
		case op < 5 || len(live) == 0:
			order := mem.PageOrder(rng.Intn(int(maxOrder) + 1))
			size := order.Size() - mem.Size(rng.Int63n(int64(mem.PageSize)))

			flags := allocator.GFPKernel
			if rng.Intn(4) == 0 {
				flags |= allocator.GFPZero
			}

			addr, err := alloc.Kmalloc(size, flags)
			if err != nil {
				// Out of memory is expected under load; give
				// something back and keep going.
				stats.failures++
				if len(live) > 0 {
					if err := release(rng.Intn(len(live))); err != nil {
						return err
					}
				}
				continue
			}

			b := liveBlock{addr: addr, order: order, tag: tag}
			setTag(b)
			live = append(live, b)
			stats.allocs++
		case op < 7:
			i := rng.Intn(len(live))
			if err := checkTag(live[i]); err != nil {
				return err
			}

			order := mem.PageOrder(rng.Intn(int(maxOrder) + 1))
			addr, err := alloc.Krealloc(live[i].addr, order.Size(), allocator.GFPKernel)
			if err != nil {
				stats.failures++
				continue
			}

			live[i].addr, live[i].order = addr, order
			if err := checkTag(live[i]); err != nil {
				return err
			}
			setTag(live[i])
			stats.reallocs++
		default:
			if err := release(rng.Intn(len(live))); err != nil {
				return err
			}
		}
	}

	return nil
}

// setTag stamps the first byte of every page in a block with its owner tag.
func setTag(b liveBlock) {
	for off := mem.Size(0); off < b.order.Size(); off += mem.PageSize {
		*(*byte)(unsafe.Pointer(b.addr + uintptr(off))) = b.tag
	}
}

// checkTag verifies the first page tag of a block. Contents past the first
// page are not preserved when a block shrinks.
func checkTag(b liveBlock) *kernel.Error {
	if *(*byte)(unsafe.Pointer(b.addr)) != b.tag {
		return errCorruptBlock
	}
	return nil
}

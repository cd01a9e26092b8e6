package allocator

import (
	"context"
	"math/rand"
	"testing"

	"microkernel/kernel/cpu"
	"microkernel/kernel/mem"
	"microkernel/kernel/mem/pmm"

	"golang.org/x/sync/errgroup"
)

func TestConcurrentAllocFree(t *testing.T) {
	const (
		workers    = 8
		iterations = 5000
	)

	alloc := newTestAllocator(t, 4096, 4096)
	alloc.debugChecks = false
	irq := alloc.irq.(*cpu.SoftInterrupts)
	before := alloc.FreePageCount()

	g, ctx := errgroup.WithContext(context.Background())
	for w := 0; w < workers; w++ {
		seed := int64(w)
		g.Go(func() error {
			rng := rand.New(rand.NewSource(seed))
			type block struct {
				frame pmm.Frame
				order mem.PageOrder
			}
			var live []block

			for i := 0; i < iterations && ctx.Err() == nil; i++ {
				if len(live) > 0 && rng.Intn(2) == 0 {
					idx := rng.Intn(len(live))
					b := live[idx]
					live[idx] = live[len(live)-1]
					live = live[:len(live)-1]

					if err := alloc.FreePages(b.frame, b.order); err != nil {
						return err
					}
					continue
				}

				order := mem.PageOrder(rng.Intn(4))
				frame, err := alloc.AllocPages(GFPKernel|GFPAtomic, order)
				if err == errOutOfMemory {
					continue
				}
				if err != nil {
					return err
				}
				live = append(live, block{frame, order})
			}

			for _, b := range live {
				if err := alloc.FreePages(b.frame, b.order); err != nil {
					return err
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}

	if err := alloc.CheckInvariants(); err != nil {
		t.Fatal(err)
	}

	if got := alloc.FreePageCount(); got != before {
		t.Fatalf("expected free page count to return to %d; got %d", before, got)
	}

	if blocks := freeBlocks(alloc, ZoneDMA); blocks[10] != 4 {
		t.Fatalf("expected memory to coalesce into 4 order-10 blocks; got %v", blocks)
	}

	if !irq.Enabled() || irq.Depth() != 0 {
		t.Fatalf("expected interrupts to be enabled with no open sections after every worker returned; enabled: %t, depth: %d", irq.Enabled(), irq.Depth())
	}
}

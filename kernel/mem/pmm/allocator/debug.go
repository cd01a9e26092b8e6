package allocator

import (
	"microkernel/kernel"
	"microkernel/kernel/mem"
	"microkernel/kernel/mem/pmm"
)

var (
	errInvariantFreeList  = &kernel.Error{Module: "buddy_alloc", Message: "free list is corrupted"}
	errInvariantFreeBlock = &kernel.Error{Module: "buddy_alloc", Message: "free list entry has the wrong order, flags or reference count"}
	errInvariantZone      = &kernel.Error{Module: "buddy_alloc", Message: "free list entry lies outside its zone"}
	errInvariantCounters  = &kernel.Error{Module: "buddy_alloc", Message: "free page counter does not match the free lists"}
	errInvariantCoalesce  = &kernel.Error{Module: "buddy_alloc", Message: "free block has an unmerged free buddy"}
)

// CheckInvariants walks every free area of every zone and verifies that:
//   - each list is well formed and its length matches its counter
//   - each entry is a PageBuddy head of the list order with a zero reference
//     count, lies inside its zone and is naturally aligned
//   - the zone free page counter equals the number of frames on its lists
//   - no free block has a free buddy of the same order
//
// The walk is O(free blocks); allocators configured with DebugChecks run it
// after every operation.
func (alloc *BuddyAllocator) CheckInvariants() *kernel.Error {
	if !alloc.initialized() {
		return errNotInitialized
	}

	state := alloc.lock()
	defer alloc.unlock(state)

	return alloc.checkInvariants()
}

func (alloc *BuddyAllocator) checkInvariants() *kernel.Error {
	for zt := range alloc.node.zones {
		if err := alloc.checkZone(&alloc.node.zones[zt]); err != nil {
			alloc.logf("invariant violation in zone %s: %s\n", alloc.node.zones[zt].name(), err.Message)
			return err
		}
	}
	return nil
}

func (alloc *BuddyAllocator) checkZone(z *zone) *kernel.Error {
	var freeFrames uint64

	for order := mem.PageOrder(0); order < mem.MaxPageOrder; order++ {
		var (
			area  = &z.freeArea[order]
			seen  uint64
			prev  = pmm.InvalidFrame
			err   *kernel.Error
			pages = uint64(len(alloc.pages))
		)

		area.visit(alloc.pages, func(frame pmm.Frame) bool {
			if seen == area.count || uint64(frame) >= pages || alloc.pages[frame].prev != prev {
				err = errInvariantFreeList
				return false
			}
			seen++
			prev = frame

			p := &alloc.pages[frame]
			if p.State() != PageStateFree || p.order != order || p.RefCount() != 0 || !frame.AlignedTo(order) {
				err = errInvariantFreeBlock
				return false
			}

			if !z.spans(frame) || uint64(frame)+order.Pages() > uint64(z.end) {
				err = errInvariantZone
				return false
			}

			if order < maxBlockOrder {
				buddy := frame.Buddy(order)
				if z.spans(buddy) {
					bp := &alloc.pages[buddy]
					if bp.State() == PageStateFree && bp.order == order && bp.RefCount() == 0 {
						err = errInvariantCoalesce
						return false
					}
				}
			}
			return true
		})

		if err != nil {
			return err
		}

		if seen != area.count {
			return errInvariantFreeList
		}

		freeFrames += area.count * order.Pages()
	}

	if freeFrames != z.freePages {
		return errInvariantCounters
	}

	return nil
}

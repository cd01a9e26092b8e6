package allocator

import (
	"math"

	"microkernel/kernel"
	"microkernel/kernel/mem"
)

// Kmalloc allocates at least size bytes, rounded up to a power-of-two number
// of pages, and returns the virtual address of the block.
func (alloc *BuddyAllocator) Kmalloc(size mem.Size, flags GFP) (uintptr, *kernel.Error) {
	if size == 0 {
		return 0, errInvalidSize
	}

	order := size.Order()
	if !order.Valid() {
		return 0, errInvalidOrder
	}

	return alloc.AllocVirtualPages(flags, order)
}

// Kzalloc behaves like Kmalloc but zero-fills the returned block.
func (alloc *BuddyAllocator) Kzalloc(size mem.Size, flags GFP) (uintptr, *kernel.Error) {
	return alloc.Kmalloc(size, flags|GFPZero)
}

// Kcalloc allocates a zero-filled block large enough for count elements of
// the given size.
func (alloc *BuddyAllocator) Kcalloc(count uint64, size mem.Size, flags GFP) (uintptr, *kernel.Error) {
	if count != 0 && uint64(size) > math.MaxUint64/count {
		return 0, errInvalidSize
	}
	return alloc.Kzalloc(mem.Size(count)*size, flags)
}

// Kfree releases a block obtained from the Kmalloc family. The block order
// recorded at allocation time is used so multi-page blocks are released in
// full. Freeing address 0 is a no-op.
func (alloc *BuddyAllocator) Kfree(virtAddr uintptr) *kernel.Error {
	if virtAddr == 0 {
		return nil
	}

	if !alloc.initialized() {
		return errNotInitialized
	}

	return alloc.free(alloc.VirtToFrame(virtAddr), 0, true)
}

// Krealloc resizes the block at virtAddr so that it can hold at least size
// bytes. If the new size maps to the same order the block is returned as is.
// Otherwise a new block is allocated, the contents of the old block are
// copied over (truncated if the new block is smaller) and the old block is
// released. If the new allocation fails the old block is left untouched; if
// the old block cannot be released the new block is released instead.
//
// A zero virtAddr behaves like Kmalloc; a zero size behaves like Kfree and
// returns 0.
func (alloc *BuddyAllocator) Krealloc(virtAddr uintptr, size mem.Size, flags GFP) (uintptr, *kernel.Error) {
	if virtAddr == 0 {
		return alloc.Kmalloc(size, flags)
	}

	if size == 0 {
		return 0, alloc.Kfree(virtAddr)
	}

	oldOrder, err := alloc.BlockOrder(virtAddr)
	if err != nil {
		return 0, err
	}

	newOrder := size.Order()
	if !newOrder.Valid() {
		return 0, errInvalidOrder
	}

	if newOrder == oldOrder {
		return virtAddr, nil
	}

	newAddr, err := alloc.AllocVirtualPages(flags, newOrder)
	if err != nil {
		return 0, err
	}

	copySize := oldOrder.Size()
	if newOrder < oldOrder {
		copySize = newOrder.Size()
	}
	mem.Memcopy(virtAddr, newAddr, copySize)

	if err = alloc.Kfree(virtAddr); err != nil {
		_ = alloc.FreeVirtualPages(newAddr, newOrder)
		return 0, err
	}
	return newAddr, nil
}

// BlockOrder returns the order of the allocated block that starts at
// virtAddr.
func (alloc *BuddyAllocator) BlockOrder(virtAddr uintptr) (mem.PageOrder, *kernel.Error) {
	if !alloc.initialized() {
		return 0, errNotInitialized
	}

	state := alloc.lock()
	defer alloc.unlock(state)

	return alloc.allocatedOrder(alloc.VirtToFrame(virtAddr))
}

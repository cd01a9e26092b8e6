package allocator

import (
	"sync/atomic"

	"microkernel/kernel/mem"
	"microkernel/kernel/mem/pmm"
)

// PageFlag is a bit in the page descriptor flag set.
type PageFlag uint32

const (
	// PageLocked marks a frame that is pinned by its current owner.
	PageLocked PageFlag = 1 << iota

	// PageReferenced marks a frame that was recently accessed.
	PageReferenced

	// PageReserved marks a frame that is not managed by the allocator:
	// firmware regions, holes, the kernel image and the descriptor table
	// itself.
	PageReserved

	// PageBuddy marks the head frame of a free block.
	PageBuddy

	// PageHead marks the head frame of an allocated block.
	PageHead
)

// transientFlags are cleared whenever a block changes hands.
const transientFlags = PageLocked | PageReferenced | PageBuddy | PageHead

// PageState describes the role a page descriptor currently plays.
type PageState uint8

const (
	// PageStateReserved is the state of frames that the allocator never
	// hands out.
	PageStateReserved PageState = iota

	// PageStateFree is the state of the head frame of a free block.
	PageStateFree

	// PageStateAllocated is the state of the head frame of an allocated
	// block.
	PageStateAllocated

	// PageStateTail is the state of every other frame of a free or
	// allocated block.
	PageStateTail
)

// String implements fmt.Stringer for PageState.
func (s PageState) String() string {
	switch s {
	case PageStateReserved:
		return "reserved"
	case PageStateFree:
		return "free"
	case PageStateAllocated:
		return "allocated"
	default:
		return "tail"
	}
}

// Page describes a single physical frame. Descriptors live in a table indexed
// by PFN; the free list linkage refers to other descriptors by PFN so the
// table holds no pointers.
type Page struct {
	flags    PageFlag
	refcount atomic.Int32

	// order is meaningful only while the descriptor heads a free or an
	// allocated block.
	order mem.PageOrder

	// next and prev link free block heads of the same order. Both are
	// InvalidFrame when the descriptor is not on a free list.
	next, prev pmm.Frame
}

// reset puts the descriptor in its initial reserved state.
func (p *Page) reset() {
	p.flags = PageReserved
	p.refcount.Store(0)
	p.order = 0
	p.next, p.prev = pmm.InvalidFrame, pmm.InvalidFrame
}

// Flags returns the descriptor flag set.
func (p *Page) Flags() PageFlag {
	return p.flags
}

// HasFlags returns true if all bits in mask are set.
func (p *Page) HasFlags(mask PageFlag) bool {
	return p.flags&mask == mask
}

// RefCount returns the descriptor reference count. It is 0 while the frame is
// free and at least 1 while the frame is part of an allocated block.
func (p *Page) RefCount() int32 {
	return p.refcount.Load()
}

// State returns the role the descriptor currently plays.
func (p *Page) State() PageState {
	switch {
	case p.flags&PageReserved != 0:
		return PageStateReserved
	case p.flags&PageBuddy != 0:
		return PageStateFree
	case p.flags&PageHead != 0:
		return PageStateAllocated
	default:
		return PageStateTail
	}
}

// Order returns the order of the block headed by this descriptor. The second
// return value is false if the descriptor does not head a block.
func (p *Page) Order() (mem.PageOrder, bool) {
	if p.flags&(PageBuddy|PageHead) == 0 || p.flags&PageReserved != 0 {
		return 0, false
	}
	return p.order, true
}

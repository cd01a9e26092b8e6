package allocator

import "microkernel/kernel/mem/pmm"

// freeArea is a doubly linked list of free block heads of a single order.
// Links are stored in the page descriptors and refer to other descriptors by
// PFN. New blocks are pushed at the head so recently freed (and likely cache
// hot) blocks are handed out first.
type freeArea struct {
	head  pmm.Frame
	count uint64
}

func (fa *freeArea) init() {
	fa.head = pmm.InvalidFrame
	fa.count = 0
}

// push inserts frame at the head of the list.
func (fa *freeArea) push(pages []Page, frame pmm.Frame) {
	p := &pages[frame]
	p.prev = pmm.InvalidFrame
	p.next = fa.head
	if fa.head != pmm.InvalidFrame {
		pages[fa.head].prev = frame
	}
	fa.head = frame
	fa.count++
}

// remove unlinks frame from the list in O(1).
func (fa *freeArea) remove(pages []Page, frame pmm.Frame) {
	p := &pages[frame]
	if p.prev != pmm.InvalidFrame {
		pages[p.prev].next = p.next
	} else {
		fa.head = p.next
	}

	if p.next != pmm.InvalidFrame {
		pages[p.next].prev = p.prev
	}

	p.next, p.prev = pmm.InvalidFrame, pmm.InvalidFrame
	fa.count--
}

// pop unlinks and returns the block at the head of the list or InvalidFrame
// if the list is empty.
func (fa *freeArea) pop(pages []Page) pmm.Frame {
	frame := fa.head
	if frame != pmm.InvalidFrame {
		fa.remove(pages, frame)
	}
	return frame
}

// visit invokes fn for each block in the list until fn returns false.
func (fa *freeArea) visit(pages []Page, fn func(pmm.Frame) bool) {
	for frame := fa.head; frame != pmm.InvalidFrame; frame = pages[frame].next {
		if !fn(frame) {
			return
		}
	}
}

// Package mem defines the memory size units and page geometry shared by the
// kernel's memory managers.
package mem

const (
	// PageShift is equal to log2(PageSize). This constant is used when
	// we need to convert a physical address to a page number (shift right by PageShift)
	// and vice-versa.
	PageShift = 12

	// PageSize defines the system's page size in bytes.
	PageSize = Size(1 << PageShift)

	// MaxPageOrder defines the number of page orders managed by the buddy
	// allocator. Valid orders are in the range [0, MaxPageOrder); the largest
	// block therefore spans 1 << (MaxPageOrder-1) pages (4 MiB).
	MaxPageOrder = PageOrder(11)
)

// Size represents a memory block size in bytes.
type Size uint64

// Common memory block sizes
const (
	Byte Size = 1
	Kb        = 1024 * Byte
	Mb        = 1024 * Kb
	Gb        = 1024 * Mb
)

// Order returns the smallest PageOrder that is suitable for storing a block of this size.
// Depending on the size, Order() may return a page order that is greater than
// or equal to MaxPageOrder.
func (s Size) Order() PageOrder {
	var order = PageOrder(0)
	for ; order < 64-PageShift; order++ {
		if PageSize<<order >= s {
			break
		}
	}

	return order
}

// Pages returns the number of pages that are required for storing this size.
func (s Size) Pages() uint64 {
	pageSizeMinus1 := PageSize - 1
	return uint64((s+pageSizeMinus1)&^pageSizeMinus1) >> PageShift
}

// PageOrder represents a power-of-two multiple of the base page size (PageSize)
// and is used as an argument to page-based memory allocators.
//
// PageOrder(0) refers to a page with size PageSize
// PageOrder(1) refers to a page with size PageSize * 2
// ...
// PageOrder(MaxPageOrder-1) refers to a page with size PageSize * 2^(MaxPageOrder-1)
type PageOrder uint8

// Pages returns the number of pages in a block of this order.
func (o PageOrder) Pages() uint64 {
	return uint64(1) << o
}

// Size returns the size in bytes of a block of this order.
func (o PageOrder) Size() Size {
	return PageSize << o
}

// Valid returns true if blocks of this order can be handed out by a
// page-based allocator.
func (o PageOrder) Valid() bool {
	return o < MaxPageOrder
}

// Package allocator implements the kernel's physical page frame allocator: a
// binary buddy system that hands out naturally aligned blocks of 2^order
// frames and merges freed blocks with their buddies.
package allocator

import (
	"io"

	"microkernel/kernel"
	"microkernel/kernel/cpu"
	"microkernel/kernel/kfmt"
	"microkernel/kernel/mem"
	"microkernel/kernel/mem/pmm"
	"microkernel/kernel/sync"
)

const (
	// maxBlockOrder is the largest order the allocator hands out.
	maxBlockOrder = mem.MaxPageOrder - 1

	// zoneAlignment is the alignment, in frames, that zone limits must
	// honor so that no block or buddy pair ever straddles two zones.
	zoneAlignment = pmm.Frame(1) << maxBlockOrder
)

var (
	errInvalidOrder    = &kernel.Error{Module: "buddy_alloc", Message: "requested order exceeds the maximum supported page order"}
	errOutOfMemory     = &kernel.Error{Module: "buddy_alloc", Message: "out of memory"}
	errNotInitialized  = &kernel.Error{Module: "buddy_alloc", Message: "allocator not initialized"}
	errFrameNotManaged = &kernel.Error{Module: "buddy_alloc", Message: "frame is not managed by the allocator"}
	errDoubleFree      = &kernel.Error{Module: "buddy_alloc", Message: "frame is already free"}
	errNotBlockHead    = &kernel.Error{Module: "buddy_alloc", Message: "frame does not head an allocated block"}
	errOrderMismatch   = &kernel.Error{Module: "buddy_alloc", Message: "free order does not match the allocation order"}
	errInvalidSize     = &kernel.Error{Module: "buddy_alloc", Message: "invalid allocation size"}
	errInvalidRange    = &kernel.Error{Module: "buddy_alloc", Message: "invalid frame range"}
	errBadZoneLimit    = &kernel.Error{Module: "buddy_alloc", Message: "zone limits must be ascending and aligned to the largest block size"}
)

// Platform bundles the services the allocator consumes from the rest of the
// kernel.
type Platform struct {
	// IRQ saves and restores the local interrupt state around the
	// allocator lock. Defaults to cpu.Local().
	IRQ cpu.InterruptMasker

	// Log receives the allocator's diagnostic output. Defaults to the
	// active kfmt output sink.
	Log io.Writer
}

// Config holds the allocator settings.
type Config struct {
	// Frames is the number of page descriptors to allocate. It must cover
	// the highest frame that will ever be seeded. Init derives it from the
	// boot memory map when left at zero.
	Frames uint64

	// VirtualBase is the virtual address at which physical address 0 is
	// mapped by the kernel.
	VirtualBase uintptr

	// DMALimit is the first frame past ZoneDMA.
	DMALimit pmm.Frame

	// NormalLimit is the first frame past ZoneNormal. Every frame at or
	// above it belongs to ZoneHighMem.
	NormalLimit pmm.Frame

	Platform Platform

	// DebugChecks enables a full consistency walk after every allocator
	// operation.
	DebugChecks bool
}

// DefaultConfig returns a Config with the x86 zone layout: 16 MiB of DMA
// memory and 896 MiB of permanently mapped memory.
func DefaultConfig() Config {
	return Config{
		DMALimit:    pmm.FrameFromAddress(uintptr(16 * mem.Mb)),
		NormalLimit: pmm.FrameFromAddress(uintptr(896 * mem.Mb)),
		Platform: Platform{
			IRQ: cpu.Local(),
		},
	}
}

func (cfg *Config) validate() *kernel.Error {
	if cfg.DMALimit%zoneAlignment != 0 || cfg.NormalLimit%zoneAlignment != 0 || cfg.DMALimit > cfg.NormalLimit {
		return errBadZoneLimit
	}
	return nil
}

// activeSink forwards writes to whatever kfmt output sink is active at the
// time of the write.
type activeSink struct{}

func (activeSink) Write(p []byte) (int, error) {
	return kfmt.Sink().Write(p)
}

// BuddyAllocator manages the physical frames of a single memory node. A single
// spinlock guards every zone; each exported method holds it for its whole
// body with local interrupts disabled.
type BuddyAllocator struct {
	mutex sync.Spinlock
	irq   cpu.InterruptMasker
	log   kfmt.PrefixWriter

	// pages is the descriptor table, indexed by PFN.
	pages []Page

	virtualBase uintptr
	dmaLimit    pmm.Frame
	normalLimit pmm.Frame
	debugChecks bool

	node node
}

// New creates an allocator whose descriptor table covers cfg.Frames frames.
// Every frame starts out reserved; memory is handed to the allocator with
// Seed.
func New(cfg Config) (*BuddyAllocator, *kernel.Error) {
	if cfg.Frames == 0 {
		return nil, errInvalidRange
	}
	return newAllocator(cfg, make([]Page, cfg.Frames))
}

// newAllocator initializes an allocator that uses pages as its descriptor
// table.
func newAllocator(cfg Config, pages []Page) (*BuddyAllocator, *kernel.Error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	alloc := &BuddyAllocator{
		irq:         cfg.Platform.IRQ,
		pages:       pages,
		virtualBase: cfg.VirtualBase,
		dmaLimit:    cfg.DMALimit,
		normalLimit: cfg.NormalLimit,
		debugChecks: cfg.DebugChecks,
		log: kfmt.PrefixWriter{
			Sink:   cfg.Platform.Log,
			Prefix: []byte("[buddy_alloc] "),
		},
	}

	if alloc.irq == nil {
		alloc.irq = cpu.Local()
	}
	if alloc.log.Sink == nil {
		alloc.log.Sink = activeSink{}
	}

	for i := range alloc.pages {
		alloc.pages[i].reset()
	}
	alloc.node.init()

	alloc.logf("buddy allocator initialized: %d page descriptors, max order %d\n", uint64(len(pages)), uint8(maxBlockOrder))
	return alloc, nil
}

// Frames returns the number of frames covered by the descriptor table.
func (alloc *BuddyAllocator) Frames() uint64 {
	return uint64(len(alloc.pages))
}

func (alloc *BuddyAllocator) logf(format string, args ...interface{}) {
	kfmt.Fprintf(&alloc.log, format, args...)
}

func (alloc *BuddyAllocator) lock() cpu.InterruptState {
	return alloc.mutex.AcquireIRQSave(alloc.irq)
}

func (alloc *BuddyAllocator) unlock(state cpu.InterruptState) {
	alloc.mutex.ReleaseIRQRestore(alloc.irq, state)
}

func (alloc *BuddyAllocator) initialized() bool {
	return alloc != nil && alloc.pages != nil
}

// zoneTypeOf returns the zone that frame belongs to.
func (alloc *BuddyAllocator) zoneTypeOf(frame pmm.Frame) ZoneType {
	switch {
	case frame < alloc.dmaLimit:
		return ZoneDMA
	case frame < alloc.normalLimit:
		return ZoneNormal
	default:
		return ZoneHighMem
	}
}

// zoneLimit returns the first frame past the given zone.
func (alloc *BuddyAllocator) zoneLimit(zt ZoneType) pmm.Frame {
	switch zt {
	case ZoneDMA:
		return alloc.dmaLimit
	case ZoneNormal:
		return alloc.normalLimit
	default:
		return pmm.InvalidFrame
	}
}

// Seed hands the frames in [start, end) to the allocator. The range is split
// at zone boundaries and each piece is carved into the largest naturally
// aligned blocks that fit. Frames that were seeded before, or that lie past
// the end of the descriptor table, cause the whole range to be rejected.
func (alloc *BuddyAllocator) Seed(start, end pmm.Frame) *kernel.Error {
	if !alloc.initialized() {
		return errNotInitialized
	}

	if start >= end {
		return nil
	}

	if uint64(end) > uint64(len(alloc.pages)) {
		return errInvalidRange
	}

	state := alloc.lock()
	defer alloc.unlock(state)

	for frame := start; frame < end; frame++ {
		if alloc.pages[frame].flags&PageReserved == 0 {
			return errInvalidRange
		}
	}

	for frame := start; frame < end; frame++ {
		alloc.pages[frame].flags &^= PageReserved
	}

	for cur := start; cur < end; {
		zt := alloc.zoneTypeOf(cur)
		segEnd := end
		if limit := alloc.zoneLimit(zt); limit < segEnd {
			segEnd = limit
		}

		alloc.seedZone(&alloc.node.zones[zt], cur, segEnd)
		cur = segEnd
	}

	if alloc.debugChecks {
		return alloc.checkInvariants()
	}
	return nil
}

// seedZone inserts the frames in [start, end), which must all belong to z,
// as the largest aligned blocks that fit. Blocks go through the coalescing
// path so that ranges seeded next to each other still merge.
func (alloc *BuddyAllocator) seedZone(z *zone, start, end pmm.Frame) {
	z.grow(start, end)
	alloc.node.grow(start, end)

	for cur := start; cur < end; {
		order := maxBlockOrder
		for order > 0 && (!cur.AlignedTo(order) || uint64(cur)+order.Pages() > uint64(end)) {
			order--
		}

		alloc.coalesce(z, cur, order)
		cur += pmm.Frame(order.Pages())
	}
}

// AllocPages reserves a block of 2^order contiguous frames and returns its
// first frame. The search starts at the zone selected by flags and falls back
// to every lower zone in descending order. Within a zone, the smallest free
// block that can hold the request is split down to the requested order.
//
// AllocPages never blocks; it returns errOutOfMemory if no zone can satisfy
// the request.
func (alloc *BuddyAllocator) AllocPages(flags GFP, order mem.PageOrder) (pmm.Frame, *kernel.Error) {
	if !alloc.initialized() {
		return pmm.InvalidFrame, errNotInitialized
	}

	if !order.Valid() {
		return pmm.InvalidFrame, errInvalidOrder
	}

	state := alloc.lock()
	frame, err := alloc.allocPages(flags, order)
	if err == nil && alloc.debugChecks {
		if err = alloc.checkInvariants(); err != nil {
			frame = pmm.InvalidFrame
		}
	}
	alloc.unlock(state)

	if err != nil {
		return pmm.InvalidFrame, err
	}

	// The block belongs to the caller at this point so it can be zeroed
	// without holding the lock.
	if flags&GFPZero != 0 {
		mem.Memset(alloc.FrameToVirt(frame), 0, order.Size())
	}

	return frame, nil
}

func (alloc *BuddyAllocator) allocPages(flags GFP, order mem.PageOrder) (pmm.Frame, *kernel.Error) {
	for zt := int(flags.preferredZone()); zt >= 0; zt-- {
		z := &alloc.node.zones[zt]
		if z.freePages < order.Pages() {
			continue
		}

		for cur := order; cur < mem.MaxPageOrder; cur++ {
			area := &z.freeArea[cur]
			if area.count == 0 {
				continue
			}

			frame := area.pop(alloc.pages)
			alloc.pages[frame].flags &^= PageBuddy
			z.freePages -= cur.Pages()

			alloc.expand(z, frame, order, cur)
			alloc.prepare(frame, order)
			z.allocCount++
			return frame, nil
		}
	}

	return pmm.InvalidFrame, errOutOfMemory
}

// expand splits the block of the given order that starts at frame until it
// reaches the target order. The upper half of each split goes back to the
// free area one order below.
func (alloc *BuddyAllocator) expand(z *zone, frame pmm.Frame, target, order mem.PageOrder) {
	for order > target {
		order--
		alloc.addFreeBlock(z, frame+pmm.Frame(order.Pages()), order)
	}
}

// prepare marks every frame of a freshly allocated block as in use and
// records the block order in its head.
func (alloc *BuddyAllocator) prepare(frame pmm.Frame, order mem.PageOrder) {
	for i, count := pmm.Frame(0), pmm.Frame(order.Pages()); i < count; i++ {
		p := &alloc.pages[frame+i]
		p.flags &^= transientFlags
		p.refcount.Store(1)
	}

	head := &alloc.pages[frame]
	head.flags |= PageHead
	head.order = order
}

// addFreeBlock inserts the block of the given order that starts at frame into
// the matching free area of z.
func (alloc *BuddyAllocator) addFreeBlock(z *zone, frame pmm.Frame, order mem.PageOrder) {
	p := &alloc.pages[frame]
	p.flags = (p.flags &^ transientFlags) | PageBuddy
	p.order = order
	z.freeArea[order].push(alloc.pages, frame)
	z.freePages += order.Pages()
}

// removeFreeBlock unlinks a free block from its free area.
func (alloc *BuddyAllocator) removeFreeBlock(z *zone, frame pmm.Frame, order mem.PageOrder) {
	z.freeArea[order].remove(alloc.pages, frame)
	alloc.pages[frame].flags &^= PageBuddy
	z.freePages -= order.Pages()
}

// FreePages returns a block previously obtained from AllocPages. The order
// must match the order used for the allocation. The block is merged with its
// buddy for as long as the buddy is free and of the same order.
//
// Misuse (an untracked frame, a tail frame, a block that is already free or a
// mismatched order) is reported as an error and leaves the allocator state
// untouched.
func (alloc *BuddyAllocator) FreePages(frame pmm.Frame, order mem.PageOrder) *kernel.Error {
	if !alloc.initialized() {
		return errNotInitialized
	}

	if !order.Valid() {
		return errInvalidOrder
	}

	return alloc.free(frame, order, false)
}

// free validates and releases the block that starts at frame. If
// useRecorded is set, the order recorded at allocation time is used instead
// of the supplied one.
func (alloc *BuddyAllocator) free(frame pmm.Frame, order mem.PageOrder, useRecorded bool) *kernel.Error {
	state := alloc.lock()
	defer alloc.unlock(state)

	recorded, err := alloc.allocatedOrder(frame)
	if err != nil {
		return err
	}

	if useRecorded {
		order = recorded
	} else if order != recorded {
		return errOrderMismatch
	}

	alloc.pages[frame].flags &^= PageHead
	for i, count := pmm.Frame(0), pmm.Frame(order.Pages()); i < count; i++ {
		alloc.pages[frame+i].refcount.Store(0)
	}

	z := &alloc.node.zones[alloc.zoneTypeOf(frame)]
	z.freeCount++
	alloc.coalesce(z, frame, order)

	if alloc.debugChecks {
		return alloc.checkInvariants()
	}
	return nil
}

// allocatedOrder returns the order of the allocated block headed by frame.
func (alloc *BuddyAllocator) allocatedOrder(frame pmm.Frame) (mem.PageOrder, *kernel.Error) {
	if uint64(frame) >= uint64(len(alloc.pages)) {
		return 0, errFrameNotManaged
	}

	p := &alloc.pages[frame]
	switch p.State() {
	case PageStateReserved:
		return 0, errFrameNotManaged
	case PageStateFree:
		return 0, errDoubleFree
	case PageStateTail:
		if p.RefCount() == 0 {
			return 0, errDoubleFree
		}
		return 0, errNotBlockHead
	}

	return p.order, nil
}

// coalesce merges the free block of the given order that starts at frame
// with its buddy for as long as the buddy is a free block of the same order
// inside the zone span, and then inserts the result into its free area.
func (alloc *BuddyAllocator) coalesce(z *zone, frame pmm.Frame, order mem.PageOrder) {
	for order < maxBlockOrder {
		buddy := frame.Buddy(order)
		if !z.spans(buddy) {
			break
		}

		bp := &alloc.pages[buddy]
		if bp.flags&PageBuddy == 0 || bp.order != order || bp.RefCount() != 0 {
			break
		}

		alloc.removeFreeBlock(z, buddy, order)
		if buddy < frame {
			frame = buddy
		}
		order++
	}

	alloc.addFreeBlock(z, frame, order)
}

package allocator

import (
	"microkernel/kernel/mem"
	"microkernel/kernel/mem/pmm"
)

// ZoneType identifies one of the physical memory zones.
type ZoneType uint8

const (
	// ZoneDMA covers the frames reachable by legacy DMA devices.
	ZoneDMA ZoneType = iota

	// ZoneNormal covers the frames that are permanently mapped by the
	// kernel.
	ZoneNormal

	// ZoneHighMem covers every frame above ZoneNormal.
	ZoneHighMem

	// zoneCount is the number of zones in a node.
	zoneCount
)

var zoneNames = [zoneCount]string{"DMA", "Normal", "HighMem"}

// String implements fmt.Stringer for ZoneType.
func (t ZoneType) String() string {
	if t >= zoneCount {
		return "unknown"
	}
	return zoneNames[t]
}

// zone is a partition of the physical address space with its own set of free
// areas. The frames reachable from its free areas are exactly the unallocated
// frames the zone manages.
type zone struct {
	zoneType ZoneType
	freeArea [mem.MaxPageOrder]freeArea

	// [start, end) is the span of frames seeded into this zone so far.
	start, end pmm.Frame

	present uint64
	managed uint64

	freePages  uint64
	allocCount uint64
	freeCount  uint64
}

func (z *zone) init(zoneType ZoneType) {
	*z = zone{
		zoneType: zoneType,
		start:    pmm.InvalidFrame,
		end:      0,
	}
	for order := range z.freeArea {
		z.freeArea[order].init()
	}
}

func (z *zone) name() string {
	return z.zoneType.String()
}

// populated returns true if any frames have been seeded into the zone.
func (z *zone) populated() bool {
	return z.present != 0
}

// spanned returns the number of frames between the first and last frame
// seeded into the zone, including holes.
func (z *zone) spanned() uint64 {
	if !z.populated() {
		return 0
	}
	return uint64(z.end - z.start)
}

// spans returns true if frame lies inside the zone span.
func (z *zone) spans(frame pmm.Frame) bool {
	return z.populated() && frame >= z.start && frame < z.end
}

// grow extends the zone span to cover [start, end) and accounts for the
// newly present frames.
func (z *zone) grow(start, end pmm.Frame) {
	if !z.populated() || start < z.start {
		z.start = start
	}
	if end > z.end {
		z.end = end
	}

	count := uint64(end - start)
	z.present += count
	z.managed += count
}

// ZoneStats is a point-in-time snapshot of a zone.
type ZoneStats struct {
	Type ZoneType
	Name string

	// StartFrame and EndFrame delimit the zone span. Both are zero for
	// zones that have not been populated.
	StartFrame, EndFrame pmm.Frame

	Spanned, Present, Managed uint64

	FreePages  uint64
	AllocCount uint64
	FreeCount  uint64

	// FreeBlocks holds the number of free blocks of each order.
	FreeBlocks [mem.MaxPageOrder]uint64
}

func (z *zone) stats() ZoneStats {
	s := ZoneStats{
		Type:       z.zoneType,
		Name:       z.name(),
		Spanned:    z.spanned(),
		Present:    z.present,
		Managed:    z.managed,
		FreePages:  z.freePages,
		AllocCount: z.allocCount,
		FreeCount:  z.freeCount,
	}

	if z.populated() {
		s.StartFrame, s.EndFrame = z.start, z.end
	}

	for order := range z.freeArea {
		s.FreeBlocks[order] = z.freeArea[order].count
	}
	return s
}

package allocator

// GFP is a set of flags that controls how a page allocation is performed.
type GFP uint32

const (
	// GFPKernel requests memory for kernel-internal use.
	GFPKernel GFP = 0x01

	// GFPAtomic marks requests issued from interrupt context. The
	// allocator never blocks so these requests need no special handling.
	GFPAtomic GFP = 0x02

	// GFPUser requests memory that will be mapped into user space.
	GFPUser GFP = 0x04

	// GFPDMA restricts the allocation to ZoneDMA.
	GFPDMA GFP = 0x08

	// GFPHighMem allows the allocation to be served from ZoneHighMem.
	GFPHighMem GFP = 0x10

	// GFPZero requests the returned block to be zero-filled.
	GFPZero GFP = 0x20

	// GFPNoWait forbids the allocator from waiting for memory to become
	// available.
	GFPNoWait GFP = 0x40
)

// preferredZone returns the zone an allocation with these flags starts its
// search from. Lower zones are tried next, in descending order.
func (f GFP) preferredZone() ZoneType {
	switch {
	case f&GFPDMA != 0:
		return ZoneDMA
	case f&GFPHighMem != 0:
		return ZoneHighMem
	default:
		return ZoneNormal
	}
}

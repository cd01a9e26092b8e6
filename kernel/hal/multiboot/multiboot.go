// Package multiboot decodes the multiboot2 information structure that the boot
// loader hands to the kernel.
package multiboot

import "encoding/binary"

type tagType uint32

// nolint
const (
	tagMbSectionEnd tagType = iota
	tagBootCmdLine
	tagBootLoaderName
	tagModules
	tagBasicMemoryInfo
	tagBiosBootDevice
	tagMemoryMap
	tagVbeInfo
	tagFramebufferInfo
	tagElfSymbols
	tagApmTable
)

const (
	// infoHeaderSize is the size of the fixed header (total size and a
	// reserved dword) that precedes the first tag.
	infoHeaderSize = 8

	// tagHeaderSize is the size of the type and size dwords that precede
	// each tag's contents.
	tagHeaderSize = 8

	// mmapHeaderSize is the size of the entry size and entry version dwords
	// that precede the memory map entries.
	mmapHeaderSize = 8

	// mmapEntrySize is the size of a version 0 memory map entry.
	mmapEntrySize = 24
)

// MemoryEntryType defines the type of a MemoryMapEntry.
type MemoryEntryType uint32

const (
	// MemAvailable indicates that the memory region is available for use.
	MemAvailable MemoryEntryType = iota + 1

	// MemReserved indicates that the memory region is not available for use.
	MemReserved

	// MemAcpiReclaimable indicates a memory region that holds ACPI info that
	// can be reused by the OS.
	MemAcpiReclaimable

	// MemNvs indicates memory that must be preserved when hibernating.
	MemNvs

	// Any value >= memUnknown will be mapped to MemReserved.
	memUnknown
)

// String implements fmt.Stringer for MemoryEntryType.
func (t MemoryEntryType) String() string {
	switch t {
	case MemAvailable:
		return "available"
	case MemReserved:
		return "reserved"
	case MemAcpiReclaimable:
		return "ACPI (reclaimable)"
	case MemNvs:
		return "NVS"
	default:
		return "unknown"
	}
}

// MemoryMapEntry describes a memory region entry, namely its physical address,
// its length and its type.
type MemoryMapEntry struct {
	// The physical address for this memory region.
	PhysAddress uint64

	// The length of the memory region.
	Length uint64

	// The type of this entry.
	Type MemoryEntryType
}

var (
	infoData []byte
)

// MemRegionVisitor defies a visitor function that gets invoked by VisitMemRegions
// for each memory region provided by the boot loader. The visitor must return true
// to continue or false to abort the scan.
type MemRegionVisitor func(entry *MemoryMapEntry) bool

// SetInfo updates the internal multiboot information block to the given
// value. This function must be invoked before invoking any other function
// exported by this package.
func SetInfo(data []byte) {
	infoData = data
}

// VisitMemRegions will invoke the supplied visitor for each memory region that
// is defined by the multiboot info data that we received from the bootloader.
// Entries with an unknown type are reported as MemReserved.
func VisitMemRegions(visitor MemRegionVisitor) {
	offset, size := findTagByType(tagMemoryMap)
	if size < mmapHeaderSize {
		return
	}

	entrySize := int(binary.LittleEndian.Uint32(infoData[offset:]))
	if entrySize < mmapEntrySize {
		return
	}

	var entry MemoryMapEntry
	end := offset + size
	for cur := offset + mmapHeaderSize; cur+mmapEntrySize <= end; cur += entrySize {
		entry.PhysAddress = binary.LittleEndian.Uint64(infoData[cur:])
		entry.Length = binary.LittleEndian.Uint64(infoData[cur+8:])
		entry.Type = MemoryEntryType(binary.LittleEndian.Uint32(infoData[cur+16:]))

		// Mark unknown entry types as reserved
		if entry.Type == 0 || entry.Type >= memUnknown {
			entry.Type = MemReserved
		}

		if !visitor(&entry) {
			return
		}
	}
}

// BootLoaderName returns the name of the boot loader that started the kernel
// or an empty string if the information is not available.
func BootLoaderName() string {
	return tagString(tagBootLoaderName)
}

// BootCmdLine returns the kernel command line supplied by the boot loader.
func BootCmdLine() string {
	return tagString(tagBootCmdLine)
}

// tagString decodes the NUL-terminated string stored in the contents of the
// specified tag.
func tagString(want tagType) string {
	offset, size := findTagByType(want)
	if size == 0 {
		return ""
	}

	str := infoData[offset : offset+size]
	for i, b := range str {
		if b == 0 {
			return string(str[:i])
		}
	}
	return string(str)
}

// findTagByType scans the multiboot info data looking for the start of of the
// specified type. It returns the offset of the tag contents and the content
// length excluding the tag header.
//
// If the tag is not present in the multiboot info or the info block is
// truncated, findTagByType will return back (0,0).
func findTagByType(want tagType) (int, int) {
	if len(infoData) < infoHeaderSize {
		return 0, 0
	}

	end := int(binary.LittleEndian.Uint32(infoData))
	if end > len(infoData) || end == 0 {
		end = len(infoData)
	}

	for cur := infoHeaderSize; cur+tagHeaderSize <= end; {
		curType := tagType(binary.LittleEndian.Uint32(infoData[cur:]))
		curSize := int(binary.LittleEndian.Uint32(infoData[cur+4:]))
		if curType == tagMbSectionEnd || curSize < tagHeaderSize || cur+curSize > end {
			break
		}

		if curType == want {
			return cur + tagHeaderSize, curSize - tagHeaderSize
		}

		// Tags are aligned at 8-byte aligned addresses
		cur += (curSize + 7) &^ 7
	}

	return 0, 0
}

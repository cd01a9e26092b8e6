package multiboot

import "encoding/binary"

// NewInfo assembles a multiboot2 information block that carries the supplied
// boot loader name and memory map. It is used to boot the kernel inside a
// hosted process where no boot loader is present. An empty name omits the
// boot loader name tag.
func NewInfo(bootLoaderName string, entries []MemoryMapEntry) []byte {
	data := make([]byte, infoHeaderSize)

	if bootLoaderName != "" {
		contents := append([]byte(bootLoaderName), 0)
		data = appendTag(data, tagBootLoaderName, contents)
	}

	mmap := make([]byte, mmapHeaderSize+len(entries)*mmapEntrySize)
	binary.LittleEndian.PutUint32(mmap[0:], mmapEntrySize)
	for i, entry := range entries {
		cur := mmapHeaderSize + i*mmapEntrySize
		binary.LittleEndian.PutUint64(mmap[cur:], entry.PhysAddress)
		binary.LittleEndian.PutUint64(mmap[cur+8:], entry.Length)
		binary.LittleEndian.PutUint32(mmap[cur+16:], uint32(entry.Type))
	}
	data = appendTag(data, tagMemoryMap, mmap)
	data = appendTag(data, tagMbSectionEnd, nil)

	binary.LittleEndian.PutUint32(data[0:], uint32(len(data)))
	return data
}

// appendTag appends a tag with the given contents to data and pads the result
// to the next 8-byte boundary.
func appendTag(data []byte, tagType tagType, contents []byte) []byte {
	var hdr [tagHeaderSize]byte
	binary.LittleEndian.PutUint32(hdr[0:], uint32(tagType))
	binary.LittleEndian.PutUint32(hdr[4:], uint32(tagHeaderSize+len(contents)))

	data = append(data, hdr[:]...)
	data = append(data, contents...)
	for len(data)%8 != 0 {
		data = append(data, 0)
	}
	return data
}

//go:build unix

// Package arena provides the backing store that stands in for physical RAM
// when the kernel memory managers run as a hosted process. An arena is an
// anonymous private mapping whose first byte is treated as physical address 0.
package arena

import (
	"unsafe"

	"microkernel/kernel"
	"microkernel/kernel/mem"

	"golang.org/x/sys/unix"
)

var (
	errInvalidSize = &kernel.Error{Module: "arena", Message: "arena size must be a non-zero multiple of the page size"}
	errMapFailed   = &kernel.Error{Module: "arena", Message: "mmap failed"}
	errUnmapFailed = &kernel.Error{Module: "arena", Message: "munmap failed"}
)

// Arena is a page-aligned region of host memory that backs the simulated
// physical address space.
type Arena struct {
	data []byte
}

// Map reserves size bytes of zero-filled host memory.
func Map(size mem.Size) (*Arena, *kernel.Error) {
	if size == 0 || size&(mem.PageSize-1) != 0 {
		return nil, errInvalidSize
	}

	data, err := unix.Mmap(-1, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, errMapFailed
	}

	return &Arena{data: data}, nil
}

// Base returns the host virtual address of the first byte in the arena. The
// kernel uses it as the offset of its direct physical memory map.
func (a *Arena) Base() uintptr {
	if len(a.data) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&a.data[0]))
}

// Len returns the arena size in bytes.
func (a *Arena) Len() mem.Size {
	return mem.Size(len(a.data))
}

// Frames returns the number of page frames that fit in the arena.
func (a *Arena) Frames() uint64 {
	return a.Len().Pages()
}

// Unmap releases the arena. Any addresses previously derived from Base
// become invalid.
func (a *Arena) Unmap() *kernel.Error {
	if a.data == nil {
		return nil
	}

	if err := unix.Munmap(a.data); err != nil {
		return errUnmapFailed
	}
	a.data = nil
	return nil
}

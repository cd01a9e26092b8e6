//go:build unix

package arena

import (
	"testing"
	"unsafe"

	"microkernel/kernel/mem"
)

func TestMap(t *testing.T) {
	a, err := Map(16 * mem.PageSize)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Unmap()

	if exp, got := 16*mem.PageSize, a.Len(); got != exp {
		t.Fatalf("expected arena length to be %d; got %d", exp, got)
	}

	if exp, got := uint64(16), a.Frames(); got != exp {
		t.Fatalf("expected arena to hold %d frames; got %d", exp, got)
	}

	if base := a.Base(); base == 0 || base&uintptr(mem.PageSize-1) != 0 {
		t.Fatalf("expected a non-nil page-aligned base address; got 0x%x", base)
	}

	// The mapping must be zero-filled and writable.
	last := (*byte)(unsafe.Pointer(a.Base() + uintptr(a.Len()) - 1))
	if *last != 0 {
		t.Fatalf("expected arena to be zero-filled; got 0x%x", *last)
	}
	*last = 0xAA
}

func TestMapErrors(t *testing.T) {
	for specIndex, size := range []mem.Size{0, mem.PageSize + 1, 100} {
		if _, err := Map(size); err != errInvalidSize {
			t.Errorf("[spec %d] expected Map(%d) to return errInvalidSize; got %v", specIndex, size, err)
		}
	}
}

func TestUnmap(t *testing.T) {
	a, err := Map(mem.PageSize)
	if err != nil {
		t.Fatal(err)
	}

	if err = a.Unmap(); err != nil {
		t.Fatal(err)
	}

	if a.Base() != 0 || a.Len() != 0 {
		t.Fatal("expected unmapped arena to be empty")
	}

	// Unmapping twice is a no-op.
	if err = a.Unmap(); err != nil {
		t.Fatal(err)
	}
}

package pmm

import (
	"testing"

	"microkernel/kernel"
	"microkernel/kernel/mem"
)

func TestFrameMethods(t *testing.T) {
	for frameIndex := uint64(0); frameIndex < 128; frameIndex++ {
		frame := Frame(frameIndex)

		if !frame.Valid() {
			t.Errorf("expected frame %d to be valid", frameIndex)
		}

		if exp, got := uintptr(frameIndex<<mem.PageShift), frame.Address(); got != exp {
			t.Errorf("expected frame (%d, index: %d) call to Address() to return %x; got %x", frame, frameIndex, exp, got)
		}
	}

	invalidFrame := InvalidFrame
	if invalidFrame.Valid() {
		t.Error("expected InvalidFrame.Valid() to return false")
	}
}

func TestFrameBuddy(t *testing.T) {
	specs := []struct {
		frame    Frame
		order    mem.PageOrder
		expBuddy Frame
		aligned  bool
	}{
		{0, 0, 1, true},
		{1, 0, 0, true},
		{4, 2, 0, true},
		{0, 10, 1024, true},
		{1024, 10, 0, true},
		{6, 1, 4, true},
		{6, 2, 2, false},
		{3, 1, 1, false},
	}

	for specIndex, spec := range specs {
		if got := spec.frame.Buddy(spec.order); got != spec.expBuddy {
			t.Errorf("[spec %d] expected buddy of frame %d (order %d) to be %d; got %d", specIndex, spec.frame, spec.order, spec.expBuddy, got)
		}

		if got := spec.frame.AlignedTo(spec.order); got != spec.aligned {
			t.Errorf("[spec %d] expected AlignedTo(%d) for frame %d to return %t; got %t", specIndex, spec.order, spec.frame, spec.aligned, got)
		}
	}
}

func TestFrameFromAddress(t *testing.T) {
	specs := []struct {
		input    uintptr
		expFrame Frame
	}{
		{0, Frame(0)},
		{4095, Frame(0)},
		{4096, Frame(1)},
		{4123, Frame(1)},
	}

	for specIndex, spec := range specs {
		if got := FrameFromAddress(spec.input); got != spec.expFrame {
			t.Errorf("[spec %d] expected returned frame to be %v; got %v", specIndex, spec.expFrame, got)
		}
	}
}

func TestFrameAllocator(t *testing.T) {
	defer SetFrameAllocator(nil)

	SetFrameAllocator(nil)
	if _, err := AllocFrame(); err != errNoFrameAllocator {
		t.Fatalf("expected errNoFrameAllocator; got %v", err)
	}

	var allocCalled bool
	customAlloc := func() (Frame, *kernel.Error) {
		allocCalled = true
		return FrameFromAddress(0xbadf00), nil
	}

	SetFrameAllocator(customAlloc)

	frame, err := AllocFrame()
	if err != nil {
		t.Fatal(err.Error())
	}

	if !allocCalled {
		t.Fatal("expected custom allocator to be invoked after all to AllocFrame")
	}

	if exp := FrameFromAddress(0xbadf00); frame != exp {
		t.Fatalf("expected frame %d; got %d", exp, frame)
	}
}

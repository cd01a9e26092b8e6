// Package cpu exposes the processor primitives used by the rest of the kernel.
//
// The hosted implementation emulates the local interrupt flag of a single CPU
// in software so that code which brackets critical sections with interrupt
// save/restore pairs can run and be tested in user space.
package cpu

import "sync/atomic"

//go:generate mockgen -destination=mock_cpu/interrupts.go -package=mock_cpu microkernel/kernel/cpu InterruptMasker

// InterruptState captures the local interrupt state as returned by
// InterruptMasker.SaveAndDisable. Its encoding mirrors the IF bit of RFLAGS.
type InterruptState uintptr

// InterruptsEnabled is the state bit set while the CPU accepts interrupts.
const InterruptsEnabled InterruptState = 1 << 9

// Enabled returns true if the state has interrupts enabled.
func (s InterruptState) Enabled() bool {
	return s&InterruptsEnabled != 0
}

// InterruptMasker is implemented by types that can mask the interrupts of the
// CPU running the caller. Code that takes a lock which may also be taken from
// an interrupt handler must disable interrupts before spinning on it.
type InterruptMasker interface {
	// SaveAndDisable disables local interrupts and returns the state that
	// was active before the call.
	SaveAndDisable() InterruptState

	// Restore re-applies a state previously returned by SaveAndDisable.
	Restore(InterruptState)
}

// SoftInterrupts is an InterruptMasker that keeps the interrupt flag in
// memory. The zero value has interrupts enabled.
//
// Critical sections nest: SaveAndDisable increments a depth counter and
// Restore decrements it. The flag is re-enabled only when the depth drops back
// to zero and interrupts were enabled when the outermost section started.
// Goroutines sharing a SoftInterrupts act as callers on the same CPU, so the
// order in which they restore does not matter.
type SoftInterrupts struct {
	// word packs the disabled flag, the flag saved by the outermost
	// section and the nesting depth.
	word atomic.Uint64
}

const (
	softDisabled      = uint64(1) << 63
	softSavedDisabled = uint64(1) << 62
	softDepthMask     = softSavedDisabled - 1
)

// SaveAndDisable implements InterruptMasker.
func (s *SoftInterrupts) SaveAndDisable() InterruptState {
	for {
		old := s.word.Load()
		depth := old & softDepthMask

		saved := old & softSavedDisabled
		if depth == 0 {
			saved = 0
			if old&softDisabled != 0 {
				saved = softSavedDisabled
			}
		}

		if s.word.CompareAndSwap(old, softDisabled|saved|(depth+1)) {
			if old&softDisabled != 0 {
				return 0
			}
			return InterruptsEnabled
		}
	}
}

// Restore implements InterruptMasker. Inside a critical section it closes the
// innermost section; the supplied state only takes effect when no section is
// open.
func (s *SoftInterrupts) Restore(state InterruptState) {
	for {
		old := s.word.Load()
		depth := old & softDepthMask

		var next uint64
		switch {
		case depth == 0 && !state.Enabled():
			next = softDisabled
		case depth == 0:
			next = 0
		case depth == 1 && old&softSavedDisabled == 0:
			next = 0
		case depth == 1:
			next = softDisabled
		default:
			next = (old &^ softDepthMask) | (depth - 1)
		}

		if s.word.CompareAndSwap(old, next) {
			return
		}
	}
}

// Enabled returns true if interrupts are currently enabled.
func (s *SoftInterrupts) Enabled() bool {
	return s.word.Load()&softDisabled == 0
}

// Depth returns the number of open critical sections.
func (s *SoftInterrupts) Depth() uint64 {
	return s.word.Load() & softDepthMask
}

// set changes the interrupt flag without affecting open critical sections.
func (s *SoftInterrupts) set(enabled bool) {
	for {
		old := s.word.Load()
		next := old | softDisabled
		if enabled {
			next = old &^ softDisabled
		}

		if s.word.CompareAndSwap(old, next) {
			return
		}
	}
}

var local SoftInterrupts

// Local returns the InterruptMasker for the CPU running the caller.
func Local() InterruptMasker {
	return &local
}

// EnableInterrupts enables interrupt handling.
func EnableInterrupts() {
	local.set(true)
}

// DisableInterrupts disables interrupt handling.
func DisableInterrupts() {
	local.set(false)
}

// InterruptsEnabledNow reports whether the local CPU currently accepts
// interrupts.
func InterruptsEnabledNow() bool {
	return local.Enabled()
}

// Halt stops instruction execution. Hosted builds park the calling goroutine
// forever.
func Halt() {
	select {}
}

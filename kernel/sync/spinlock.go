// Package sync provides synchronization primitive implementations for spinlocks.
package sync

import (
	"runtime"
	"sync/atomic"

	"microkernel/kernel/cpu"
)

// attemptsBeforeYielding is the number of failed acquisition attempts after
// which a spinning task gives up its time slice.
const attemptsBeforeYielding = 64

var (
	// yieldFn is invoked while spinning on a contended lock. Hosted builds
	// hand the time slice back to the Go scheduler.
	yieldFn = runtime.Gosched
)

// Spinlock implements a lock where each task trying to acquire it busy-waits
// till the lock becomes available.
type Spinlock struct {
	state uint32
}

// Acquire blocks until the lock can be acquired by the currently active task.
// Any attempt to re-acquire a lock already held by the current task will cause
// a deadlock.
func (l *Spinlock) Acquire() {
	for attempts := uint32(0); !atomic.CompareAndSwapUint32(&l.state, 0, 1); attempts++ {
		if attempts < attemptsBeforeYielding {
			continue
		}

		attempts = 0
		if yieldFn != nil {
			yieldFn()
		}
	}
}

// TryToAcquire attempts to acquire the lock and returns true if the lock could
// be acquired or false otherwise.
func (l *Spinlock) TryToAcquire() bool {
	return atomic.SwapUint32(&l.state, 1) == 0
}

// Release relinquishes a held lock allowing other tasks to acquire it. Calling
// Release while the lock is free has no effect.
func (l *Spinlock) Release() {
	atomic.StoreUint32(&l.state, 0)
}

// AcquireIRQSave disables local interrupts using irq and then acquires the
// lock. The returned state must be passed to ReleaseIRQRestore.
//
// Locks that can also be taken by interrupt handlers must be acquired this
// way; otherwise an interrupt arriving while the lock is held would spin
// forever on the same CPU.
func (l *Spinlock) AcquireIRQSave(irq cpu.InterruptMasker) cpu.InterruptState {
	state := irq.SaveAndDisable()
	l.Acquire()
	return state
}

// ReleaseIRQRestore releases the lock and then restores the interrupt state
// saved by AcquireIRQSave.
func (l *Spinlock) ReleaseIRQRestore(irq cpu.InterruptMasker, state cpu.InterruptState) {
	l.Release()
	irq.Restore(state)
}

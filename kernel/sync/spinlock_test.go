package sync

import (
	"runtime"
	"sync"
	"testing"
	"time"

	"microkernel/kernel/cpu"
	"microkernel/kernel/cpu/mock_cpu"

	"go.uber.org/mock/gomock"
)

func TestSpinlock(t *testing.T) {
	// Substitute the yieldFn with runtime.Gosched to avoid deadlocks while testing
	defer func(origYieldFn func()) { yieldFn = origYieldFn }(yieldFn)
	yieldFn = runtime.Gosched

	var (
		sl         Spinlock
		wg         sync.WaitGroup
		numWorkers = 10
	)

	sl.Acquire()

	if sl.TryToAcquire() != false {
		t.Error("expected TryToAcquire to return false when lock is held")
	}

	wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go func(worker int) {
			sl.Acquire()
			sl.Release()
			wg.Done()
		}(i)
	}

	<-time.After(100 * time.Millisecond)
	sl.Release()
	wg.Wait()

	if !sl.TryToAcquire() {
		t.Error("expected TryToAcquire to succeed once all workers released the lock")
	}
}

func TestSpinlockYieldsWhileContended(t *testing.T) {
	defer func(origYieldFn func()) { yieldFn = origYieldFn }(yieldFn)

	var (
		sl         Spinlock
		yieldCount int
	)

	sl.Acquire()
	yieldFn = func() {
		yieldCount++
		if yieldCount == 3 {
			sl.Release()
		}
	}

	sl.Acquire()
	if yieldCount != 3 {
		t.Fatalf("expected spinning task to yield 3 times; yielded %d", yieldCount)
	}
}

func TestSpinlockIRQSave(t *testing.T) {
	ctrl := gomock.NewController(t)
	irq := mock_cpu.NewMockInterruptMasker(ctrl)

	var sl Spinlock

	gomock.InOrder(
		irq.EXPECT().SaveAndDisable().Return(cpu.InterruptsEnabled),
		irq.EXPECT().Restore(cpu.InterruptsEnabled),
	)

	state := sl.AcquireIRQSave(irq)
	if sl.TryToAcquire() {
		t.Fatal("expected lock to be held after AcquireIRQSave")
	}

	sl.ReleaseIRQRestore(irq, state)
	if !sl.TryToAcquire() {
		t.Fatal("expected lock to be free after ReleaseIRQRestore")
	}
}

package kfmt

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"golang.org/x/sync/errgroup"

	"microkernel/kernel"
	"microkernel/kernel/cpu"
)

func TestPanic(t *testing.T) {
	defer func() {
		cpuHaltFn = cpu.Halt
		outputSink = nil
	}()

	var (
		cpuHaltCalled bool
		buf           bytes.Buffer
	)
	cpuHaltFn = func() {
		cpuHaltCalled = true
	}
	SetOutputSink(&buf)

	specs := []struct {
		name string
		arg  interface{}
		exp  string
	}{
		{
			"with *kernel.Error",
			&kernel.Error{Module: "test", Message: "panic test"},
			"\n-----------------------------------\n[test] unrecoverable error: panic test\n*** kernel panic: system halted ***\n-----------------------------------\n",
		},
		{
			"with error",
			errors.New("go error"),
			"\n-----------------------------------\n[rt] unrecoverable error: go error\n*** kernel panic: system halted ***\n-----------------------------------\n",
		},
		{
			"with string",
			"string error",
			"\n-----------------------------------\n[rt] unrecoverable error: string error\n*** kernel panic: system halted ***\n-----------------------------------\n",
		},
		{
			"without error",
			nil,
			"\n-----------------------------------\n*** kernel panic: system halted ***\n-----------------------------------\n",
		},
	}

	for _, spec := range specs {
		t.Run(spec.name, func(t *testing.T) {
			cpuHaltCalled = false
			buf.Reset()

			Panic(spec.arg)

			if got := buf.String(); got != spec.exp {
				t.Fatalf("expected to get:\n%q\ngot:\n%q", spec.exp, got)
			}

			if !cpuHaltCalled {
				t.Fatal("expected cpu.Halt() to be called by Panic")
			}
		})
	}
}

// countingWriter counts the bytes written to it by concurrent callers.
type countingWriter struct {
	mu sync.Mutex
	n  int
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	w.n += len(p)
	w.mu.Unlock()
	return len(p), nil
}

func TestPanicConcurrentMessages(t *testing.T) {
	defer func() {
		cpuHaltFn = cpu.Halt
		outputSink = nil
	}()

	var halts atomic.Int32
	cpuHaltFn = func() { halts.Add(1) }

	// Messages of different lengths; each panic must print its own.
	const workers = 8
	msgs := make([]string, workers)
	for w := range msgs {
		msgs[w] = strings.Repeat("x", 1+w*7)
	}

	var (
		buf      bytes.Buffer
		expBytes int
	)
	SetOutputSink(&buf)
	for _, msg := range msgs {
		buf.Reset()
		Panic(msg)
		expBytes += buf.Len() * 100
	}

	sink := &countingWriter{}
	SetOutputSink(sink)
	halts.Store(0)

	g, _ := errgroup.WithContext(context.Background())
	for w := 0; w < workers; w++ {
		w := w
		g.Go(func() error {
			for i := 0; i < 100; i++ {
				if w%2 == 0 {
					Panic(msgs[w])
				} else {
					Panic(errors.New(msgs[w]))
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	if got := int(halts.Load()); got != workers*100 {
		t.Fatalf("expected %d halts; got %d", workers*100, got)
	}

	if sink.n != expBytes {
		t.Fatalf("expected %d bytes of panic output; got %d", expBytes, sink.n)
	}
}

package kfmt

import (
	"microkernel/kernel"
	"microkernel/kernel/cpu"
)

var (
	// cpuHaltFn is mocked by tests.
	cpuHaltFn = cpu.Halt
)

// runtimePanicModule tags panics that do not carry a *kernel.Error.
const runtimePanicModule = "rt"

// Panic outputs the supplied error (if not nil) to the active output sink and
// halts the CPU. Calls to Panic never return.
func Panic(e interface{}) {
	var err *kernel.Error

	switch t := e.(type) {
	case *kernel.Error:
		err = t
	case string:
		err = &kernel.Error{Module: runtimePanicModule, Message: t}
	case error:
		err = &kernel.Error{Module: runtimePanicModule, Message: t.Error()}
	}

	Printf("\n-----------------------------------\n")
	if err != nil {
		Printf("[%s] unrecoverable error: %s\n", err.Module, err.Message)
	}
	Printf("*** kernel panic: system halted ***")
	Printf("\n-----------------------------------\n")

	cpuHaltFn()
}

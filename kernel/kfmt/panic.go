package kfmt

import (
	"github.com/finnmattis/finn-os/kernel"
	"github.com/finnmattis/finn-os/kernel/cpu"
)

var (
	cpuHaltFn = cpu.Halt

	// panicHookFn runs after the panic report is printed and before the
	// CPU halts. The self-test image uses it to report failure to QEMU.
	panicHookFn func()

	// panicking is set by the outermost Panic call. A panic raised while
	// reporting another one (e.g. from the hook) halts straight away.
	panicking bool

	errRuntimePanic = &kernel.Error{Module: "rt", Message: "unknown cause"}
)

// SetPanicHook registers fn to be invoked by Panic right before the CPU is
// halted. Passing nil removes the hook.
func SetPanicHook(fn func()) {
	panicHookFn = fn
}

// Panic prints e, runs the panic hook and halts the CPU. It never returns.
// e may be a *kernel.Error, an error, a string or nil. Calls to panic() end
// up here through the runtime.gopanic redirect.
//
//go:redirect-from runtime.gopanic
func Panic(e interface{}) {
	if panicking {
		cpuHaltFn()
		return
	}
	panicking = true

	var err *kernel.Error
	switch t := e.(type) {
	case *kernel.Error:
		err = t
	case error:
		errRuntimePanic.Message = t.Error()
		err = errRuntimePanic
	case string:
		errRuntimePanic.Message = t
		err = errRuntimePanic
	}

	Printf("\n*** kernel panic ***\n")
	if err != nil {
		Printf("[%s] %s\n", err.Module, err.Message)
	}
	Printf("system halted\n")

	if panicHookFn != nil {
		panicHookFn()
	}

	cpuHaltFn()
}

// panicString is the redirect target for runtime.throw.
//
//go:redirect-from runtime.throw
func panicString(msg string) {
	Panic(msg)
}

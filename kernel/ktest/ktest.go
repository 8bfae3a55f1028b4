// Package ktest runs self-test cases inside the kernel and reports the
// outcome to QEMU through the isa-debug-exit device.
package ktest

import (
	"github.com/finnmattis/finn-os/kernel"
	"github.com/finnmattis/finn-os/kernel/kfmt"
	"github.com/finnmattis/finn-os/kernel/qemu"
)

// Case is a named self-test. Fn returns nil when the test passes.
type Case struct {
	Name string
	Fn   func() *kernel.Error
}

var (
	exitFn         = qemu.Exit
	setPanicHookFn = kfmt.SetPanicHook
)

// Run executes cases in order and exits QEMU with qemu.Success once all of
// them pass. The first failing case, or a kernel panic while a case runs,
// exits with qemu.Failed.
func Run(cases []Case) {
	kfmt.Printf("Running %d tests\n", len(cases))
	setPanicHookFn(func() {
		kfmt.Printf("[failed]\n")
		exitFn(qemu.Failed)
	})

	for _, c := range cases {
		kfmt.Printf("%s...\t", c.Name)
		if err := c.Fn(); err != nil {
			kfmt.Printf("[failed]\n")
			kfmt.Printf("[%s] %s\n", err.Module, err.Message)
			exitFn(qemu.Failed)
			return
		}
		kfmt.Printf("[ok]\n")
	}

	setPanicHookFn(nil)
	exitFn(qemu.Success)
}

// RunShouldPanic executes a case that is expected to end in a kernel panic.
// The panic counts as a pass; returning from the case counts as a failure.
func RunShouldPanic(c Case) {
	kfmt.Printf("%s...\t", c.Name)
	setPanicHookFn(func() {
		kfmt.Printf("[ok]\n")
		exitFn(qemu.Success)
	})

	c.Fn()

	setPanicHookFn(nil)
	kfmt.Printf("[test did not panic]\n")
	exitFn(qemu.Failed)
}

package kmain

import (
	"unsafe"

	"github.com/finnmattis/finn-os/device/ps2/keyboard"
	"github.com/finnmattis/finn-os/kernel"
	"github.com/finnmattis/finn-os/kernel/async"
	"github.com/finnmattis/finn-os/kernel/cpu"
	"github.com/finnmattis/finn-os/kernel/heap"
	"github.com/finnmattis/finn-os/kernel/kfmt"
	"github.com/finnmattis/finn-os/kernel/ktest"
	"github.com/finnmattis/finn-os/kernel/task"
	"github.com/finnmattis/finn-os/kernel/timer"
)

var (
	errWrongValue       = &kernel.Error{Module: "selftest", Message: "unexpected value"}
	errAllocSucceeded   = &kernel.Error{Module: "selftest", Message: "allocation should have failed"}
	errTaskNotCompleted = &kernel.Error{Module: "selftest", Message: "task did not complete"}
	errExpectedPanic    = &kernel.Error{Module: "selftest", Message: "expected panic"}

	// selfTests run under the "selftest" command line flag. The timer case
	// needs interrupts; the rest run on the bare CPU.
	selfTests = []ktest.Case{
		{Name: "heap_boxes", Fn: testHeapBoxes},
		{Name: "large_slice", Fn: testLargeSlice},
		{Name: "many_boxes", Fn: testManyBoxes},
		{Name: "bump_allocator_reuse", Fn: testBumpAllocatorReuse},
		{Name: "keyboard_decode", Fn: testKeyboardDecode},
		{Name: "executor_smoke", Fn: testExecutorSmoke},
		{Name: "timer_sleep", Fn: testTimerSleep},
	}
)

// runSelfTests runs the self-test suite or, with mode "panic", checks that
// a kernel panic is reported as a pass by the should-panic runner.
func runSelfTests(mode string) {
	cpu.EnableInterrupts()

	if mode == "panic" {
		ktest.RunShouldPanic(ktest.Case{Name: "should_panic", Fn: func() *kernel.Error {
			kfmt.Panic(errExpectedPanic)
			return nil
		}})
		return
	}

	ktest.Run(selfTests)
}

func testHeapBoxes() *kernel.Error {
	a, b := new(uint64), new(uint64)
	*a, *b = 41, 13
	if *a+*b != 54 {
		return errWrongValue
	}
	return nil
}

func testLargeSlice() *kernel.Error {
	const n = 1000

	values := make([]uint64, 0, n)
	for i := uint64(0); i < n; i++ {
		values = append(values, i)
	}

	var sum uint64
	for _, v := range values {
		sum += v
	}
	if sum != (n-1)*n/2 {
		return errWrongValue
	}
	return nil
}

func testManyBoxes() *kernel.Error {
	long := new(uint64)
	*long = 1

	for i := uint64(0); i < 10000; i++ {
		x := new(uint64)
		*x = i
		if *x != i {
			return errWrongValue
		}
	}

	if *long != 1 {
		return errWrongValue
	}
	return nil
}

// testBumpAllocatorReuse checks that freeing one of two allocations does not
// reclaim space while freeing both does.
func testBumpAllocatorReuse() *kernel.Error {
	var (
		arena [4]uint64
		alloc heap.BumpAllocator
	)
	alloc.Init(uintptr(unsafe.Pointer(&arena[0])), unsafe.Sizeof(arena))

	a, err := alloc.Alloc(16, 8)
	if err != nil {
		return err
	}
	b, err := alloc.Alloc(16, 8)
	if err != nil {
		return err
	}

	if err = alloc.Dealloc(a); err != nil {
		return err
	}
	if _, err = alloc.Alloc(16, 8); err == nil {
		return errAllocSucceeded
	}

	if err = alloc.Dealloc(b); err != nil {
		return err
	}
	if _, err = alloc.Alloc(32, 8); err != nil {
		return err
	}
	return nil
}

func testKeyboardDecode() *kernel.Error {
	var kb keyboard.Keyboard

	var out []rune
	for _, scancode := range []uint8{0x2a, 0x23, 0xa3, 0xaa, 0x17, 0x97} {
		ev, err := keyboard.DecodeScancode(scancode)
		if err != nil {
			return err
		}
		if key, ok := kb.Process(ev); ok && key.Kind == keyboard.KindUnicode {
			out = append(out, key.Char)
		}
	}

	if string(out) != "Hi" {
		return errWrongValue
	}
	return nil
}

func testExecutorSmoke() *kernel.Error {
	var polled int

	executor := task.NewExecutor(task.HardwareIdler{})
	executor.Spawn(task.New(async.FutureFunc(func(*async.Context) async.PollState {
		polled++
		return async.Ready
	})))
	executor.RunOnce()

	if polled != 1 || executor.Len() != 0 {
		return errTaskNotCompleted
	}
	return nil
}

// testTimerSleep waits for two timer interrupts through the executor.
func testTimerSleep() *kernel.Error {
	start := timer.Ticks()

	executor := task.NewExecutor(task.HardwareIdler{})
	executor.Spawn(task.New(timer.Sleep(2)))

	for executor.Len() != 0 {
		executor.RunOnce()
		if executor.Len() != 0 {
			cpu.EnableInterruptsAndHalt()
		}
	}

	// A tick left pending from before the spawn counts as one of the two.
	if timer.Ticks()-start < 1 {
		return errWrongValue
	}
	return nil
}

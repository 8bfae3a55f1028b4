package kmain

import (
	"github.com/finnmattis/finn-os/device/ps2/keyboard"
	"github.com/finnmattis/finn-os/device/ps2/mouse"
	"github.com/finnmattis/finn-os/device/video/console"
	"github.com/finnmattis/finn-os/kernel"
	"github.com/finnmattis/finn-os/kernel/cpu"
	"github.com/finnmattis/finn-os/kernel/gate"
	"github.com/finnmattis/finn-os/kernel/goruntime"
	"github.com/finnmattis/finn-os/kernel/hal"
	"github.com/finnmattis/finn-os/kernel/hal/multiboot"
	"github.com/finnmattis/finn-os/kernel/heap"
	"github.com/finnmattis/finn-os/kernel/irq"
	"github.com/finnmattis/finn-os/kernel/kfmt"
	"github.com/finnmattis/finn-os/kernel/mm/pmm"
	"github.com/finnmattis/finn-os/kernel/mm/vmm"
	"github.com/finnmattis/finn-os/kernel/task"

	// Drivers register themselves with the HAL from their init functions.
	_ "github.com/finnmattis/finn-os/device/ps2"
	_ "github.com/finnmattis/finn-os/device/serial"
	_ "github.com/finnmattis/finn-os/device/tty"
)

const (
	// screenWidth and screenHeight bound the pointer tracked by the
	// desktop task when no console was found.
	screenWidth  = 80
	screenHeight = 25
)

var (
	errKmainReturned = &kernel.Error{Module: "kmain", Message: "Kmain returned"}
)

// Kmain is the only Go symbol that is visible (exported) from the rt0 initialization
// code. This function is invoked by the rt0 assembly code after setting up the GDT
// and setting up a a minimal g0 struct that allows Go code using the 4K stack
// allocated by the assembly code.
//
// The rt0 code passes the address of the multiboot info payload provided by the
// bootloader as well as the physical addresses for the kernel start/end.
//
// Kmain is not expected to return. If it does, the rt0 code will halt the CPU.
//
//go:noinline
func Kmain(multibootInfoPtr, kernelStart, kernelEnd uintptr) {
	multiboot.SetInfoPtr(multibootInfoPtr)

	pmm.Init(kernelStart, kernelEnd)
	vmm.Init()

	var err *kernel.Error
	if err = heap.Init(); err != nil {
		kfmt.Panic(err)
	} else if err = goruntime.Init(); err != nil {
		kfmt.Panic(err)
	}

	// Probing allocates, so it has to wait for the Go allocator.
	hal.DetectHardware()
	kfmt.Logf("kmain", "booted by %s; cmdline: %s", multiboot.BootLoaderName(), multiboot.CmdLine())

	gate.Init()
	if err = irq.Init(); err != nil {
		kfmt.Panic(err)
	}

	if mode, ok := multiboot.CmdLineFlag("selftest"); ok {
		runSelfTests(mode)
	} else {
		runDesktop()
	}

	// Use kfmt.Panic instead of panic to prevent the compiler from
	// treating kfmt.Panic as dead-code and eliminating it.
	kfmt.Panic(errKmainReturned)
}

// runDesktop spawns the interactive tasks and hands the CPU to the executor.
func runDesktop() {
	printKeypresses, err := keyboard.PrintKeypresses()
	if err != nil {
		kfmt.Panic(err)
	}

	width, height := screenWidth, screenHeight
	cons := hal.ActiveConsole()
	if cons != nil {
		w, h := cons.Dimensions()
		width, height = int(w), int(h)
	}

	pointer := &mouse.Pointer{X: width / 2, Y: height / 2, Width: width, Height: height}
	if cons != nil {
		cursor := console.NewCursor(cons)
		cursor.MoveTo(uint32(pointer.X), uint32(pointer.Y))
		pointer.OnMove = func(x, y int) { cursor.MoveTo(uint32(x), uint32(y)) }
	}

	executor := task.NewExecutor(task.HardwareIdler{})
	executor.Spawn(task.New(printKeypresses))
	executor.Spawn(task.New(mouse.TrackPointer(pointer)))

	cpu.EnableInterrupts()
	executor.Run()
}

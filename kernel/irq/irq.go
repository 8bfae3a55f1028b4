package irq

import (
	"github.com/finnmattis/finn-os/device/ps2"
	"github.com/finnmattis/finn-os/device/ps2/keyboard"
	"github.com/finnmattis/finn-os/device/ps2/mouse"
	"github.com/finnmattis/finn-os/kernel"
	"github.com/finnmattis/finn-os/kernel/cpu"
	"github.com/finnmattis/finn-os/kernel/gate"
	"github.com/finnmattis/finn-os/kernel/kfmt"
	"github.com/finnmattis/finn-os/kernel/sync"
	"github.com/finnmattis/finn-os/kernel/timer"
)

const (
	// PIC1Offset is the interrupt number of IRQ 0.
	PIC1Offset uint8 = 32

	// PIC2Offset is the interrupt number of IRQ 8.
	PIC2Offset = PIC1Offset + 8

	// DoubleFaultIST is the interrupt stack table slot used by the double
	// fault handler so that it runs on a known-good stack.
	DoubleFaultIST = 1
)

// InterruptIndex is the interrupt number of a remapped hardware IRQ.
type InterruptIndex uint8

const (
	// Timer is raised by the programmable interval timer (IRQ 0).
	Timer = InterruptIndex(PIC1Offset)

	// Keyboard is raised when the PS/2 keyboard has data (IRQ 1).
	Keyboard = InterruptIndex(PIC1Offset + 1)

	// Mouse is raised when the PS/2 mouse has data (IRQ 12).
	Mouse = InterruptIndex(PIC2Offset + 4)
)

// cascadeLine is the master line the slave controller is wired to.
const cascadeLine = 2

// Line returns the IRQ line the interrupt is raised on.
func (i InterruptIndex) Line() uint8 {
	return uint8(i) - PIC1Offset
}

var (
	// pics is installed by Init before interrupts are enabled and read by
	// every hardware interrupt handler.
	pics sync.OnceCell[*ChainedPICs]

	handleInterruptFn = gate.HandleInterrupt
	readCR2Fn         = cpu.ReadCR2
	panicFn           = kfmt.Panic

	errDoubleFault = &kernel.Error{Module: "irq", Message: "double fault"}
	errGPF         = &kernel.Error{Module: "irq", Message: "general protection fault"}
	errPageFault   = &kernel.Error{Module: "irq", Message: "page fault"}
)

// PICs returns the controller pair installed by Init.
func PICs() (*ChainedPICs, bool) {
	return pics.Get()
}

// Init installs the exception and IRQ handlers, remaps the interrupt
// controllers and unmasks the timer, keyboard and mouse lines. It must be
// called exactly once, after gate.Init and before interrupts are enabled.
func Init() *kernel.Error {
	if err := pics.TryInit(func() *ChainedPICs {
		p := NewChainedPICs(PIC1Offset, PIC2Offset)
		return &p
	}); err != nil {
		return err
	}

	for _, h := range []struct {
		num     gate.InterruptNumber
		ist     uint8
		handler func(*gate.Registers)
	}{
		{gate.Breakpoint, 0, breakpointHandler},
		{gate.DoubleFault, DoubleFaultIST, doubleFaultHandler},
		{gate.GPFException, 0, generalProtectionFaultHandler},
		{gate.PageFaultException, 0, pageFaultHandler},
		{gate.InterruptNumber(Timer), 0, timerHandler},
		{gate.InterruptNumber(Keyboard), 0, keyboardHandler},
		{gate.InterruptNumber(Mouse), 0, mouseHandler},
	} {
		if err := handleInterruptFn(h.num, h.ist, h.handler); err != nil {
			return err
		}
	}

	p, _ := pics.Get()
	p.Initialize()
	for _, line := range []uint8{Timer.Line(), Keyboard.Line(), cascadeLine, Mouse.Line()} {
		p.UnmaskLine(line)
	}

	return nil
}

func endOfInterrupt(index InterruptIndex) {
	if p, ok := pics.Get(); ok {
		p.NotifyEndOfInterrupt(uint8(index))
	}
}

func timerHandler(_ *gate.Registers) {
	timer.Tick()
	endOfInterrupt(Timer)
}

func keyboardHandler(_ *gate.Registers) {
	keyboard.AddScancode(portReadByteFn(ps2.DataPort))
	endOfInterrupt(Keyboard)
}

func mouseHandler(_ *gate.Registers) {
	mouse.HandleByte(portReadByteFn(ps2.DataPort))
	endOfInterrupt(Mouse)
}

func breakpointHandler(regs *gate.Registers) {
	kfmt.Logf("irq", "EXCEPTION: breakpoint at 0x%x", regs.RIP)
}

func doubleFaultHandler(regs *gate.Registers) {
	kfmt.Printf("\nDouble fault (error code: %d)\nRegisters:\n", regs.ErrorCode)
	regs.DumpTo(kfmt.GetOutputSink())
	panicFn(errDoubleFault)
}

func generalProtectionFaultHandler(regs *gate.Registers) {
	kfmt.Printf("\nGeneral protection fault (error code: %d)\nRegisters:\n", regs.ErrorCode)
	regs.DumpTo(kfmt.GetOutputSink())
	panicFn(errGPF)
}

// Page fault error code bits.
const (
	pfPresent = 1 << 0
	pfWrite   = 1 << 1
	pfUser    = 1 << 2
	pfFetch   = 1 << 4
)

func pageFaultHandler(regs *gate.Registers) {
	kfmt.Printf("\nPage fault while accessing address: 0x%16x\nReason: ", readCR2Fn())
	switch {
	case regs.ErrorCode&pfPresent == 0:
		kfmt.Printf("page not present")
	case regs.ErrorCode&pfFetch != 0:
		kfmt.Printf("instruction fetch from non-executable page")
	case regs.ErrorCode&pfWrite != 0:
		kfmt.Printf("write to read-only page")
	default:
		kfmt.Printf("protection violation")
	}
	if regs.ErrorCode&pfUser != 0 {
		kfmt.Printf(" (user mode)")
	}
	kfmt.Printf("\nRegisters:\n")
	regs.DumpTo(kfmt.GetOutputSink())

	panicFn(errPageFault)
}

package gate

import (
	"io"
	"unsafe"

	"github.com/finnmattis/finn-os/kernel"
	"github.com/finnmattis/finn-os/kernel/kfmt"
)

// Registers contains a snapshot of all register values when an exception or
// interrupt occurs. The field order mirrors the stack layout built by the
// gate entry code; do not reorder.
type Registers struct {
	RAX uint64
	RBX uint64
	RCX uint64
	RDX uint64
	RSI uint64
	RDI uint64
	RBP uint64
	R8  uint64
	R9  uint64
	R10 uint64
	R11 uint64
	R12 uint64
	R13 uint64
	R14 uint64
	R15 uint64

	// Info contains the interrupt number.
	Info uint64

	// ErrorCode holds the code pushed by the CPU for exceptions that
	// provide one and 0 for everything else.
	ErrorCode uint64

	// The return frame used by IRETQ
	RIP    uint64
	CS     uint64
	RFlags uint64
	RSP    uint64
	SS     uint64
}

// DumpTo outputs the register contents to w.
func (r *Registers) DumpTo(w io.Writer) {
	kfmt.Fprintf(w, "RAX = %16x RBX = %16x\n", r.RAX, r.RBX)
	kfmt.Fprintf(w, "RCX = %16x RDX = %16x\n", r.RCX, r.RDX)
	kfmt.Fprintf(w, "RSI = %16x RDI = %16x\n", r.RSI, r.RDI)
	kfmt.Fprintf(w, "RBP = %16x\n", r.RBP)
	kfmt.Fprintf(w, "R8  = %16x R9  = %16x\n", r.R8, r.R9)
	kfmt.Fprintf(w, "R10 = %16x R11 = %16x\n", r.R10, r.R11)
	kfmt.Fprintf(w, "R12 = %16x R13 = %16x\n", r.R12, r.R13)
	kfmt.Fprintf(w, "R14 = %16x R15 = %16x\n", r.R14, r.R15)
	kfmt.Fprintf(w, "\n")
	kfmt.Fprintf(w, "RIP = %16x CS  = %16x\n", r.RIP, r.CS)
	kfmt.Fprintf(w, "RSP = %16x SS  = %16x\n", r.RSP, r.SS)
	kfmt.Fprintf(w, "RFL = %16x\n", r.RFlags)
}

// InterruptNumber describes an x86 interrupt/exception/trap slot.
type InterruptNumber uint8

const (
	// DivideByZero occurs when dividing any number by 0 using the DIV or
	// IDIV instruction.
	DivideByZero = InterruptNumber(0)

	// NMI (non-maskable-interrupt) is a hardware interrupt that indicates
	// issues with RAM or unrecoverable hardware problems.
	NMI = InterruptNumber(2)

	// Breakpoint is raised by the INT3 instruction.
	Breakpoint = InterruptNumber(3)

	// InvalidOpcode occurs when the CPU attempts to execute an invalid or
	// undefined instruction opcode.
	InvalidOpcode = InterruptNumber(6)

	// DoubleFault occurs when an unhandled exception occurs or when an
	// exception occurs within a running exception handler.
	DoubleFault = InterruptNumber(8)

	// GPFException occurs when a general protection fault occurs.
	GPFException = InterruptNumber(13)

	// PageFaultException occurs when a page directory table (PDT) or one
	// of its entries is not present or when a privilege and/or RW
	// protection check fails.
	PageFaultException = InterruptNumber(14)
)

const (
	// gateEntryCount is the number of interrupt slots with an entry stub:
	// the 32 CPU exceptions plus the 16 remapped PIC lines.
	gateEntryCount = 48

	// kernelCodeSelector is the GDT selector of the 64-bit kernel code
	// segment installed by the rt0 code.
	kernelCodeSelector = 0x08

	// interruptGateFlags marks an entry as a present, ring-0, 64-bit
	// interrupt gate (the CPU clears IF when entering the handler).
	interruptGateFlags = 0x8e
)

// idtEntry is the hardware format of a 64-bit IDT gate descriptor.
type idtEntry struct {
	offsetLow  uint16
	selector   uint16
	ist        uint8
	flags      uint8
	offsetMid  uint16
	offsetHigh uint32
	_          uint32
}

var (
	idt      [256]idtEntry
	handlers [gateEntryCount]func(*Registers)

	gateEntryAddrFn = gateEntryAddr
	loadIDTFn       = loadIDT
	panicFn         = kfmt.Panic

	errNoGateEntry        = &kernel.Error{Module: "gate", Message: "no gate entry for interrupt number"}
	errUnhandledInterrupt = &kernel.Error{Module: "gate", Message: "unhandled interrupt"}
)

// Init loads the IDT into the CPU. All gate entries are initially marked as
// non-present and must be explicitly enabled via a call to HandleInterrupt.
func Init() {
	loadIDTFn(uintptr(unsafe.Pointer(&idt[0])), uint16(unsafe.Sizeof(idt)-1))
}

// HandleInterrupt ensures that the provided handler will be invoked when a
// particular interrupt number occurs. The value of the istOffset argument
// specifies the offset in the interrupt stack table (if 0 then IST is not
// used). Handlers run with interrupts disabled and must not block or
// allocate.
func HandleInterrupt(intNumber InterruptNumber, istOffset uint8, handler func(*Registers)) *kernel.Error {
	if int(intNumber) >= gateEntryCount {
		return errNoGateEntry
	}

	handlers[intNumber] = handler

	addr := gateEntryAddrFn(uint8(intNumber))
	idt[intNumber] = idtEntry{
		offsetLow:  uint16(addr),
		selector:   kernelCodeSelector,
		ist:        istOffset & 0x7,
		flags:      interruptGateFlags,
		offsetMid:  uint16(addr >> 16),
		offsetHigh: uint32(addr >> 32),
	}

	return nil
}

// dispatchInterrupt is invoked by the gate entry code to route an incoming
// interrupt to its registered handler.
//
//go:nosplit
func dispatchInterrupt(regs *Registers) {
	if num := regs.Info; num < gateEntryCount && handlers[num] != nil {
		handlers[num](regs)
		return
	}

	kfmt.Printf("\nUnhandled interrupt %d (error code: %d)\nRegisters:\n", regs.Info, regs.ErrorCode)
	regs.DumpTo(kfmt.GetOutputSink())
	panicFn(errUnhandledInterrupt)
}

// gateEntryAddr returns the address of the entry stub for interrupt num.
func gateEntryAddr(num uint8) uintptr

// loadIDT loads the IDTR register with the given table base and limit.
func loadIDT(base uintptr, limit uint16)

// Gate entry stubs and the common entry path implemented in gate_amd64.s.
// They are never called from Go; these declarations provide their symbols.
func gateCommon()
func gateEntry0()
func gateEntry1()
func gateEntry2()
func gateEntry3()
func gateEntry4()
func gateEntry5()
func gateEntry6()
func gateEntry7()
func gateEntry8()
func gateEntry9()
func gateEntry10()
func gateEntry11()
func gateEntry12()
func gateEntry13()
func gateEntry14()
func gateEntry15()
func gateEntry16()
func gateEntry17()
func gateEntry18()
func gateEntry19()
func gateEntry20()
func gateEntry21()
func gateEntry22()
func gateEntry23()
func gateEntry24()
func gateEntry25()
func gateEntry26()
func gateEntry27()
func gateEntry28()
func gateEntry29()
func gateEntry30()
func gateEntry31()
func gateEntry32()
func gateEntry33()
func gateEntry34()
func gateEntry35()
func gateEntry36()
func gateEntry37()
func gateEntry38()
func gateEntry39()
func gateEntry40()
func gateEntry41()
func gateEntry42()
func gateEntry43()
func gateEntry44()
func gateEntry45()
func gateEntry46()
func gateEntry47()

package cpu

var (
	interruptsEnabledFn = InterruptsEnabled
	disableInterruptsFn = DisableInterrupts
	enableInterruptsFn  = EnableInterrupts
)

// EnableInterrupts enables interrupt handling.
func EnableInterrupts()

// DisableInterrupts disables interrupt handling.
func DisableInterrupts()

// InterruptsEnabled returns true if the interrupt flag (RFLAGS.IF) is set.
func InterruptsEnabled() bool

// EnableInterruptsAndHalt enables interrupts and halts the CPU until the next
// interrupt arrives. The STI instruction delays interrupt delivery until the
// instruction that follows it has executed so an interrupt that is already
// pending is delivered after HLT and wakes the CPU back up.
func EnableInterruptsAndHalt()

// Halt disables interrupts and stops instruction execution. Calls to Halt
// never return.
func Halt()

// ReadCR2 returns the value stored in the CR2 register.
func ReadCR2() uint64

// FlushTLBEntry invalidates the TLB entry for the page containing virtAddr.
func FlushTLBEntry(virtAddr uintptr)

// PortWriteByte writes a uint8 value to the requested port.
func PortWriteByte(port uint16, val uint8)

// PortWriteDword writes a uint32 value to the requested port.
func PortWriteDword(port uint16, val uint32)

// PortReadByte reads a uint8 value from the requested port.
func PortReadByte(port uint16) uint8

// WithoutInterrupts invokes fn with interrupts disabled and then restores
// the interrupt flag to the state it had before the call. It is used by task
// code that shares a lock with an interrupt handler; holding such a lock
// with interrupts enabled would deadlock the single core as soon as the
// handler fires.
func WithoutInterrupts(fn func()) {
	wasEnabled := interruptsEnabledFn()
	if wasEnabled {
		disableInterruptsFn()
	}

	fn()

	if wasEnabled {
		enableInterruptsFn()
	}
}

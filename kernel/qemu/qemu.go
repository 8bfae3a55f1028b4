// Package qemu talks to the isa-debug-exit device that the self-test image
// is launched with (-device isa-debug-exit,iobase=0xf4,iosize=0x04).
package qemu

import "github.com/finnmattis/finn-os/kernel/cpu"

// ExitPort is the I/O port of the isa-debug-exit device.
const ExitPort = 0xf4

// ExitCode is written to ExitPort. QEMU exits with status (code << 1) | 1.
type ExitCode uint32

const (
	// Success makes QEMU exit with status 33.
	Success ExitCode = 0x10

	// Failed makes QEMU exit with status 35.
	Failed ExitCode = 0x11
)

var (
	portWriteDwordFn = cpu.PortWriteDword
	haltFn           = cpu.Halt
)

// Exit terminates the emulator with the given code. On real hardware the
// write is ignored and the CPU is halted instead.
func Exit(code ExitCode) {
	portWriteDwordFn(ExitPort, uint32(code))
	haltFn()
}

// Package serial implements a driver for 16550-compatible UARTs. The kernel
// uses the first port as its log output and QEMU forwards it to the host.
package serial

import (
	"io"

	"github.com/finnmattis/finn-os/device"
	"github.com/finnmattis/finn-os/kernel"
	"github.com/finnmattis/finn-os/kernel/cpu"
	"github.com/finnmattis/finn-os/kernel/kfmt"
)

// COM1 is the I/O base of the first serial port.
const COM1 = uint16(0x3f8)

// Register offsets from the port base.
const (
	regData        = 0
	regIntEnable   = 1
	regFIFOControl = 2
	regLineControl = 3
	regModemCtrl   = 4
	regLineStatus  = 5
)

const (
	lineControlDLAB = 0x80
	lineControl8N1  = 0x03

	// divisor 3 selects 38400 baud
	baudDivisor = 3

	fifoEnableClear14 = 0xc7

	modemNormal   = 0x0f
	modemLoopback = 0x1e

	lineStatusTxEmpty = 0x20

	loopbackPattern = 0xae

	// maxTxPolls bounds the wait for the transmit holding register.
	maxTxPolls = 1 << 16
)

var (
	portWriteByteFn = cpu.PortWriteByte
	portReadByteFn  = cpu.PortReadByte

	errLoopbackFailed = &kernel.Error{Module: "serial", Message: "loopback test failed"}
)

// Port is a driver for a single UART.
type Port struct {
	base uint16
}

// DriverName returns the name of this driver.
func (p *Port) DriverName() string {
	return "serial"
}

// DriverVersion returns the version of this driver.
func (p *Port) DriverVersion() (uint16, uint16, uint16) {
	return 0, 1, 0
}

// DriverInit programs the UART for 38400 8N1 and verifies that it echoes
// data in loopback mode.
func (p *Port) DriverInit(w io.Writer) *kernel.Error {
	portWriteByteFn(p.base+regIntEnable, 0)
	portWriteByteFn(p.base+regLineControl, lineControlDLAB)
	portWriteByteFn(p.base+regData, baudDivisor)
	portWriteByteFn(p.base+regIntEnable, 0)
	portWriteByteFn(p.base+regLineControl, lineControl8N1)
	portWriteByteFn(p.base+regFIFOControl, fifoEnableClear14)

	portWriteByteFn(p.base+regModemCtrl, modemLoopback)
	portWriteByteFn(p.base+regData, loopbackPattern)
	if portReadByteFn(p.base+regData) != loopbackPattern {
		return errLoopbackFailed
	}
	portWriteByteFn(p.base+regModemCtrl, modemNormal)

	kfmt.Fprintf(w, "port 0x%x, 38400 8N1\n", p.base)
	return nil
}

// Write implements io.Writer. Line feeds are sent as CR LF.
func (p *Port) Write(data []byte) (int, error) {
	for _, b := range data {
		if b == '\n' {
			p.writeByte('\r')
		}
		p.writeByte(b)
	}
	return len(data), nil
}

func (p *Port) writeByte(b uint8) {
	for i := 0; i < maxTxPolls; i++ {
		if portReadByteFn(p.base+regLineStatus)&lineStatusTxEmpty != 0 {
			break
		}
	}
	portWriteByteFn(p.base+regData, b)
}

func probeForCOM1() device.Driver {
	return &Port{base: COM1}
}

func init() {
	device.RegisterDriver(&device.DriverInfo{
		Order: device.DetectOrderEarly,
		Probe: probeForCOM1,
	})
}

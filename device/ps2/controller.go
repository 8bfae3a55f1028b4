// Package ps2 drives the i8042 PS/2 controller that the keyboard and mouse
// are attached to. The byte-level decoders live in the keyboard and mouse
// subpackages.
package ps2

import (
	"io"

	"github.com/finnmattis/finn-os/device"
	"github.com/finnmattis/finn-os/kernel"
	"github.com/finnmattis/finn-os/kernel/cpu"
	"github.com/finnmattis/finn-os/kernel/kfmt"
)

const (
	// DataPort is used to exchange bytes with the controller and devices.
	DataPort = uint16(0x60)

	// CommandPort accepts controller commands on write and returns the
	// status register on read.
	CommandPort = uint16(0x64)
)

const (
	cmdReadConfig  = 0x20
	cmdWriteConfig = 0x60
	cmdWriteAux    = 0xd4

	configAuxIRQ      = 0x02
	configAuxClockOff = 0x20

	statusOutputFull = 0x01
	statusInputFull  = 0x02

	mouseSetDefaults     = 0xf6
	mouseEnableStreaming = 0xf4
	mouseAck             = 0xfa

	maxPolls = 1 << 16
)

var (
	portWriteByteFn = cpu.PortWriteByte
	portReadByteFn  = cpu.PortReadByte

	errTimeout = &kernel.Error{Module: "ps2", Message: "controller timeout"}
	errNoAck   = &kernel.Error{Module: "ps2", Message: "mouse did not acknowledge the command"}
)

// Controller is the driver for the PS/2 controller. Its init routine turns
// on the auxiliary (mouse) port and puts the mouse into streaming mode.
type Controller struct{}

// DriverName returns the name of this driver.
func (*Controller) DriverName() string {
	return "ps2"
}

// DriverVersion returns the version of this driver.
func (*Controller) DriverVersion() (uint16, uint16, uint16) {
	return 0, 1, 0
}

// DriverInit enables IRQ12 and the aux port clock in the controller
// configuration byte and then enables mouse packet streaming.
func (c *Controller) DriverInit(w io.Writer) *kernel.Error {
	if err := c.command(cmdReadConfig); err != nil {
		return err
	}

	config, err := c.read()
	if err != nil {
		return err
	}

	config = (config | configAuxIRQ) &^ configAuxClockOff
	if err = c.command(cmdWriteConfig); err != nil {
		return err
	}
	if err = c.write(config); err != nil {
		return err
	}

	for _, cmd := range []uint8{mouseSetDefaults, mouseEnableStreaming} {
		if err = c.mouseCommand(cmd); err != nil {
			return err
		}
	}

	kfmt.Fprintf(w, "config 0x%2x, mouse streaming\n", config)
	return nil
}

func (c *Controller) mouseCommand(cmd uint8) *kernel.Error {
	if err := c.command(cmdWriteAux); err != nil {
		return err
	}
	if err := c.write(cmd); err != nil {
		return err
	}

	ack, err := c.read()
	if err != nil {
		return err
	}
	if ack != mouseAck {
		return errNoAck
	}
	return nil
}

func (c *Controller) command(cmd uint8) *kernel.Error {
	if err := waitStatus(statusInputFull, 0); err != nil {
		return err
	}
	portWriteByteFn(CommandPort, cmd)
	return nil
}

func (c *Controller) write(b uint8) *kernel.Error {
	if err := waitStatus(statusInputFull, 0); err != nil {
		return err
	}
	portWriteByteFn(DataPort, b)
	return nil
}

func (c *Controller) read() (uint8, *kernel.Error) {
	if err := waitStatus(statusOutputFull, statusOutputFull); err != nil {
		return 0, err
	}
	return portReadByteFn(DataPort), nil
}

// waitStatus polls the status register until status&mask == want.
func waitStatus(mask, want uint8) *kernel.Error {
	for i := 0; i < maxPolls; i++ {
		if portReadByteFn(CommandPort)&mask == want {
			return nil
		}
	}
	return errTimeout
}

func probeForController() device.Driver {
	return &Controller{}
}

func init() {
	device.RegisterDriver(&device.DriverInfo{
		Order: device.DetectOrderNormal,
		Probe: probeForController,
	})
}

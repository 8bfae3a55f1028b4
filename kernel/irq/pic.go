// Package irq programs the chained 8259 interrupt controllers and installs
// the handlers for hardware interrupts and CPU exceptions.
package irq

import "github.com/finnmattis/finn-os/kernel/cpu"

const (
	cmdInit           = 0x11
	cmdEndOfInterrupt = 0x20
	mode8086          = 0x01

	// ioWaitPort is an unused port; writing to it gives the controllers
	// time to process the previous command.
	ioWaitPort = 0x80
)

var (
	portWriteByteFn = cpu.PortWriteByte
	portReadByteFn  = cpu.PortReadByte
)

// pic is a single 8259 controller.
type pic struct {
	offset  uint8
	command uint16
	data    uint16
}

func (p *pic) handlesInterrupt(id uint8) bool {
	return p.offset <= id && id < p.offset+8
}

func (p *pic) endOfInterrupt() {
	portWriteByteFn(p.command, cmdEndOfInterrupt)
}

func (p *pic) readMask() uint8 {
	return portReadByteFn(p.data)
}

func (p *pic) writeMask(mask uint8) {
	portWriteByteFn(p.data, mask)
}

// ChainedPICs is the master/slave 8259 pair found on PC-compatible machines.
// The slave is cascaded through line 2 of the master.
type ChainedPICs struct {
	pics [2]pic
}

// NewChainedPICs returns a controller pair that, once initialized, maps
// IRQs 0-7 to interrupts offset1..offset1+7 and IRQs 8-15 to
// offset2..offset2+7.
func NewChainedPICs(offset1, offset2 uint8) ChainedPICs {
	return ChainedPICs{
		pics: [2]pic{
			{offset: offset1, command: 0x20, data: 0x21},
			{offset: offset2, command: 0xa0, data: 0xa1},
		},
	}
}

// Initialize remaps both controllers to their offsets. The interrupt masks
// in effect before the call are restored afterwards.
func (c *ChainedPICs) Initialize() {
	wait := func() { portWriteByteFn(ioWaitPort, 0) }

	saved := c.ReadMasks()

	portWriteByteFn(c.pics[0].command, cmdInit)
	wait()
	portWriteByteFn(c.pics[1].command, cmdInit)
	wait()

	portWriteByteFn(c.pics[0].data, c.pics[0].offset)
	wait()
	portWriteByteFn(c.pics[1].data, c.pics[1].offset)
	wait()

	// Tell the master that the slave sits on line 2 and the slave its
	// cascade identity.
	portWriteByteFn(c.pics[0].data, 4)
	wait()
	portWriteByteFn(c.pics[1].data, 2)
	wait()

	portWriteByteFn(c.pics[0].data, mode8086)
	wait()
	portWriteByteFn(c.pics[1].data, mode8086)
	wait()

	c.WriteMasks(saved[0], saved[1])
}

// ReadMasks returns the interrupt masks of the master and slave.
func (c *ChainedPICs) ReadMasks() [2]uint8 {
	return [2]uint8{c.pics[0].readMask(), c.pics[1].readMask()}
}

// WriteMasks sets the interrupt masks of the master and slave.
func (c *ChainedPICs) WriteMasks(mask1, mask2 uint8) {
	c.pics[0].writeMask(mask1)
	c.pics[1].writeMask(mask2)
}

// MaskLine stops the controller from raising interrupts for IRQ line
// (0-15).
func (c *ChainedPICs) MaskLine(line uint8) {
	p, bit := c.lineBit(line)
	p.writeMask(p.readMask() | bit)
}

// UnmaskLine allows the controller to raise interrupts for IRQ line (0-15).
func (c *ChainedPICs) UnmaskLine(line uint8) {
	p, bit := c.lineBit(line)
	p.writeMask(p.readMask() &^ bit)
}

func (c *ChainedPICs) lineBit(line uint8) (*pic, uint8) {
	if line < 8 {
		return &c.pics[0], 1 << line
	}
	return &c.pics[1], 1 << ((line - 8) & 7)
}

// HandlesInterrupt returns true if interrupt id is raised by one of the two
// controllers.
func (c *ChainedPICs) HandlesInterrupt(id uint8) bool {
	return c.pics[0].handlesInterrupt(id) || c.pics[1].handlesInterrupt(id)
}

// NotifyEndOfInterrupt acknowledges interrupt id. Interrupts routed through
// the slave must be acknowledged on both controllers. Ids that belong to
// neither controller are ignored.
func (c *ChainedPICs) NotifyEndOfInterrupt(id uint8) {
	if !c.HandlesInterrupt(id) {
		return
	}

	if c.pics[1].handlesInterrupt(id) {
		c.pics[1].endOfInterrupt()
	}
	c.pics[0].endOfInterrupt()
}

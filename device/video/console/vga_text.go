package console

import (
	"io"
	"unsafe"

	"github.com/finnmattis/finn-os/device"
	"github.com/finnmattis/finn-os/kernel"
	"github.com/finnmattis/finn-os/kernel/kfmt"
	"github.com/finnmattis/finn-os/kernel/mm"
)

const (
	// TextBufferAddr is the physical address of the mode 3 text buffer.
	TextBufferAddr = uintptr(0xb8000)

	textColumns = 80
	textRows    = 25
)

var (
	mapFn = mm.Map

	// fbAddrFn returns the address the framebuffer can be accessed at once
	// it has been mapped. Tests replace it to point at a slice.
	fbAddrFn = func(physAddr uintptr) uintptr { return physAddr }
)

// VgaText is an 80x25 16-color text console. Each cell of the framebuffer is
// a 16-bit word: the character in the low byte and the colors in the high
// byte, background in the upper nibble.
type VgaText struct {
	width  uint32
	height uint32

	fbPhysAddr uintptr
	fb         []uint16

	defaultFg uint8
	defaultBg uint8
}

// NewVgaText creates a text console whose framebuffer lives at fbPhysAddr.
// It is unusable until DriverInit maps the framebuffer.
func NewVgaText(columns, rows uint32, fbPhysAddr uintptr) *VgaText {
	return &VgaText{
		width:      columns,
		height:     rows,
		fbPhysAddr: fbPhysAddr,
		// light gray on black
		defaultFg: 7,
		defaultBg: 0,
	}
}

// Dimensions returns the console width and height in cells.
func (cons *VgaText) Dimensions() (uint32, uint32) {
	return cons.width, cons.height
}

// DefaultColors returns the colors used for cleared cells.
func (cons *VgaText) DefaultColors() (uint8, uint8) {
	return cons.defaultFg, cons.defaultBg
}

// Fill blanks the given rectangle.
func (cons *VgaText) Fill(x, y, width, height uint32, fg, bg uint8) {
	if x >= cons.width || y >= cons.height {
		return
	}
	if x+width > cons.width {
		width = cons.width - x
	}
	if y+height > cons.height {
		height = cons.height - y
	}

	blank := cell(' ', fg, bg)
	for row := y; row < y+height; row++ {
		offset := row*cons.width + x
		for col := uint32(0); col < width; col++ {
			cons.fb[offset+col] = blank
		}
	}
}

// Scroll moves the console contents up by lines.
func (cons *VgaText) Scroll(lines uint32) {
	if lines == 0 || lines > cons.height {
		return
	}
	copy(cons.fb, cons.fb[lines*cons.width:])
}

// Write stores ch at (x, y). Colors outside the 16-color palette are
// replaced with the defaults.
func (cons *VgaText) Write(ch byte, fg, bg uint8, x, y uint32) {
	if x >= cons.width || y >= cons.height {
		return
	}
	if fg > 0xf {
		fg = cons.defaultFg
	}
	if bg > 0xf {
		bg = cons.defaultBg
	}

	cons.fb[y*cons.width+x] = cell(ch, fg, bg)
}

// Read returns the contents of the cell at (x, y). Reads outside the console
// return a blank cell in the default colors.
func (cons *VgaText) Read(x, y uint32) (byte, uint8, uint8) {
	if x >= cons.width || y >= cons.height {
		return ' ', cons.defaultFg, cons.defaultBg
	}

	v := cons.fb[y*cons.width+x]
	return byte(v), uint8(v>>8) & 0xf, uint8(v >> 12)
}

func cell(ch byte, fg, bg uint8) uint16 {
	return uint16(bg&0xf)<<12 | uint16(fg&0xf)<<8 | uint16(ch)
}

// DriverName returns the name of this driver.
func (cons *VgaText) DriverName() string {
	return "vga_text"
}

// DriverVersion returns the version of this driver.
func (cons *VgaText) DriverVersion() (uint16, uint16, uint16) {
	return 0, 1, 0
}

// DriverInit identity-maps the framebuffer and clears the screen.
func (cons *VgaText) DriverInit(w io.Writer) *kernel.Error {
	size := uintptr(cons.width*cons.height) * 2
	first := mm.FrameFromAddress(cons.fbPhysAddr)
	last := mm.FrameFromAddress(cons.fbPhysAddr + size - 1)

	for frame := first; frame <= last; frame++ {
		if err := mapFn(mm.Page(frame), frame, mm.FlagPresent|mm.FlagRW|mm.FlagNoExecute); err != nil {
			return err
		}
	}

	addr := fbAddrFn(cons.fbPhysAddr)
	cons.fb = unsafe.Slice((*uint16)(unsafe.Pointer(addr)), cons.width*cons.height)
	cons.Fill(0, 0, cons.width, cons.height, cons.defaultFg, cons.defaultBg)

	kfmt.Fprintf(w, "%dx%d cells, framebuffer at 0x%x\n", cons.width, cons.height, addr)
	return nil
}

func probeForVgaText() device.Driver {
	return NewVgaText(textColumns, textRows, TextBufferAddr)
}

func init() {
	device.RegisterDriver(&device.DriverInfo{
		Order: device.DetectOrderNormal,
		Probe: probeForVgaText,
	})
}

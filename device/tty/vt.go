// Package tty implements a terminal on top of a console device. Once the HAL
// links it to a console, the terminal receives kernel output and echoes
// keypresses.
package tty

import (
	"io"

	"github.com/finnmattis/finn-os/device"
	"github.com/finnmattis/finn-os/device/video/console"
	"github.com/finnmattis/finn-os/kernel"
)

// DefaultTabWidth is the distance between tab stops.
const DefaultTabWidth = 8

// VT is a terminal that writes straight to the attached console and scrolls
// when output reaches the last row. Besides printable ASCII it interprets
// '\r', '\n', '\b' (erasing the previous cell) and '\t'. Other control bytes
// are dropped.
type VT struct {
	cons console.Device

	width, height uint32
	fg, bg        uint8

	cursorX, cursorY uint32
	tabWidth         uint32
}

// NewVT creates a terminal that is not yet attached to a console.
func NewVT(tabWidth uint32) *VT {
	if tabWidth == 0 {
		tabWidth = DefaultTabWidth
	}
	return &VT{tabWidth: tabWidth}
}

// AttachTo connects the terminal to cons, clears it and homes the cursor.
func (t *VT) AttachTo(cons console.Device) {
	if cons == nil {
		return
	}

	t.cons = cons
	t.width, t.height = cons.Dimensions()
	t.fg, t.bg = cons.DefaultColors()
	t.cursorX, t.cursorY = 0, 0
	cons.Fill(0, 0, t.width, t.height, t.fg, t.bg)
}

// CursorPosition returns the cell the next character is written to.
func (t *VT) CursorPosition() (uint32, uint32) {
	return t.cursorX, t.cursorY
}

// Write implements io.Writer.
func (t *VT) Write(data []byte) (int, error) {
	for count, b := range data {
		if err := t.WriteByte(b); err != nil {
			return count, err
		}
	}
	return len(data), nil
}

// WriteByte implements io.ByteWriter.
func (t *VT) WriteByte(b byte) error {
	if t.cons == nil {
		return io.ErrClosedPipe
	}

	switch {
	case b == '\r':
		t.cursorX = 0
	case b == '\n':
		t.lineFeed()
	case b == '\b':
		if t.cursorX > 0 {
			t.cursorX--
			t.cons.Write(' ', t.fg, t.bg, t.cursorX, t.cursorY)
		}
	case b == '\t':
		next := (t.cursorX/t.tabWidth + 1) * t.tabWidth
		if next > t.width {
			next = t.width
		}
		for n := next - t.cursorX; n > 0; n-- {
			t.put(' ')
		}
	case b >= 0x20 && b < 0x7f:
		t.put(b)
	}

	return nil
}

func (t *VT) put(b byte) {
	t.cons.Write(b, t.fg, t.bg, t.cursorX, t.cursorY)
	if t.cursorX++; t.cursorX == t.width {
		t.lineFeed()
	}
}

// lineFeed moves the cursor to the start of the next row, scrolling the
// console if the cursor is on the last row.
func (t *VT) lineFeed() {
	t.cursorX = 0
	if t.cursorY+1 < t.height {
		t.cursorY++
		return
	}

	t.cons.Scroll(1)
	t.cons.Fill(0, t.height-1, t.width, 1, t.fg, t.bg)
}

// DriverName returns the name of this driver.
func (t *VT) DriverName() string {
	return "vt"
}

// DriverVersion returns the version of this driver.
func (t *VT) DriverVersion() (uint16, uint16, uint16) {
	return 0, 1, 0
}

// DriverInit is a no-op; the terminal becomes usable once the HAL attaches
// it to a console.
func (t *VT) DriverInit(_ io.Writer) *kernel.Error { return nil }

func probeForVT() device.Driver {
	return NewVT(DefaultTabWidth)
}

func init() {
	device.RegisterDriver(&device.DriverInfo{
		Order: device.DetectOrderLast,
		Probe: probeForVT,
	})
}

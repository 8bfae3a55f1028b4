// Package mouse decodes the 3-byte packets sent by a PS/2 mouse.
package mouse

import (
	"github.com/finnmattis/finn-os/kernel/cpu"
	"github.com/finnmattis/finn-os/kernel/sync"
)

// Flags is the first byte of a mouse packet.
type Flags uint8

const (
	// LeftButton is set while the left button is pressed.
	LeftButton Flags = 1 << iota

	// RightButton is set while the right button is pressed.
	RightButton

	// MiddleButton is set while the middle button is pressed.
	MiddleButton

	// AlwaysOne is set in every valid first packet byte. It is used to
	// resynchronize with the packet stream.
	AlwaysOne

	// XSign is set when the X delta is negative.
	XSign

	// YSign is set when the Y delta is negative.
	YSign

	// XOverflow is set when the X delta did not fit in 9 bits.
	XOverflow

	// YOverflow is set when the Y delta did not fit in 9 bits.
	YOverflow
)

// State is a decoded mouse packet.
type State struct {
	Flags Flags
	X     int16
	Y     int16
}

// LeftButtonDown returns true if the left button is pressed.
func (s State) LeftButtonDown() bool { return s.Flags&LeftButton != 0 }

// RightButtonDown returns true if the right button is pressed.
func (s State) RightButtonDown() bool { return s.Flags&RightButton != 0 }

// MiddleButtonDown returns true if the middle button is pressed.
func (s State) MiddleButtonDown() bool { return s.Flags&MiddleButton != 0 }

// Mouse assembles packets from the byte stream. The zero value is ready to
// use.
type Mouse struct {
	packetIndex uint8
	current     State
	completed   State
}

// ProcessPacketByte feeds the next byte received from the mouse.
func (m *Mouse) ProcessPacketByte(b uint8) {
	switch m.packetIndex {
	case 0:
		flags := Flags(b)
		if flags&AlwaysOne == 0 {
			// Out of sync; wait for a byte that can start a packet.
			return
		}
		m.current.Flags = flags
	case 1:
		if m.current.Flags&XOverflow == 0 {
			m.current.X = delta(b, m.current.Flags&XSign != 0)
		}
	case 2:
		if m.current.Flags&YOverflow == 0 {
			m.current.Y = delta(b, m.current.Flags&YSign != 0)
		}
		m.completed = m.current
	}

	m.packetIndex = (m.packetIndex + 1) % 3
}

// TakeDelta returns the movement reported by the last complete packet and
// resets it to zero. Button state is kept. Packets completed between two
// calls overwrite each other.
func (m *Mouse) TakeDelta() (int16, int16) {
	x, y := m.completed.X, m.completed.Y
	m.completed.X, m.completed.Y = 0, 0
	return x, y
}

// Completed returns the last complete packet without consuming it.
func (m *Mouse) Completed() State {
	return m.completed
}

func delta(b uint8, negative bool) int16 {
	if negative {
		return int16(uint16(b) | 0xff00)
	}
	return int16(b)
}

var (
	lock   sync.Spinlock
	device Mouse

	withoutInterruptsFn = cpu.WithoutInterrupts
)

// SetInterruptMasker replaces the function that runs task-side accessors
// with interrupts masked. Passing nil restores cpu.WithoutInterrupts. The
// host simulator, which has no interrupt flag, installs a mutex instead.
func SetInterruptMasker(fn func(func())) {
	if fn == nil {
		fn = cpu.WithoutInterrupts
	}
	withoutInterruptsFn = fn
}

// HandleByte feeds a byte read by the mouse interrupt handler to the
// system mouse.
func HandleByte(b uint8) {
	lock.Acquire()
	device.ProcessPacketByte(b)
	lock.Release()
}

// TakeDelta consumes the movement of the system mouse. It is called from
// task context and masks interrupts while the lock is held.
func TakeDelta() (x, y int16) {
	withoutInterruptsFn(func() {
		lock.Acquire()
		x, y = device.TakeDelta()
		lock.Release()
	})
	return x, y
}

// Buttons returns the button state of the last complete packet.
func Buttons() (left, right, middle bool) {
	withoutInterruptsFn(func() {
		lock.Acquire()
		s := device.Completed()
		lock.Release()
		left, right, middle = s.LeftButtonDown(), s.RightButtonDown(), s.MiddleButtonDown()
	})
	return left, right, middle
}

package main

import (
	"github.com/finnmattis/finn-os/device/ps2/keyboard"
	"github.com/finnmattis/finn-os/device/ps2/mouse"
)

const (
	scancodeShiftLeft   = 0x2a
	scancodeControlLeft = 0x1d
	scancodeBackspace   = 0x0e
	scancodeEnter       = 0x1c
	breakBit            = 0x80
)

// keystroke is the make code of a key plus the modifier held with it.
type keystroke struct {
	scancode uint8
	modifier uint8
}

// scancodes returns the make and break codes that type the keystroke.
func (k keystroke) scancodes() []uint8 {
	if k.modifier == 0 {
		return []uint8{k.scancode, k.scancode | breakBit}
	}
	return []uint8{k.modifier, k.scancode, k.scancode | breakBit, k.modifier | breakBit}
}

// buildKeymap inverts the kernel's keyboard decoder: every scan code set 1
// make code is decoded alone, with shift held and with ctrl held, and the
// first keystroke producing a character wins.
func buildKeymap() map[rune]keystroke {
	keymap := make(map[rune]keystroke)

	for _, modifier := range []uint8{0, scancodeShiftLeft, scancodeControlLeft} {
		for scancode := uint8(1); scancode < breakBit; scancode++ {
			var kb keyboard.Keyboard
			if modifier != 0 {
				ev, _ := keyboard.DecodeScancode(modifier)
				kb.Process(ev)
			}

			ev, err := keyboard.DecodeScancode(scancode)
			if err != nil {
				continue
			}

			key, ok := kb.Process(ev)
			if !ok || key.Kind != keyboard.KindUnicode {
				continue
			}
			if _, exists := keymap[key.Char]; !exists {
				keymap[key.Char] = keystroke{scancode: scancode, modifier: modifier}
			}
		}
	}

	// Terminals send DEL for backspace and CR for enter.
	keymap[0x7f] = keystroke{scancode: scancodeBackspace}
	keymap['\r'] = keystroke{scancode: scancodeEnter}
	return keymap
}

// mousePacket encodes a movement as a 3-byte PS/2 packet. Deltas are
// clamped to the 9-bit range the packet can carry.
func mousePacket(dx, dy int, buttons mouse.Flags) []uint8 {
	flags := mouse.AlwaysOne | buttons&(mouse.LeftButton|mouse.RightButton|mouse.MiddleButton)
	dx, dy = clampDelta(dx), clampDelta(dy)
	if dx < 0 {
		flags |= mouse.XSign
	}
	if dy < 0 {
		flags |= mouse.YSign
	}
	return []uint8{uint8(flags), uint8(dx), uint8(dy)}
}

func clampDelta(d int) int {
	switch {
	case d < -256:
		return -256
	case d > 255:
		return 255
	default:
		return d
	}
}

// terminalEvent is either bytes for the keyboard, a packet for the mouse or
// a request to quit.
type terminalEvent struct {
	scancodes []uint8
	packet    []uint8
	quit      bool
}

// terminalDecoder turns runes read from a raw terminal into device input.
// Arrow key escape sequences move the mouse; Ctrl-C and Ctrl-D quit.
type terminalDecoder struct {
	keymap map[rune]keystroke
	step   int

	// escape counts the bytes of a pending "ESC [" sequence; csiParams is
	// set once that sequence carries bytes before its final byte.
	escape    int
	csiParams bool
}

func newTerminalDecoder(step int) *terminalDecoder {
	return &terminalDecoder{keymap: buildKeymap(), step: step}
}

// Feed consumes a single rune and returns the events it completes.
func (d *terminalDecoder) Feed(r rune) []terminalEvent {
	switch d.escape {
	case 1:
		if r == '[' {
			d.escape = 2
			return nil
		}
		d.escape = 0
		return append([]terminalEvent{d.key(0x1b)}, d.Feed(r)...)
	case 2:
		// Parameter and intermediate bytes run until a final byte in
		// 0x40..0x7e ends the sequence.
		if r < 0x40 || r > 0x7e {
			d.csiParams = true
			return nil
		}
		plain := !d.csiParams
		d.escape, d.csiParams = 0, false
		if ev, ok := d.arrow(r); ok && plain {
			return []terminalEvent{ev}
		}
		return nil
	}

	switch r {
	case 0x1b:
		d.escape = 1
		return nil
	case 0x03, 0x04:
		return []terminalEvent{{quit: true}}
	}

	if ev := d.key(r); ev.scancodes != nil {
		return []terminalEvent{ev}
	}
	return nil
}

// Pending reports whether the decoder is holding back an escape sequence.
func (d *terminalDecoder) Pending() bool {
	return d.escape != 0
}

// Flush emits a pending lone escape key and drops an unfinished CSI
// sequence.
func (d *terminalDecoder) Flush() []terminalEvent {
	lone := d.escape == 1
	d.escape, d.csiParams = 0, false
	if !lone {
		return nil
	}
	return []terminalEvent{d.key(0x1b)}
}

func (d *terminalDecoder) key(r rune) terminalEvent {
	stroke, ok := d.keymap[r]
	if !ok {
		return terminalEvent{}
	}
	return terminalEvent{scancodes: stroke.scancodes()}
}

func (d *terminalDecoder) arrow(r rune) (terminalEvent, bool) {
	var dx, dy int
	switch r {
	case 'A':
		dy = d.step
	case 'B':
		dy = -d.step
	case 'C':
		dx = d.step
	case 'D':
		dx = -d.step
	default:
		return terminalEvent{}, false
	}
	return terminalEvent{packet: mousePacket(dx, dy, 0)}, true
}

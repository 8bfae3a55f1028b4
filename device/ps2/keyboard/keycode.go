package keyboard

import "github.com/finnmattis/finn-os/kernel"

// KeyCode identifies a physical key on a US 104-key keyboard.
type KeyCode uint8

// The supported key codes. The zero value is not a valid key.
const (
	keyNone KeyCode = iota
	AltLeft
	AltRight
	ArrowDown
	ArrowLeft
	ArrowRight
	ArrowUp
	BackSlash
	Backspace
	BackTick
	BracketSquareLeft
	BracketSquareRight
	Break
	CapsLock
	Comma
	ControlLeft
	ControlRight
	Delete
	End
	Enter
	Escape
	Equals
	F1
	F2
	F3
	F4
	F5
	F6
	F7
	F8
	F9
	F10
	F11
	F12
	Fullstop
	Home
	Insert
	Key1
	Key2
	Key3
	Key4
	Key5
	Key6
	Key7
	Key8
	Key9
	Key0
	Menus
	Minus
	Numpad0
	Numpad1
	Numpad2
	Numpad3
	Numpad4
	Numpad5
	Numpad6
	Numpad7
	Numpad8
	Numpad9
	NumpadEnter
	NumpadLock
	NumpadSlash
	NumpadStar
	NumpadMinus
	NumpadPeriod
	NumpadPlus
	PageDown
	PageUp
	PauseBreak
	PrintScreen
	ScrollLock
	SemiColon
	ShiftLeft
	ShiftRight
	Slash
	Spacebar
	SysReq
	Tab
	Quote
	WindowsLeft
	WindowsRight
	A
	B
	C
	D
	E
	F
	G
	H
	I
	J
	K
	L
	M
	N
	O
	P
	Q
	R
	S
	T
	U
	V
	W
	X
	Y
	Z

	keyCodeCount
)

var keyCodeNames = [keyCodeCount]string{
	"None", "AltLeft", "AltRight", "ArrowDown", "ArrowLeft", "ArrowRight",
	"ArrowUp", "BackSlash", "Backspace", "BackTick", "BracketSquareLeft",
	"BracketSquareRight", "Break", "CapsLock", "Comma", "ControlLeft",
	"ControlRight", "Delete", "End", "Enter", "Escape", "Equals", "F1", "F2",
	"F3", "F4", "F5", "F6", "F7", "F8", "F9", "F10", "F11", "F12", "Fullstop",
	"Home", "Insert", "Key1", "Key2", "Key3", "Key4", "Key5", "Key6", "Key7",
	"Key8", "Key9", "Key0", "Menus", "Minus", "Numpad0", "Numpad1", "Numpad2",
	"Numpad3", "Numpad4", "Numpad5", "Numpad6", "Numpad7", "Numpad8",
	"Numpad9", "NumpadEnter", "NumpadLock", "NumpadSlash", "NumpadStar",
	"NumpadMinus", "NumpadPeriod", "NumpadPlus", "PageDown", "PageUp",
	"PauseBreak", "PrintScreen", "ScrollLock", "SemiColon", "ShiftLeft",
	"ShiftRight", "Slash", "Spacebar", "SysReq", "Tab", "Quote",
	"WindowsLeft", "WindowsRight", "A", "B", "C", "D", "E", "F", "G", "H",
	"I", "J", "K", "L", "M", "N", "O", "P", "Q", "R", "S", "T", "U", "V", "W",
	"X", "Y", "Z",
}

// String returns the name of the key.
func (k KeyCode) String() string {
	if k >= keyCodeCount {
		return "Unknown"
	}
	return keyCodeNames[k]
}

// scancodeSet1 maps make codes of scan code set 1 (IBM XT) to key codes.
// Slots without a key hold keyNone.
var scancodeSet1 = [0x59]KeyCode{
	0x01: Escape,
	0x02: Key1,
	0x03: Key2,
	0x04: Key3,
	0x05: Key4,
	0x06: Key5,
	0x07: Key6,
	0x08: Key7,
	0x09: Key8,
	0x0A: Key9,
	0x0B: Key0,
	0x0C: Minus,
	0x0D: Equals,
	0x0E: Backspace,
	0x0F: Tab,
	0x10: Q,
	0x11: W,
	0x12: E,
	0x13: R,
	0x14: T,
	0x15: Y,
	0x16: U,
	0x17: I,
	0x18: O,
	0x19: P,
	0x1A: BracketSquareLeft,
	0x1B: BracketSquareRight,
	0x1C: Enter,
	0x1D: ControlLeft,
	0x1E: A,
	0x1F: S,
	0x20: D,
	0x21: F,
	0x22: G,
	0x23: H,
	0x24: J,
	0x25: K,
	0x26: L,
	0x27: SemiColon,
	0x28: Quote,
	0x29: BackTick,
	0x2A: ShiftLeft,
	0x2B: BackSlash,
	0x2C: Z,
	0x2D: X,
	0x2E: C,
	0x2F: V,
	0x30: B,
	0x31: N,
	0x32: M,
	0x33: Comma,
	0x34: Fullstop,
	0x35: Slash,
	0x36: ShiftRight,
	0x37: NumpadStar,
	0x38: AltLeft,
	0x39: Spacebar,
	0x3A: CapsLock,
	0x3B: F1,
	0x3C: F2,
	0x3D: F3,
	0x3E: F4,
	0x3F: F5,
	0x40: F6,
	0x41: F7,
	0x42: F8,
	0x43: F9,
	0x44: F10,
	0x45: NumpadLock,
	0x46: ScrollLock,
	0x47: Numpad7,
	0x48: Numpad8,
	0x49: Numpad9,
	0x4A: NumpadMinus,
	0x4B: Numpad4,
	0x4C: Numpad5,
	0x4D: Numpad6,
	0x4E: NumpadPlus,
	0x4F: Numpad1,
	0x50: Numpad2,
	0x51: Numpad3,
	0x52: Numpad0,
	0x53: NumpadPeriod,
	0x57: F11,
	0x58: F12,
}

// KeyState describes whether a key was pressed or released.
type KeyState uint8

const (
	// Up is reported when a key is released.
	Up KeyState = iota

	// Down is reported when a key is pressed.
	Down
)

// KeyEvent is a single press or release of a key.
type KeyEvent struct {
	Code  KeyCode
	State KeyState
}

var errUnknownScancode = &kernel.Error{Module: "keyboard", Message: "unknown scancode"}

// DecodeScancode converts a scan code set 1 byte into a key event. Bytes
// with the high bit set are break (release) codes for the key whose make
// code is b-0x80.
func DecodeScancode(b uint8) (KeyEvent, *kernel.Error) {
	state := Down
	if b >= 0x80 {
		b -= 0x80
		state = Up
	}

	code, err := keyCode(b)
	if err != nil {
		return KeyEvent{}, err
	}
	return KeyEvent{Code: code, State: state}, nil
}

func keyCode(b uint8) (KeyCode, *kernel.Error) {
	switch {
	case int(b) < len(scancodeSet1) && scancodeSet1[b] != keyNone:
		return scancodeSet1[b], nil
	case b >= 0x81 && b <= 0xd8:
		// Release codes for the table above.
		return keyCode(b - 0x80)
	default:
		return keyNone, errUnknownScancode
	}
}

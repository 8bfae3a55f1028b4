package keyboard

// DecodedKind tags the variant held by a DecodedKey.
type DecodedKind uint8

const (
	// KindUnicode marks a key that produced a character.
	KindUnicode DecodedKind = iota

	// KindRawKey marks a key without a character representation.
	KindRawKey
)

// DecodedKey is either a character (Kind == KindUnicode, Char is set) or a
// raw key (Kind == KindRawKey, Key is set).
type DecodedKey struct {
	Kind DecodedKind
	Char rune
	Key  KeyCode
}

// Unicode returns a DecodedKey holding r.
func Unicode(r rune) DecodedKey {
	return DecodedKey{Kind: KindUnicode, Char: r}
}

// RawKey returns a DecodedKey holding k.
func RawKey(k KeyCode) DecodedKey {
	return DecodedKey{Kind: KindRawKey, Key: k}
}

// shiftedSymbols maps keys whose character depends only on the shift state
// to their {unshifted, shifted} characters.
var shiftedSymbols = [keyCodeCount][2]rune{
	BackTick:           {'`', '~'},
	Key1:               {'1', '!'},
	Key2:               {'2', '@'},
	Key3:               {'3', '#'},
	Key4:               {'4', '$'},
	Key5:               {'5', '%'},
	Key6:               {'6', '^'},
	Key7:               {'7', '&'},
	Key8:               {'8', '*'},
	Key9:               {'9', '('},
	Key0:               {'0', ')'},
	Minus:              {'-', '_'},
	Equals:             {'=', '+'},
	BracketSquareLeft:  {'[', '{'},
	BracketSquareRight: {']', '}'},
	BackSlash:          {'\\', '|'},
	SemiColon:          {';', ':'},
	Quote:              {'\'', '"'},
	Comma:              {',', '<'},
	Fullstop:           {'.', '>'},
	Slash:              {'/', '?'},
}

// numpadKeys maps numpad keys to the digit they produce with num-lock on
// and the navigation key they act as otherwise.
var numpadKeys = [keyCodeCount]struct {
	digit rune
	nav   KeyCode
}{
	Numpad0: {'0', Insert},
	Numpad1: {'1', End},
	Numpad2: {'2', ArrowDown},
	Numpad3: {'3', PageDown},
	Numpad4: {'4', ArrowLeft},
	Numpad6: {'6', ArrowRight},
	Numpad7: {'7', Home},
	Numpad8: {'8', ArrowUp},
	Numpad9: {'9', PageUp},
}

// Keyboard tracks modifier state and translates key events into characters
// using the US 104-key layout. The zero value is ready to use.
type Keyboard struct {
	lshift   bool
	rshift   bool
	lctrl    bool
	rctrl    bool
	numlock  bool
	capslock bool
	altGr    bool
}

func (kb *Keyboard) shifted() bool { return kb.lshift || kb.rshift }
func (kb *Keyboard) ctrl() bool    { return kb.lctrl || kb.rctrl }
func (kb *Keyboard) caps() bool    { return kb.shifted() != kb.capslock }

// Process applies ev to the keyboard state. It returns the decoded key and
// true for key presses of non-modifier keys; modifier events and releases
// return false.
func (kb *Keyboard) Process(ev KeyEvent) (DecodedKey, bool) {
	down := ev.State == Down

	switch ev.Code {
	case ShiftLeft:
		kb.lshift = down
	case ShiftRight:
		kb.rshift = down
	case ControlLeft:
		kb.lctrl = down
	case ControlRight:
		kb.rctrl = down
	case AltRight:
		kb.altGr = down
	case CapsLock:
		if down {
			kb.capslock = !kb.capslock
		}
	case NumpadLock:
		if down {
			kb.numlock = !kb.numlock
		}
	default:
		if !down {
			return DecodedKey{}, false
		}
		return kb.mapKeyCode(ev.Code), true
	}

	return DecodedKey{}, false
}

func (kb *Keyboard) mapKeyCode(code KeyCode) DecodedKey {
	switch {
	case code >= A && code <= Z:
		offset := rune(code - A)
		switch {
		case kb.ctrl():
			return Unicode(offset + 1)
		case kb.caps():
			return Unicode('A' + offset)
		default:
			return Unicode('a' + offset)
		}
	case shiftedSymbols[code][0] != 0:
		if kb.shifted() {
			return Unicode(shiftedSymbols[code][1])
		}
		return Unicode(shiftedSymbols[code][0])
	case numpadKeys[code].digit != 0:
		if kb.numlock {
			return Unicode(numpadKeys[code].digit)
		}
		return RawKey(numpadKeys[code].nav)
	}

	switch code {
	case Escape:
		return Unicode(0x1b)
	case Backspace:
		return Unicode(0x08)
	case Tab:
		return Unicode('\t')
	case Enter, NumpadEnter:
		return Unicode('\n')
	case Spacebar:
		return Unicode(' ')
	case Delete:
		return Unicode(0x7f)
	case NumpadSlash:
		return Unicode('/')
	case NumpadStar:
		return Unicode('*')
	case NumpadMinus:
		return Unicode('-')
	case NumpadPlus:
		return Unicode('+')
	case Numpad5:
		return Unicode('5')
	case NumpadPeriod:
		if kb.numlock {
			return Unicode('.')
		}
		return Unicode(0x7f)
	default:
		return RawKey(code)
	}
}

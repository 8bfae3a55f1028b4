package keyboard

import "testing"

func press(code KeyCode) KeyEvent   { return KeyEvent{Code: code, State: Down} }
func release(code KeyCode) KeyEvent { return KeyEvent{Code: code, State: Up} }

func TestKeyboardModifiers(t *testing.T) {
	var kb Keyboard

	for _, ev := range []KeyEvent{
		press(ShiftLeft), press(ShiftRight), press(ControlLeft), press(ControlRight),
		press(AltRight), press(CapsLock), press(NumpadLock),
		release(ShiftLeft), release(CapsLock), release(A),
	} {
		if key, ok := kb.Process(ev); ok {
			t.Fatalf("expected %v not to produce a key; got %v", ev, key)
		}
	}

	if !kb.rshift || kb.lshift || !kb.lctrl || !kb.rctrl || !kb.altGr || !kb.capslock || !kb.numlock {
		t.Fatalf("unexpected modifier state %+v", kb)
	}

	// Lock keys toggle on press only.
	kb.Process(press(CapsLock))
	kb.Process(release(CapsLock))
	if kb.capslock {
		t.Fatal("expected second CapsLock press to turn caps-lock off")
	}
}

func TestKeyboardLetterCase(t *testing.T) {
	specs := []struct {
		shift, caps bool
		exp         rune
	}{
		{false, false, 'a'},
		{true, false, 'A'},
		{false, true, 'A'},
		{true, true, 'a'},
	}

	for specIndex, spec := range specs {
		var kb Keyboard
		if spec.shift {
			kb.Process(press(ShiftLeft))
		}
		if spec.caps {
			kb.Process(press(CapsLock))
		}

		key, ok := kb.Process(press(A))
		if !ok || key != Unicode(spec.exp) {
			t.Errorf("[spec %d] expected %q; got %+v (ok: %t)", specIndex, spec.exp, key, ok)
		}
	}
}

func TestKeyboardControlCodes(t *testing.T) {
	var kb Keyboard
	kb.Process(press(ControlRight))
	kb.Process(press(ShiftLeft))

	specs := []struct {
		code KeyCode
		exp  rune
	}{
		{A, 0x01},
		{C, 0x03},
		{M, 0x0d},
		{Z, 0x1a},
		// Ctrl does not affect symbols.
		{Key1, '!'},
	}

	for specIndex, spec := range specs {
		if key, ok := kb.Process(press(spec.code)); !ok || key != Unicode(spec.exp) {
			t.Errorf("[spec %d] expected Ctrl+%s to produce 0x%x; got %+v", specIndex, spec.code, spec.exp, key)
		}
	}

	kb.Process(release(ControlRight))
	if key, _ := kb.Process(press(A)); key != Unicode('A') {
		t.Errorf("expected releasing Ctrl to restore letters; got %+v", key)
	}
}

func TestKeyboardSymbolsIgnoreCapsLock(t *testing.T) {
	var kb Keyboard
	kb.Process(press(CapsLock))

	specs := []struct {
		code         KeyCode
		plain, shift rune
	}{
		{Key2, '2', '@'},
		{BackTick, '`', '~'},
		{Quote, '\'', '"'},
		{BackSlash, '\\', '|'},
		{Slash, '/', '?'},
	}

	for specIndex, spec := range specs {
		if key, _ := kb.Process(press(spec.code)); key != Unicode(spec.plain) {
			t.Errorf("[spec %d] expected %q; got %+v", specIndex, spec.plain, key)
		}

		kb.Process(press(ShiftRight))
		if key, _ := kb.Process(press(spec.code)); key != Unicode(spec.shift) {
			t.Errorf("[spec %d] expected shifted %q; got %+v", specIndex, spec.shift, key)
		}
		kb.Process(release(ShiftRight))
	}
}

func TestKeyboardNumpad(t *testing.T) {
	var kb Keyboard

	specs := []struct {
		code    KeyCode
		numlock DecodedKey
		nav     DecodedKey
	}{
		{Numpad7, Unicode('7'), RawKey(Home)},
		{Numpad8, Unicode('8'), RawKey(ArrowUp)},
		{Numpad0, Unicode('0'), RawKey(Insert)},
		{Numpad5, Unicode('5'), Unicode('5')},
		{NumpadPeriod, Unicode('.'), Unicode(0x7f)},
		{NumpadPlus, Unicode('+'), Unicode('+')},
		{NumpadEnter, Unicode('\n'), Unicode('\n')},
	}

	for specIndex, spec := range specs {
		if key, _ := kb.Process(press(spec.code)); key != spec.nav {
			t.Errorf("[spec %d] expected %+v without num-lock; got %+v", specIndex, spec.nav, key)
		}
	}

	kb.Process(press(NumpadLock))
	for specIndex, spec := range specs {
		if key, _ := kb.Process(press(spec.code)); key != spec.numlock {
			t.Errorf("[spec %d] expected %+v with num-lock; got %+v", specIndex, spec.numlock, key)
		}
	}
}

func TestKeyboardSpecialKeys(t *testing.T) {
	var kb Keyboard

	specs := []struct {
		code KeyCode
		exp  DecodedKey
	}{
		{Escape, Unicode(0x1b)},
		{Backspace, Unicode(0x08)},
		{Tab, Unicode('\t')},
		{Enter, Unicode('\n')},
		{Spacebar, Unicode(' ')},
		{Delete, Unicode(0x7f)},
		{F1, RawKey(F1)},
		{AltLeft, RawKey(AltLeft)},
		{ScrollLock, RawKey(ScrollLock)},
	}

	for specIndex, spec := range specs {
		if key, ok := kb.Process(press(spec.code)); !ok || key != spec.exp {
			t.Errorf("[spec %d] expected %+v; got %+v (ok: %t)", specIndex, spec.exp, key, ok)
		}
	}
}

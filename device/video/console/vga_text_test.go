package console

import (
	"bytes"
	"testing"
	"unsafe"

	"github.com/finnmattis/finn-os/device"
	"github.com/finnmattis/finn-os/kernel"
	"github.com/finnmattis/finn-os/kernel/mm"
)

// newTestConsole returns a console backed by a slice instead of the VGA
// framebuffer.
func newTestConsole(w, h uint32) (*VgaText, []uint16) {
	fb := make([]uint16, w*h)
	cons := NewVgaText(w, h, TextBufferAddr)
	cons.fb = fb
	return cons, fb
}

func TestVgaTextDriverInit(t *testing.T) {
	defer func() {
		mapFn = mm.Map
		fbAddrFn = func(physAddr uintptr) uintptr { return physAddr }
	}()

	fb := make([]uint16, textColumns*textRows)
	for i := range fb {
		fb[i] = 0xdead
	}
	fbAddrFn = func(uintptr) uintptr { return uintptr(unsafe.Pointer(&fb[0])) }

	var mapped []mm.Frame
	mapFn = func(page mm.Page, frame mm.Frame, flags mm.PageFlag) *kernel.Error {
		if page != mm.Page(frame) {
			t.Errorf("expected an identity mapping; got page 0x%x for frame 0x%x", page, frame)
		}
		if flags&(mm.FlagPresent|mm.FlagRW) != mm.FlagPresent|mm.FlagRW {
			t.Errorf("expected a present, writable mapping; got flags 0x%x", flags)
		}
		mapped = append(mapped, frame)
		return nil
	}

	var buf bytes.Buffer
	var drv device.Driver = probeForVgaText()
	if err := drv.DriverInit(&buf); err != nil {
		t.Fatal(err)
	}

	if len(mapped) != 1 || mapped[0] != mm.Frame(0xb8) {
		t.Fatalf("expected frame 0xb8 to be mapped; got %v", mapped)
	}

	for i, v := range fb {
		if v != 0x0720 {
			t.Fatalf("expected cell %d to be cleared to 0x0720; got 0x%x", i, v)
		}
	}

	if !bytes.HasPrefix(buf.Bytes(), []byte("80x25 cells, framebuffer at 0x")) {
		t.Fatalf("unexpected init output %q", buf.String())
	}
}

func TestVgaTextDriverInitMapError(t *testing.T) {
	defer func() { mapFn = mm.Map }()

	expErr := &kernel.Error{Module: "test", Message: "out of frames"}
	mapFn = func(mm.Page, mm.Frame, mm.PageFlag) *kernel.Error { return expErr }

	cons := NewVgaText(textColumns, textRows, TextBufferAddr)
	if err := cons.DriverInit(&bytes.Buffer{}); err != expErr {
		t.Fatalf("expected %v; got %v", expErr, err)
	}
	if cons.fb != nil {
		t.Fatal("expected the framebuffer to stay unmapped")
	}
}

func TestVgaTextWriteRead(t *testing.T) {
	cons, fb := newTestConsole(80, 25)

	specs := []struct {
		ch        byte
		fg, bg    uint8
		x, y      uint32
		expCell   uint16
		expFg     uint8
		expBg     uint8
		expOffset int
	}{
		{'A', 0xf, 0x1, 0, 0, 0x1f41, 0xf, 0x1, 0},
		{'z', 0x2, 0x0, 79, 24, 0x027a, 0x2, 0x0, 80*25 - 1},
		// colors outside the palette fall back to the defaults
		{'!', 0x20, 0x30, 3, 1, 0x0721, 7, 0, 83},
	}

	for specIndex, spec := range specs {
		cons.Write(spec.ch, spec.fg, spec.bg, spec.x, spec.y)

		if got := fb[spec.expOffset]; got != spec.expCell {
			t.Errorf("[spec %d] expected cell 0x%x; got 0x%x", specIndex, spec.expCell, got)
		}

		if ch, fg, bg := cons.Read(spec.x, spec.y); ch != spec.ch || fg != spec.expFg || bg != spec.expBg {
			t.Errorf("[spec %d] expected (%q, %d, %d); got (%q, %d, %d)", specIndex, spec.ch, spec.expFg, spec.expBg, ch, fg, bg)
		}
	}

	// Out of range accesses are ignored.
	cons.Write('X', 1, 1, 80, 0)
	cons.Write('X', 1, 1, 0, 25)
	if ch, fg, bg := cons.Read(80, 0); ch != ' ' || fg != 7 || bg != 0 {
		t.Fatalf("expected an out of range read to return a blank cell; got (%q, %d, %d)", ch, fg, bg)
	}
}

func TestVgaTextFill(t *testing.T) {
	specs := []struct {
		x, y, w, h uint32

		// expected cleared region, inclusive
		expStartX, expStartY, expEndX, expEndY uint32
		expNone                                bool
	}{
		{0, 0, 500, 500, 0, 0, 79, 24, false},
		{9, 9, 11, 50, 9, 9, 19, 24, false},
		{69, 19, 20, 20, 69, 19, 79, 24, false},
		{79, 24, 1, 1, 79, 24, 79, 24, false},
		{80, 0, 1, 1, 0, 0, 0, 0, true},
	}

	cons, fb := newTestConsole(80, 25)
	const pattern = uint16(0xdead)

	for specIndex, spec := range specs {
		for i := range fb {
			fb[i] = pattern
		}

		cons.Fill(spec.x, spec.y, spec.w, spec.h, 2, 1)

	check:
		for y := uint32(0); y < 25; y++ {
			for x := uint32(0); x < 80; x++ {
				inside := !spec.expNone &&
					x >= spec.expStartX && x <= spec.expEndX &&
					y >= spec.expStartY && y <= spec.expEndY

				got := fb[y*80+x]
				switch {
				case inside && got != 0x1220:
					t.Errorf("[spec %d] expected (%d, %d) to be cleared; got 0x%x", specIndex, x, y, got)
					break check
				case !inside && got != pattern:
					t.Errorf("[spec %d] expected (%d, %d) to be untouched; got 0x%x", specIndex, x, y, got)
					break check
				}
			}
		}
	}
}

func TestVgaTextScroll(t *testing.T) {
	cons, fb := newTestConsole(4, 3)
	for i := range fb {
		fb[i] = uint16(i)
	}

	cons.Scroll(0)
	cons.Scroll(4)
	for i, v := range fb {
		if v != uint16(i) {
			t.Fatal("expected scrolling by 0 or more than the height to be a no-op")
		}
	}

	cons.Scroll(1)
	exp := []uint16{4, 5, 6, 7, 8, 9, 10, 11, 8, 9, 10, 11}
	for i := range exp {
		if fb[i] != exp[i] {
			t.Fatalf("expected framebuffer %v after scrolling; got %v", exp, fb)
		}
	}
}

func TestVgaTextDriverInterface(t *testing.T) {
	var dev device.Driver = NewVgaText(80, 25, TextBufferAddr)

	if dev.DriverName() == "" {
		t.Fatal("DriverName() returned an empty string")
	}

	if major, minor, patch := dev.DriverVersion(); major+minor+patch == 0 {
		t.Fatal("DriverVersion() returned an invalid version number")
	}

	cons := dev.(*VgaText)
	if w, h := cons.Dimensions(); w != 80 || h != 25 {
		t.Fatalf("expected 80x25; got %dx%d", w, h)
	}
	if fg, bg := cons.DefaultColors(); fg != 7 || bg != 0 {
		t.Fatalf("expected light gray on black; got fg:%d bg:%d", fg, bg)
	}
}

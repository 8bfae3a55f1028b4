package mouse

import (
	"bytes"
	"testing"

	"github.com/finnmattis/finn-os/kernel/async"
	"github.com/finnmattis/finn-os/kernel/cpu"
	"github.com/finnmattis/finn-os/kernel/kfmt"
	"github.com/finnmattis/finn-os/kernel/timer"
)

func TestPointerMove(t *testing.T) {
	specs := []struct {
		startX, startY int
		dx, dy         int16
		expX, expY     int
		expMoved       bool
	}{
		{40, 12, 0, 0, 40, 12, false},
		{40, 12, 5, 3, 45, 9, true},
		{40, 12, -100, 0, 0, 12, true},
		{40, 12, 100, -100, 79, 24, true},
		{79, 24, 1, -1, 79, 24, false},
	}

	for specIndex, spec := range specs {
		p := Pointer{X: spec.startX, Y: spec.startY, Width: 80, Height: 25}

		if moved := p.Move(spec.dx, spec.dy); moved != spec.expMoved {
			t.Errorf("[spec %d] expected moved to be %t; got %t", specIndex, spec.expMoved, moved)
		}
		if p.X != spec.expX || p.Y != spec.expY {
			t.Errorf("[spec %d] expected pointer at (%d, %d); got (%d, %d)", specIndex, spec.expX, spec.expY, p.X, p.Y)
		}
	}
}

func TestTrackPointer(t *testing.T) {
	defer func() {
		withoutInterruptsFn = cpu.WithoutInterrupts
		device = Mouse{}
		kfmt.SetOutputSink(nil)
	}()
	withoutInterruptsFn = func(fn func()) { fn() }

	var buf bytes.Buffer
	kfmt.SetOutputSink(&buf)

	woken := 0
	cx := async.NewContext(async.WakerFunc(func() { woken++ }))

	var moves [][2]int
	p := Pointer{X: 10, Y: 10, Width: 80, Height: 25, OnMove: func(x, y int) {
		moves = append(moves, [2]int{x, y})
	}}
	tracker := TrackPointer(&p)

	// Drain a tick left over by other tests.
	tracker.Poll(cx)
	buf.Reset()

	for _, b := range []uint8{uint8(AlwaysOne | RightButton), 3, 2} {
		HandleByte(b)
	}

	if state := tracker.Poll(cx); state != async.Pending {
		t.Fatal("expected the tracker to wait for a tick")
	}
	if p.X != 10 || p.Y != 10 {
		t.Fatal("expected the pointer not to move before a tick")
	}

	timer.Tick()
	if woken == 0 {
		t.Fatal("expected the tick to wake the tracker")
	}

	if state := tracker.Poll(cx); state != async.Pending {
		t.Fatal("expected the tracker to never complete")
	}
	if p.X != 13 || p.Y != 8 {
		t.Fatalf("expected pointer at (13, 8); got (%d, %d)", p.X, p.Y)
	}

	if exp := "[mouse] pointer (13, 8) buttons l=false m=false r=true\n"; buf.String() != exp {
		t.Fatalf("expected output %q; got %q", exp, buf.String())
	}

	if len(moves) != 1 || moves[0] != [2]int{13, 8} {
		t.Fatalf("expected OnMove to report (13, 8) once; got %v", moves)
	}

	// A tick without movement logs nothing.
	buf.Reset()
	timer.Tick()
	tracker.Poll(cx)
	if buf.Len() != 0 {
		t.Fatalf("expected no output; got %q", buf.String())
	}
	if len(moves) != 1 {
		t.Fatalf("expected no OnMove call without movement; got %v", moves)
	}
}

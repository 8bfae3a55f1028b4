package main

import (
	"bytes"
	"context"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/finnmattis/finn-os/device/ps2/keyboard"
	"github.com/finnmattis/finn-os/device/ps2/mouse"
	"github.com/finnmattis/finn-os/kernel/kfmt"
	"github.com/finnmattis/finn-os/kernel/task"
)

func TestParseScript(t *testing.T) {
	specs := []struct {
		src string
		exp []action
	}{
		{"", nil},
		{
			"type 'hello world' move 4 -2",
			[]action{
				{kind: actionType, text: "hello world"},
				{kind: actionMove, dx: 4, dy: -2},
			},
		},
		{
			"click right\nwait 3 # settle\nclick middle",
			[]action{
				{kind: actionClick, button: mouse.RightButton},
				{kind: actionWait, ticks: 3},
				{kind: actionClick, button: mouse.MiddleButton},
			},
		},
	}

	for specIndex, spec := range specs {
		got, err := parseScript(spec.src)
		if err != nil {
			t.Errorf("[spec %d] unexpected error: %v", specIndex, err)
			continue
		}
		if !reflect.DeepEqual(got, spec.exp) {
			t.Errorf("[spec %d] expected %+v; got %+v", specIndex, spec.exp, got)
		}
	}
}

func TestParseScriptErrors(t *testing.T) {
	specs := []struct {
		src    string
		expErr string
	}{
		{"jump 3", `unknown script command "jump"`},
		{"type", "type: expected 1 argument(s)"},
		{"move 1", "move: expected 2 argument(s)"},
		{"move 1 up", "move: "},
		{"click side", `click: unknown mouse button "side"`},
		{"wait -1", "wait: "},
		{"type 'unterminated", "EOF"},
	}

	for specIndex, spec := range specs {
		_, err := parseScript(spec.src)
		if err == nil {
			t.Errorf("[spec %d] expected an error for %q", specIndex, spec.src)
			continue
		}
		if !strings.Contains(err.Error(), spec.expErr) {
			t.Errorf("[spec %d] expected error containing %q; got %q", specIndex, spec.expErr, err.Error())
		}
	}
}

func TestPlayUnknownCharacter(t *testing.T) {
	m := newMachine()
	err := m.play(context.Background(), []action{{kind: actionType, text: "é"}}, buildKeymap(), time.Millisecond)
	if err == nil {
		t.Fatal("expected an error for a character no key produces")
	}
}

func TestWaitTicksCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := waitTicks(ctx, 1, time.Millisecond); err != context.Canceled {
		t.Fatalf("expected context.Canceled; got %v", err)
	}
}

func TestPlayThroughExecutor(t *testing.T) {
	var buf bytes.Buffer
	kfmt.SetOutputSink(&buf)
	defer kfmt.SetOutputSink(nil)

	m := newMachine()
	mouse.SetInterruptMasker(m.withoutInterrupts)
	defer mouse.SetInterruptMasker(nil)

	printKeypresses, err := keyboard.PrintKeypresses()
	if err != nil {
		t.Fatal(err)
	}

	executor := task.NewExecutor(m)
	executor.Spawn(task.New(printKeypresses))
	executor.Spawn(task.New(mouse.TrackPointer(&mouse.Pointer{X: 40, Y: 12, Width: 80, Height: 25})))

	// Register wakers and consume any tick left over by other tests.
	m.timerInterrupt()
	executor.RunOnce()
	buf.Reset()

	actions, perr := parseScript("type 'Hi!' move 3 4")
	if perr != nil {
		t.Fatal(perr)
	}
	if perr = m.play(context.Background(), actions, buildKeymap(), time.Millisecond); perr != nil {
		t.Fatal(perr)
	}

	executor.RunOnce()
	if exp := "Hi!"; buf.String() != exp {
		t.Fatalf("expected keyboard output %q; got %q", exp, buf.String())
	}

	// The pointer is only sampled on a timer tick.
	buf.Reset()
	m.timerInterrupt()
	executor.RunOnce()
	if exp := "[mouse] pointer (43, 8) buttons l=false m=false r=false\n"; buf.String() != exp {
		t.Fatalf("expected pointer output %q; got %q", exp, buf.String())
	}

	buf.Reset()
	m.mouseInterrupts(mousePacket(-1, 0, mouse.RightButton)...)
	m.timerInterrupt()
	executor.RunOnce()
	if exp := "[mouse] pointer (42, 8) buttons l=false m=false r=true\n"; buf.String() != exp {
		t.Fatalf("expected pointer output %q; got %q", exp, buf.String())
	}

	if executor.Len() != 2 {
		t.Fatalf("expected both tasks to stay alive; got %d", executor.Len())
	}
}

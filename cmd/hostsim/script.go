package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/shlex"

	"github.com/finnmattis/finn-os/device/ps2/mouse"
	"github.com/finnmattis/finn-os/kernel/timer"
)

type actionKind uint8

const (
	actionType actionKind = iota
	actionMove
	actionClick
	actionWait
)

// action is a single step of an input script.
type action struct {
	kind   actionKind
	text   string
	dx, dy int
	button mouse.Flags
	ticks  uint64
}

var buttonNames = map[string]mouse.Flags{
	"left":   mouse.LeftButton,
	"right":  mouse.RightButton,
	"middle": mouse.MiddleButton,
}

// parseScript parses a shell-quoted input script, for example:
//
//	type 'hello world' move 4 -2 click left wait 3
func parseScript(src string) ([]action, error) {
	words, err := shlex.Split(src)
	if err != nil {
		return nil, err
	}

	var actions []action
	for len(words) != 0 {
		cmd, args := words[0], words[1:]

		var (
			act   action
			nargs int
		)
		switch cmd {
		case "type":
			nargs = 1
			if len(args) >= nargs {
				act = action{kind: actionType, text: args[0]}
			}
		case "move":
			nargs = 2
			if len(args) >= nargs {
				act.kind = actionMove
				if act.dx, err = strconv.Atoi(args[0]); err == nil {
					act.dy, err = strconv.Atoi(args[1])
				}
			}
		case "click":
			nargs = 1
			if len(args) >= nargs {
				button, ok := buttonNames[args[0]]
				if !ok {
					err = fmt.Errorf("unknown mouse button %q", args[0])
				}
				act = action{kind: actionClick, button: button}
			}
		case "wait":
			nargs = 1
			if len(args) >= nargs {
				act.kind = actionWait
				act.ticks, err = strconv.ParseUint(args[0], 10, 64)
			}
		default:
			return nil, fmt.Errorf("unknown script command %q", cmd)
		}

		if len(args) < nargs {
			return nil, fmt.Errorf("%s: expected %d argument(s)", cmd, nargs)
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", cmd, err)
		}

		actions = append(actions, act)
		words = args[nargs:]
	}

	return actions, nil
}

// play raises the interrupts that the script describes. Wait steps poll the
// tick counter every pollInterval.
func (m *machine) play(ctx context.Context, actions []action, keymap map[rune]keystroke, pollInterval time.Duration) error {
	for _, act := range actions {
		switch act.kind {
		case actionType:
			for _, r := range act.text {
				stroke, ok := keymap[r]
				if !ok {
					return fmt.Errorf("type: no key produces %q", r)
				}
				m.keyboardInterrupts(stroke.scancodes()...)
			}
		case actionMove:
			m.mouseInterrupts(mousePacket(act.dx, act.dy, 0)...)
		case actionClick:
			m.mouseInterrupts(mousePacket(0, 0, act.button)...)
			m.mouseInterrupts(mousePacket(0, 0, 0)...)
		case actionWait:
			if err := waitTicks(ctx, act.ticks, pollInterval); err != nil {
				return err
			}
		}
	}
	return nil
}

// waitTicks blocks until n more timer ticks have been observed.
func waitTicks(ctx context.Context, n uint64, pollInterval time.Duration) error {
	target := timer.Ticks() + n

	poll := time.NewTicker(pollInterval)
	defer poll.Stop()

	for timer.Ticks() < target {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-poll.C:
		}
	}
	return nil
}

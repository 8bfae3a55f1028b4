package main

import (
	"context"
	"errors"
	"time"

	"github.com/mattn/go-tty"
	"golang.org/x/sys/unix"
)

const (
	defaultWidth  = 80
	defaultHeight = 25

	// escapeTimeout is how long an escape byte may wait for the rest of a
	// sequence before it is taken as the escape key.
	escapeTimeout = 50 * time.Millisecond
)

var errQuit = errors.New("quit requested")

// screenSize returns the size of the terminal attached to fd in cells,
// falling back to 80x25 when fd is not a terminal.
func screenSize(fd int) (width, height int) {
	ws, err := unix.IoctlGetWinsize(fd, unix.TIOCGWINSZ)
	if err != nil || ws.Col == 0 || ws.Row == 0 {
		return defaultWidth, defaultHeight
	}
	return int(ws.Col), int(ws.Row)
}

// readTerminal feeds keystrokes typed on the controlling terminal to the
// machine until ctx is cancelled or the user quits.
func (m *machine) readTerminal(ctx context.Context, decoder *terminalDecoder) error {
	term, err := tty.Open()
	if err != nil {
		return err
	}

	closed := make(chan struct{})
	defer close(closed)
	go func() {
		select {
		case <-ctx.Done():
		case <-closed:
		}
		term.Close()
	}()

	runes := make(chan rune)
	readErr := make(chan error, 1)
	go func() {
		for {
			r, err := term.ReadRune()
			if err != nil {
				readErr <- err
				return
			}
			select {
			case runes <- r:
			case <-closed:
				return
			}
		}
	}()

	err = decodeInput(ctx, runes, readErr, decoder, m.deliver)
	if err != nil && ctx.Err() != nil && !errors.Is(err, errQuit) {
		return nil
	}
	return err
}

// decodeInput runs runes through decoder and hands the resulting events to
// deliver. An escape sequence that is still incomplete escapeTimeout after
// its last byte is flushed, so a lone escape key reaches the keyboard.
func decodeInput(ctx context.Context, runes <-chan rune, readErr <-chan error, decoder *terminalDecoder, deliver func([]terminalEvent) error) error {
	var flush <-chan time.Time
	for {
		var events []terminalEvent
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			return err
		case r := <-runes:
			events = decoder.Feed(r)
			flush = nil
			if decoder.Pending() {
				flush = time.After(escapeTimeout)
			}
		case <-flush:
			events = decoder.Flush()
			flush = nil
		}

		if err := deliver(events); err != nil {
			return err
		}
	}
}

// deliver raises the interrupts for events.
func (m *machine) deliver(events []terminalEvent) error {
	for _, ev := range events {
		switch {
		case ev.quit:
			return errQuit
		case ev.packet != nil:
			m.mouseInterrupts(ev.packet...)
		default:
			m.keyboardInterrupts(ev.scancodes...)
		}
	}
	return nil
}

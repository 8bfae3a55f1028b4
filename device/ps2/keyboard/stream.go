package keyboard

import (
	"github.com/finnmattis/finn-os/kernel"
	"github.com/finnmattis/finn-os/kernel/async"
	"github.com/finnmattis/finn-os/kernel/kfmt"
	"github.com/finnmattis/finn-os/kernel/sync"
)

// QueueCapacity is the number of scancodes buffered between the keyboard
// interrupt handler and the task consuming them.
const QueueCapacity = 100

var (
	// scancodeQueue is created by NewScancodeStream during startup so that
	// the interrupt handler never allocates.
	scancodeQueue sync.OnceCell[*async.ArrayQueue[uint8]]
	waker         async.AtomicWaker

	errStreamExists = &kernel.Error{Module: "keyboard", Message: "scancode stream already created"}
)

// AddScancode queues a scancode read from the keyboard controller and
// wakes the consuming task. It is called by the keyboard interrupt handler
// and never blocks or allocates; if the queue is missing or full the
// scancode is dropped with a warning.
func AddScancode(scancode uint8) {
	queue, ok := scancodeQueue.Get()
	if !ok {
		kfmt.Warnf("keyboard", "scancode queue uninitialized")
		return
	}

	if !queue.Push(scancode) {
		kfmt.Warnf("keyboard", "scancode queue full; dropping keyboard input")
		return
	}

	waker.Wake()
}

// ScancodeStream yields the scancodes queued by AddScancode.
type ScancodeStream struct {
	queue *async.ArrayQueue[uint8]
}

// NewScancodeStream creates the scancode queue and returns the stream that
// drains it. Only one stream may exist; subsequent calls return an error.
func NewScancodeStream() (*ScancodeStream, *kernel.Error) {
	if err := scancodeQueue.TryInit(func() *async.ArrayQueue[uint8] {
		return async.NewArrayQueue[uint8](QueueCapacity)
	}); err != nil {
		return nil, errStreamExists
	}

	queue, _ := scancodeQueue.Get()
	return &ScancodeStream{queue: queue}, nil
}

// PollNext implements async.Stream.
func (s *ScancodeStream) PollNext(cx *async.Context) (uint8, async.PollState) {
	if scancode, ok := s.queue.Pop(); ok {
		return scancode, async.Ready
	}

	waker.Register(cx.Waker())

	// The interrupt handler may have queued a scancode before the waker
	// was registered.
	if scancode, ok := s.queue.Pop(); ok {
		waker.Take()
		return scancode, async.Ready
	}

	return 0, async.Pending
}

// PrintKeypresses returns a future that decodes every scancode delivered to
// the keyboard interrupt handler and prints the resulting keys. It never
// completes.
func PrintKeypresses() (async.Future, *kernel.Error) {
	stream, err := NewScancodeStream()
	if err != nil {
		return nil, err
	}

	var kb Keyboard
	return async.ForEach[uint8](stream, func(scancode uint8) bool {
		ev, err := DecodeScancode(scancode)
		if err != nil {
			kfmt.Warnf("keyboard", "unknown scancode 0x%2x", scancode)
			return true
		}

		if key, ok := kb.Process(ev); ok {
			printKey(key)
		}
		return true
	}), nil
}

func printKey(key DecodedKey) {
	switch key.Kind {
	case KindUnicode:
		kfmt.Printf("%c", key.Char)
	case KindRawKey:
		kfmt.Printf("%s", key.Key.String())
	}
}

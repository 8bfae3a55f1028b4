package async

import "sync/atomic"

const (
	wakerWaiting     uint32 = 0
	wakerRegistering uint32 = 1 << 0
	wakerWaking      uint32 = 1 << 1
)

// AtomicWaker holds at most one waker. Register and Wake may race with each
// other (a task registering while an interrupt handler wakes); the state
// word ensures that such a wake is never lost.
//
// Only the most recently registered waker is kept, so an AtomicWaker
// serves a single consumer.
type AtomicWaker struct {
	state atomic.Uint32
	waker Waker
}

// Register stores w, replacing any previously registered waker. If a Wake
// happens concurrently, w is woken immediately.
func (a *AtomicWaker) Register(w Waker) {
	switch {
	case a.state.CompareAndSwap(wakerWaiting, wakerRegistering):
		a.waker = w

		if a.state.CompareAndSwap(wakerRegistering, wakerWaiting) {
			return
		}

		// A Wake call arrived while the slot was being written and could
		// not take the waker; deliver it here instead.
		pending := a.waker
		a.waker = nil
		a.state.Store(wakerWaiting)
		pending.Wake()

	case a.state.Load()&wakerWaking != 0:
		// Another Wake is in progress; make the caller poll again.
		w.Wake()
	}
}

// Wake takes the registered waker, if any, and invokes it. Waking an empty
// slot is a no-op.
func (a *AtomicWaker) Wake() {
	if w := a.Take(); w != nil {
		w.Wake()
	}
}

// Take removes and returns the registered waker without invoking it. It
// returns nil if no waker is registered or if a Register call is in
// progress (that call will deliver the wake).
func (a *AtomicWaker) Take() Waker {
	var old uint32
	for {
		old = a.state.Load()
		if a.state.CompareAndSwap(old, old|wakerWaking) {
			break
		}
	}

	if old != wakerWaiting {
		return nil
	}

	w := a.waker
	a.waker = nil
	a.state.Store(wakerWaiting)
	return w
}

// Package timer turns timer interrupts into a stream of ticks that tasks can
// await.
package timer

import (
	"sync/atomic"

	"github.com/finnmattis/finn-os/kernel/async"
)

// NanosPerTick is the period of the PIT at its power-on divisor of 65536,
// roughly 18.2 Hz.
const NanosPerTick = 54925439

var (
	ticks   atomic.Uint64
	newTick atomic.Bool
	waker   async.AtomicWaker
)

// Tick records a timer interrupt and wakes the task waiting on the tick
// stream. It is called from the timer interrupt handler.
func Tick() {
	ticks.Add(1)
	newTick.Store(true)
	waker.Wake()
}

// Ticks returns the number of timer interrupts since boot.
func Ticks() uint64 {
	return ticks.Load()
}

// TickStream yields the current tick count every time a tick arrives that
// has not been consumed yet. Ticks that arrive while nobody is polling are
// coalesced into a single pending tick.
type TickStream struct{}

// PollNext implements async.Stream.
func (TickStream) PollNext(cx *async.Context) (uint64, async.PollState) {
	if newTick.Swap(false) {
		return ticks.Load(), async.Ready
	}

	waker.Register(cx.Waker())

	// A tick may have arrived before the waker was registered.
	if newTick.Swap(false) {
		waker.Take()
		return ticks.Load(), async.Ready
	}

	return 0, async.Pending
}

// Sleep returns a future that completes after it has observed n ticks.
func Sleep(n uint64) async.Future {
	var (
		stream TickStream
		seen   uint64
	)

	return async.FutureFunc(func(cx *async.Context) async.PollState {
		for seen < n {
			if _, state := stream.PollNext(cx); state == async.Pending {
				return async.Pending
			}
			seen++
		}
		return async.Ready
	})
}

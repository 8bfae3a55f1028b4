// Package async provides the cooperative suspension primitives shared by
// interrupt handlers and kernel tasks: futures and streams polled by the
// executor, a bounded lock-free queue and a single-slot waker register.
//
// Suspension is expressed as explicit state machines. A Future is polled
// with a Context; if it cannot make progress it stores the context's
// Waker somewhere an event source will find it and returns Pending. The
// event source later calls Wake which requeues the owning task.
package async

// PollState is the outcome of polling a Future or Stream.
type PollState uint8

const (
	// Pending indicates that no progress can be made until the registered
	// waker is invoked.
	Pending PollState = iota

	// Ready indicates that the future completed or that the stream
	// yielded a value.
	Ready
)

// Waker is a handle that marks a suspended task as ready to be polled again.
// Wake must not block or allocate as it may be invoked from an interrupt
// handler.
type Waker interface {
	Wake()
}

// WakerFunc adapts an ordinary function to the Waker interface.
type WakerFunc func()

// Wake calls f.
func (f WakerFunc) Wake() { f() }

// Context is passed to Poll and carries the waker of the task being polled.
type Context struct {
	waker Waker
}

// NewContext returns a Context for a task whose waker is w.
func NewContext(w Waker) *Context {
	return &Context{waker: w}
}

// Waker returns the waker of the task being polled.
func (cx *Context) Waker() Waker {
	return cx.waker
}

// Future is a suspended computation that is driven to completion by
// repeatedly polling it.
type Future interface {
	Poll(cx *Context) PollState
}

// FutureFunc adapts a poll function to the Future interface.
type FutureFunc func(cx *Context) PollState

// Poll calls f(cx).
func (f FutureFunc) Poll(cx *Context) PollState { return f(cx) }

// Stream is an asynchronous sequence of values. PollNext returns Ready
// together with the next value or Pending if no value is available yet.
type Stream[T any] interface {
	PollNext(cx *Context) (T, PollState)
}

// ForEach returns a Future that feeds every value yielded by s to fn. The
// future completes when fn returns false; for a stream that never ends and
// an fn that always returns true it runs forever.
func ForEach[T any](s Stream[T], fn func(T) bool) Future {
	return FutureFunc(func(cx *Context) PollState {
		for {
			v, state := s.PollNext(cx)
			if state == Pending {
				return Pending
			}

			if !fn(v) {
				return Ready
			}
		}
	})
}

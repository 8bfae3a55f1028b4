package task

import (
	"testing"

	"github.com/finnmattis/finn-os/kernel/async"
	"github.com/finnmattis/finn-os/kernel/kfmt"
)

type idlerCall uint8

const (
	callDisable idlerCall = iota
	callEnable
	callEnableAndHalt
)

type recordingIdler struct {
	calls []idlerCall
}

func (r *recordingIdler) DisableInterrupts()       { r.calls = append(r.calls, callDisable) }
func (r *recordingIdler) EnableInterrupts()        { r.calls = append(r.calls, callEnable) }
func (r *recordingIdler) EnableInterruptsAndHalt() { r.calls = append(r.calls, callEnableAndHalt) }

// eventSource mimics an interrupt-fed resource: tasks wait on it and an
// interrupt handler signals it.
type eventSource struct {
	ready bool
	waker async.AtomicWaker
}

func (s *eventSource) signal() {
	s.ready = true
	s.waker.Wake()
}

func (s *eventSource) wait() async.Future {
	return async.FutureFunc(func(cx *async.Context) async.PollState {
		if s.ready {
			return async.Ready
		}
		s.waker.Register(cx.Waker())
		if s.ready {
			return async.Ready
		}
		return async.Pending
	})
}

func TestTaskIDsAreUnique(t *testing.T) {
	ready := async.FutureFunc(func(*async.Context) async.PollState { return async.Ready })

	prev := New(ready).ID()
	for i := 0; i < 10; i++ {
		next := New(ready).ID()
		if next <= prev {
			t.Fatalf("expected task IDs to increase; got %d after %d", next, prev)
		}
		prev = next
	}
}

func TestExecutorRunsToCompletion(t *testing.T) {
	exec := NewExecutor(&recordingIdler{})

	polls := 0
	exec.Spawn(New(async.FutureFunc(func(*async.Context) async.PollState {
		polls++
		return async.Ready
	})))

	if exp, got := 1, exec.Len(); got != exp {
		t.Fatalf("expected %d live task; got %d", exp, got)
	}

	exec.RunOnce()
	exec.RunOnce()

	if polls != 1 {
		t.Fatalf("expected task to be polled once; got %d", polls)
	}

	if exp, got := 0, exec.Len(); got != exp {
		t.Fatalf("expected completed task to be removed; got %d live tasks", got)
	}
}

func TestExecutorWakeRequeuesTask(t *testing.T) {
	exec := NewExecutor(&recordingIdler{})

	var (
		src   eventSource
		polls int
		done  bool
	)
	wait := src.wait()
	exec.Spawn(New(async.FutureFunc(func(cx *async.Context) async.PollState {
		polls++
		if wait.Poll(cx) == async.Pending {
			return async.Pending
		}
		done = true
		return async.Ready
	})))

	exec.RunOnce()
	if polls != 1 || done {
		t.Fatalf("expected one pending poll; got polls=%d done=%t", polls, done)
	}

	// A pending task is not polled again until it is woken.
	exec.RunOnce()
	exec.RunOnce()
	if polls != 1 {
		t.Fatalf("expected pending task to stay parked; got %d polls", polls)
	}

	src.signal()
	if exp, got := 1, exec.queue.Len(); got != exp {
		t.Fatalf("expected wake to requeue the task; queue length %d", got)
	}

	exec.RunOnce()
	if polls != 2 || !done {
		t.Fatalf("expected task to complete after wake; got polls=%d done=%t", polls, done)
	}

	if len(exec.wakers) != 0 {
		t.Fatal("expected cached waker to be dropped with the completed task")
	}

	// A stale wake for a completed task is ignored.
	exec.queue.Push(0xdead)
	exec.RunOnce()
}

func TestExecutorSleepIfIdle(t *testing.T) {
	idler := &recordingIdler{}
	exec := NewExecutor(idler)

	exec.sleepIfIdle()
	if exp := []idlerCall{callDisable, callEnableAndHalt}; !equalCalls(idler.calls, exp) {
		t.Fatalf("expected idle executor to halt; got calls %v", idler.calls)
	}

	idler.calls = nil
	exec.queue.Push(TaskID(1))
	exec.sleepIfIdle()
	if exp := []idlerCall{callDisable, callEnable}; !equalCalls(idler.calls, exp) {
		t.Fatalf("expected busy executor not to halt; got calls %v", idler.calls)
	}
}

func TestExecutorFatalErrors(t *testing.T) {
	defer func() { panicFn = kfmt.Panic }()

	var panicErr interface{}
	panicFn = func(e interface{}) { panicErr = e }

	exec := NewExecutor(&recordingIdler{})
	pending := async.FutureFunc(func(*async.Context) async.PollState { return async.Pending })

	tsk := New(pending)
	exec.Spawn(tsk)
	exec.Spawn(tsk)
	if panicErr != errDuplicateTask {
		t.Fatalf("expected errDuplicateTask; got %v", panicErr)
	}

	panicErr = nil
	for i := 1; i < QueueCapacity; i++ {
		exec.Spawn(New(pending))
	}
	if panicErr != nil {
		t.Fatalf("unexpected error while filling the queue: %v", panicErr)
	}

	exec.Spawn(New(pending))
	if panicErr != errQueueFull {
		t.Fatalf("expected errQueueFull; got %v", panicErr)
	}
}

func equalCalls(a, b []idlerCall) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

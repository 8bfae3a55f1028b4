package task

import (
	"github.com/finnmattis/finn-os/kernel"
	"github.com/finnmattis/finn-os/kernel/async"
	"github.com/finnmattis/finn-os/kernel/cpu"
	"github.com/finnmattis/finn-os/kernel/kfmt"
)

// QueueCapacity is the maximum number of task IDs that can be waiting to be
// polled.
const QueueCapacity = 100

var (
	panicFn = kfmt.Panic

	errDuplicateTask = &kernel.Error{Module: "task", Message: "task with same ID already spawned"}
	errQueueFull     = &kernel.Error{Module: "task", Message: "task queue full"}
)

// Idler parks the CPU while no task is ready.
type Idler interface {
	DisableInterrupts()
	EnableInterrupts()

	// EnableInterruptsAndHalt must re-enable interrupts and wait for the
	// next one without a window in which an interrupt can be missed.
	EnableInterruptsAndHalt()
}

// HardwareIdler implements Idler using the STI/CLI/HLT instructions.
type HardwareIdler struct{}

// DisableInterrupts implements Idler.
func (HardwareIdler) DisableInterrupts() { cpu.DisableInterrupts() }

// EnableInterrupts implements Idler.
func (HardwareIdler) EnableInterrupts() { cpu.EnableInterrupts() }

// EnableInterruptsAndHalt implements Idler.
func (HardwareIdler) EnableInterruptsAndHalt() { cpu.EnableInterruptsAndHalt() }

// taskWaker requeues its task when woken. Wake is invoked from interrupt
// handlers so it only touches the lock-free ready queue.
type taskWaker struct {
	id    TaskID
	queue *async.ArrayQueue[TaskID]
}

func (w *taskWaker) Wake() {
	if !w.queue.Push(w.id) {
		panicFn(errQueueFull)
	}
}

// Executor runs tasks cooperatively on a single core. A task is polled when
// it is spawned and afterwards only when its waker is invoked.
type Executor struct {
	tasks  map[TaskID]*Task
	queue  *async.ArrayQueue[TaskID]
	wakers map[TaskID]async.Waker
	idler  Idler
}

// NewExecutor returns an executor that uses idler to wait for interrupts.
func NewExecutor(idler Idler) *Executor {
	return &Executor{
		tasks:  make(map[TaskID]*Task),
		queue:  async.NewArrayQueue[TaskID](QueueCapacity),
		wakers: make(map[TaskID]async.Waker),
		idler:  idler,
	}
}

// Spawn registers t and marks it ready. Spawning a task twice or spawning
// while the ready queue is full is fatal.
func (e *Executor) Spawn(t *Task) {
	if _, exists := e.tasks[t.id]; exists {
		panicFn(errDuplicateTask)
		return
	}

	e.tasks[t.id] = t
	if !e.queue.Push(t.id) {
		panicFn(errQueueFull)
	}
}

// Len returns the number of live tasks.
func (e *Executor) Len() int {
	return len(e.tasks)
}

// Run polls ready tasks and halts the CPU while there are none. It never
// returns.
func (e *Executor) Run() {
	for {
		e.runReadyTasks()
		e.sleepIfIdle()
	}
}

// RunOnce polls every task that is currently ready and returns without
// halting.
func (e *Executor) RunOnce() {
	e.runReadyTasks()
}

func (e *Executor) runReadyTasks() {
	for {
		id, ok := e.queue.Pop()
		if !ok {
			return
		}

		t, live := e.tasks[id]
		if !live {
			// Stale wake for a task that already completed.
			continue
		}

		w, cached := e.wakers[id]
		if !cached {
			w = &taskWaker{id: id, queue: e.queue}
			e.wakers[id] = w
		}

		if t.poll(async.NewContext(w)) == async.Ready {
			delete(e.tasks, id)
			delete(e.wakers, id)
		}
	}
}

// sleepIfIdle halts until the next interrupt if no task is ready. The
// emptiness check runs with interrupts disabled so that a wake arriving
// between the check and the halt is not missed.
func (e *Executor) sleepIfIdle() {
	e.idler.DisableInterrupts()
	if e.queue.Len() == 0 {
		e.idler.EnableInterruptsAndHalt()
		return
	}
	e.idler.EnableInterrupts()
}

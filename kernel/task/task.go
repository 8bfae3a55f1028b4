// Package task implements the cooperative executor that drives kernel tasks.
package task

import (
	"sync/atomic"

	"github.com/finnmattis/finn-os/kernel/async"
)

// TaskID uniquely identifies a task. IDs are never reused.
type TaskID uint64

var nextID atomic.Uint64

func newTaskID() TaskID {
	return TaskID(nextID.Add(1) - 1)
}

// Task pairs a suspended computation with its identity. Tasks live on the
// heap and are referenced by pointer, so the future never moves while the
// task is alive.
type Task struct {
	id     TaskID
	future async.Future
}

// New wraps f into a task with a fresh ID.
func New(f async.Future) *Task {
	return &Task{id: newTaskID(), future: f}
}

// ID returns the task identifier.
func (t *Task) ID() TaskID {
	return t.id
}

func (t *Task) poll(cx *async.Context) async.PollState {
	return t.future.Poll(cx)
}

package sync

import (
	"sync/atomic"

	"github.com/finnmattis/finn-os/kernel"
)

const (
	cellUninit uint32 = iota
	cellInitializing
	cellReady
)

var (
	errCellInitialized  = &kernel.Error{Module: "sync", Message: "cell already initialized"}
	errCellInitializing = &kernel.Error{Module: "sync", Message: "cell initialization in progress"}
)

// OnceCell holds a value that is initialized exactly once. Unlike sync.Once
// it never blocks: readers that race with the initializer simply observe an
// empty cell. This makes Get safe to call from interrupt handlers, while the
// (possibly allocating) initializer runs in task context during startup.
type OnceCell[T any] struct {
	state uint32
	value T
}

// TryInit runs initFn and stores its result if the cell is still empty. It
// returns an error if the cell has already been initialized or if another
// initialization is in progress.
func (c *OnceCell[T]) TryInit(initFn func() T) *kernel.Error {
	if !atomic.CompareAndSwapUint32(&c.state, cellUninit, cellInitializing) {
		if atomic.LoadUint32(&c.state) == cellReady {
			return errCellInitialized
		}
		return errCellInitializing
	}

	c.value = initFn()
	atomic.StoreUint32(&c.state, cellReady)
	return nil
}

// Get returns the stored value and true if the cell has been initialized.
func (c *OnceCell[T]) Get() (T, bool) {
	if atomic.LoadUint32(&c.state) != cellReady {
		var zero T
		return zero, false
	}
	return c.value, true
}

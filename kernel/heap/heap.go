package heap

import (
	"github.com/finnmattis/finn-os/kernel"
	"github.com/finnmattis/finn-os/kernel/kfmt"
	"github.com/finnmattis/finn-os/kernel/mm"
	"github.com/finnmattis/finn-os/kernel/sync"
)

const (
	// Start is the virtual address of the kernel heap arena.
	Start = uintptr(0x_4444_4444_0000)

	// Size is the size of the kernel heap arena in bytes. The Go runtime
	// allocates its metadata (including the 32 MiB arena index) from this
	// arena, so it must cover the runtime's bootstrap allocations.
	Size = uintptr(64 << 20)
)

var (
	lock      sync.Spinlock
	allocator BumpAllocator

	allocFrameFn = mm.AllocFrame
	mapFn        = mm.Map
	panicFn      = kfmt.Panic
)

// Init maps every page of the heap arena to a freshly allocated frame and
// initializes the global allocator. It must run once, before the Go runtime
// allocator is initialized.
func Init() *kernel.Error {
	lastPage := mm.PageFromAddress(Start + Size - 1)
	for page := mm.PageFromAddress(Start); page <= lastPage; page++ {
		frame, err := allocFrameFn()
		if err != nil {
			return err
		}

		if err = mapFn(page, frame, mm.FlagPresent|mm.FlagRW|mm.FlagNoExecute); err != nil {
			return err
		}
	}

	lock.Acquire()
	allocator.Init(Start, Size)
	lock.Release()

	kfmt.Logf("heap", "mapped %d KiB at 0x%x", Size>>10, Start)
	return nil
}

// Alloc reserves size bytes from the global heap. Running out of heap is
// fatal.
//
//go:nosplit
func Alloc(size, align uintptr) uintptr {
	lock.Acquire()
	addr, err := allocator.Alloc(size, align)
	lock.Release()

	if err != nil {
		panicFn(err)
		return 0
	}
	return addr
}

// Free releases an allocation made by Alloc.
//
//go:nosplit
func Free(addr uintptr) {
	lock.Acquire()
	err := allocator.Dealloc(addr)
	lock.Release()

	if err != nil {
		kfmt.Warnf("heap", "%s (addr 0x%x)", err.Message, addr)
	}
}

// Contains reports whether addr lies inside the heap arena.
func Contains(addr uintptr) bool {
	return addr >= Start && addr-Start < Size
}

// Stats returns the number of live allocations and the bytes in use.
func Stats() (allocations uint64, used uintptr) {
	lock.Acquire()
	defer lock.Release()
	return allocator.Allocations(), allocator.Used()
}

// Package goruntime contains code for bootstrapping Go runtime features such
// as the memory allocator.
package goruntime

import (
	"unsafe"

	"github.com/finnmattis/finn-os/kernel"
	"github.com/finnmattis/finn-os/kernel/heap"
	"github.com/finnmattis/finn-os/kernel/kfmt"
	"github.com/finnmattis/finn-os/kernel/mm"
	"github.com/finnmattis/finn-os/kernel/sync"
	"github.com/finnmattis/finn-os/kernel/timer"
)

const (
	// ReserveStart is the start of the virtual window used for address
	// space reservations that the runtime makes without a placement hint.
	ReserveStart = uintptr(0x_6000_0000_0000)

	// ReserveSize is the size of the reservation window.
	ReserveSize = uintptr(1 << 40)
)

var (
	mapFn        = mm.Map
	allocFrameFn = mm.AllocFrame
	heapAllocFn  = heap.Alloc
	heapFreeFn   = heap.Free
	ticksFn      = timer.Ticks
	panicFn      = kfmt.Panic

	mallocInitFn    = mallocInit
	algInitFn       = algInit
	modulesInitFn   = modulesInit
	typeLinksInitFn = typeLinksInit
	itabsInitFn     = itabsInit

	// reservations tracks address space only; nothing in the window is
	// mapped until the runtime calls sysMapOS.
	reserveLock  sync.Spinlock
	reservations heap.BumpAllocator

	// A seed for the pseudo-random number generator used by getRandomData
	prngSeed = 0xdeadc0de
)

//go:linkname algInit runtime.alginit
func algInit()

//go:linkname modulesInit runtime.modulesinit
func modulesInit()

//go:linkname typeLinksInit runtime.typelinksinit
func typeLinksInit()

//go:linkname itabsInit runtime.itabsinit
func itabsInit()

//go:linkname mallocInit runtime.mallocinit
func mallocInit()

// sysReserveOS reserves address space without backing it with memory. Hinted
// reservations are honored as-is since nothing else lives at the addresses
// the runtime picks for its arenas.
//
//go:redirect-from runtime.sysReserveOS
//go:nosplit
func sysReserveOS(v unsafe.Pointer, n uintptr) unsafe.Pointer {
	if n == 0 {
		return nil
	}
	if v != nil {
		return v
	}

	reserveLock.Acquire()
	addr, err := reservations.Alloc(pageAlign(n), mm.PageSize)
	reserveLock.Release()

	if err != nil {
		return nil
	}
	return unsafe.Pointer(addr)
}

// sysMapOS backs a previously reserved region with zeroed frames.
//
//go:redirect-from runtime.sysMapOS
//go:nosplit
func sysMapOS(v unsafe.Pointer, n uintptr) {
	start := uintptr(v) &^ (mm.PageSize - 1)
	end := pageAlign(uintptr(v) + n)

	for page := mm.PageFromAddress(start); page < mm.PageFromAddress(end); page++ {
		frame, err := allocFrameFn()
		if err != nil {
			panicFn(err)
			return
		}

		if err = mapFn(page, frame, mm.FlagPresent|mm.FlagRW|mm.FlagNoExecute); err != nil {
			panicFn(err)
			return
		}
		zero(page.Address(), mm.PageSize)
	}
}

// sysAllocOS serves runtime metadata allocations from the kernel heap.
//
//go:redirect-from runtime.sysAllocOS
//go:nosplit
func sysAllocOS(n uintptr) unsafe.Pointer {
	if n == 0 {
		return nil
	}

	size := pageAlign(n)
	addr := heapAllocFn(size, mm.PageSize)
	if addr == 0 {
		return nil
	}

	zero(addr, size)
	return unsafe.Pointer(addr)
}

// sysFreeOS returns heap allocations to the kernel heap. Address space
// reservations are never released.
//
//go:redirect-from runtime.sysFreeOS
//go:nosplit
func sysFreeOS(v unsafe.Pointer, _ uintptr) {
	if addr := uintptr(v); heap.Contains(addr) {
		heapFreeFn(addr)
	}
}

// sysUnusedOS, sysUsedOS and sysHugePageOS only pass hints to the host OS.
//
//go:redirect-from runtime.sysUnusedOS
//go:nosplit
func sysUnusedOS(_ unsafe.Pointer, _ uintptr) {}

//go:redirect-from runtime.sysUsedOS
//go:nosplit
func sysUsedOS(_ unsafe.Pointer, _ uintptr) {}

//go:redirect-from runtime.sysHugePageOS
//go:nosplit
func sysHugePageOS(_ unsafe.Pointer, _ uintptr) {}

// nanotime1 derives the monotonic clock from the timer tick counter.
//
//go:redirect-from runtime.nanotime1
//go:nosplit
func nanotime1() int64 {
	return int64(ticksFn() * timer.NanosPerTick)
}

// getRandomData populates the given slice with random data. The implementation
// is the runtime package reads a random stream from /dev/random but since this
// is not available, we use a prng instead.
//
//go:redirect-from runtime.getRandomData
func getRandomData(r []byte) {
	for i := 0; i < len(r); i++ {
		prngSeed = (prngSeed * 58321) + 11113
		r[i] = byte((prngSeed >> 16) & 255)
	}
}

func pageAlign(n uintptr) uintptr {
	return (n + mm.PageSize - 1) &^ (mm.PageSize - 1)
}

//go:nosplit
func zero(addr, size uintptr) {
	words := unsafe.Slice((*uint64)(unsafe.Pointer(addr)), size>>3)
	for i := range words {
		words[i] = 0
	}
}

// Init enables support for various Go runtime features. After a call to init
// the following runtime features become available for use:
//   - heap memory allocation (new, make e.t.c)
//   - map primitives
//   - interfaces
func Init() *kernel.Error {
	reserveLock.Acquire()
	reservations.Init(ReserveStart, ReserveSize)
	reserveLock.Release()

	mallocInitFn()
	algInitFn()       // setup hash implementation for map keys
	modulesInitFn()   // provides activeModules
	typeLinksInitFn() // uses maps, activeModules
	itabsInitFn()     // uses activeModules

	allocations, used := heap.Stats()
	kfmt.Logf("goruntime", "allocator ready; heap: %d allocations, %d KiB", allocations, used>>10)
	return nil
}

func init() {
	// Dummy calls so the compiler does not optimize away the functions in
	// this file.
	var zeroPtr = unsafe.Pointer(uintptr(0))

	sysReserveOS(zeroPtr, 0)
	sysMapOS(zeroPtr, 0)
	sysAllocOS(0)
	sysFreeOS(zeroPtr, 0)
	sysUnusedOS(zeroPtr, 0)
	sysUsedOS(zeroPtr, 0)
	sysHugePageOS(zeroPtr, 0)
	getRandomData(nil)
	prngSeed += int(nanotime1() & 1)
}

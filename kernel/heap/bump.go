// Package heap provides the kernel heap: a bump allocator over a fixed,
// pre-mapped arena. Memory is only reclaimed when every allocation has been
// released, at which point the whole arena becomes free again.
package heap

import "github.com/finnmattis/finn-os/kernel"

var (
	errAllocOverflow  = &kernel.Error{Module: "heap", Message: "allocation overflows the address space"}
	errOutOfMemory    = &kernel.Error{Module: "heap", Message: "heap arena exhausted"}
	errInvalidAlign   = &kernel.Error{Module: "heap", Message: "alignment must be a power of two"}
	errNoAllocations  = &kernel.Error{Module: "heap", Message: "dealloc without a live allocation"}
	errNotInitialized = &kernel.Error{Module: "heap", Message: "allocator not initialized"}
)

// BumpAllocator hands out memory by advancing a pointer through the
// [start, end) arena.
type BumpAllocator struct {
	start       uintptr
	end         uintptr
	next        uintptr
	allocations uint64
}

// Init sets up the allocator to serve memory from the size bytes starting at
// start. The caller guarantees that the range is mapped and unused.
func (b *BumpAllocator) Init(start, size uintptr) {
	b.start = start
	b.end = start + size
	b.next = start
	b.allocations = 0
}

// Alloc reserves size bytes aligned to align, which must be a power of two.
func (b *BumpAllocator) Alloc(size, align uintptr) (uintptr, *kernel.Error) {
	switch {
	case b.end == 0:
		return 0, errNotInitialized
	case align == 0 || align&(align-1) != 0:
		return 0, errInvalidAlign
	}

	allocStart := alignUp(b.next, align)
	if allocStart < b.next {
		return 0, errAllocOverflow
	}

	allocEnd := allocStart + size
	if allocEnd < allocStart {
		return 0, errAllocOverflow
	}

	if allocEnd > b.end {
		return 0, errOutOfMemory
	}

	b.next = allocEnd
	b.allocations++
	return allocStart, nil
}

// Dealloc releases an allocation. The space is not reused until the last
// live allocation has been released.
func (b *BumpAllocator) Dealloc(_ uintptr) *kernel.Error {
	if b.allocations == 0 {
		return errNoAllocations
	}

	b.allocations--
	if b.allocations == 0 {
		b.next = b.start
	}
	return nil
}

// Allocations returns the number of live allocations.
func (b *BumpAllocator) Allocations() uint64 {
	return b.allocations
}

// Used returns the number of arena bytes between the arena start and the
// next free address, including alignment padding.
func (b *BumpAllocator) Used() uintptr {
	return b.next - b.start
}

// alignUp rounds addr up to a multiple of align. The result wraps around
// to a value smaller than addr if the rounding overflows.
func alignUp(addr, align uintptr) uintptr {
	return (addr + align - 1) &^ (align - 1)
}

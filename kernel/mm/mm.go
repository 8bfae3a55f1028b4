// Package mm defines the boundary between the kernel core and the paging
// code. The frame allocator (package pmm) and the page mapper (package vmm)
// plug in here through SetFrameAllocator and SetPageMapper.
package mm

import (
	"math"

	"github.com/finnmattis/finn-os/kernel"
)

const (
	// PageShift is equal to log2(PageSize).
	PageShift = 12

	// PageSize defines the system's page size in bytes.
	PageSize = uintptr(1 << PageShift)
)

// Frame describes a physical memory page index.
type Frame uintptr

// InvalidFrame is returned by frame allocators when they run out of
// physical memory.
const InvalidFrame = Frame(math.MaxUint64)

// Valid returns true if this is a valid frame.
func (f Frame) Valid() bool {
	return f != InvalidFrame
}

// Address returns the physical address of the start of this frame.
func (f Frame) Address() uintptr {
	return uintptr(f << PageShift)
}

// FrameFromAddress returns the Frame containing physAddr.
func FrameFromAddress(physAddr uintptr) Frame {
	return Frame((physAddr &^ (PageSize - 1)) >> PageShift)
}

// Page describes a virtual memory page index.
type Page uintptr

// Address returns the virtual address of the start of this page.
func (p Page) Address() uintptr {
	return uintptr(p << PageShift)
}

// PageFromAddress returns the Page containing virtAddr.
func PageFromAddress(virtAddr uintptr) Page {
	return Page((virtAddr &^ (PageSize - 1)) >> PageShift)
}

// PageFlag is a bit set of page-table entry attributes.
type PageFlag uintptr

const (
	// FlagPresent marks the mapping as valid.
	FlagPresent PageFlag = 1 << 0

	// FlagRW allows writes to the page.
	FlagRW PageFlag = 1 << 1

	// FlagNoExecute forbids instruction fetches from the page.
	FlagNoExecute PageFlag = 1 << 63
)

// FrameAllocatorFn is a function that can allocate physical frames.
type FrameAllocatorFn func() (Frame, *kernel.Error)

// PageMapperFn establishes a mapping from page to frame with the given flags.
type PageMapperFn func(page Page, frame Frame, flags PageFlag) *kernel.Error

var (
	frameAllocator FrameAllocatorFn
	pageMapper     PageMapperFn

	errNoFrameAllocator = &kernel.Error{Module: "mm", Message: "no frame allocator registered"}
	errNoPageMapper     = &kernel.Error{Module: "mm", Message: "no page mapper registered"}
)

// SetFrameAllocator registers the function used to allocate physical frames.
func SetFrameAllocator(allocFn FrameAllocatorFn) { frameAllocator = allocFn }

// SetPageMapper registers the function used to install page mappings.
func SetPageMapper(mapFn PageMapperFn) { pageMapper = mapFn }

// AllocFrame allocates a new physical frame using the currently active
// frame allocator.
func AllocFrame() (Frame, *kernel.Error) {
	if frameAllocator == nil {
		return InvalidFrame, errNoFrameAllocator
	}
	return frameAllocator()
}

// Map maps page to frame using the currently active page mapper.
func Map(page Page, frame Frame, flags PageFlag) *kernel.Error {
	if pageMapper == nil {
		return errNoPageMapper
	}
	return pageMapper(page, frame, flags)
}

// Package pmm hands out physical frames from the memory map reported by the
// boot loader.
package pmm

import (
	"github.com/finnmattis/finn-os/kernel"
	"github.com/finnmattis/finn-os/kernel/hal/multiboot"
	"github.com/finnmattis/finn-os/kernel/kfmt"
	"github.com/finnmattis/finn-os/kernel/mm"
)

// lowMemoryEnd is the first address above the legacy BIOS area. Frames below
// it are never handed out.
const lowMemoryEnd = uintptr(1 << 20)

var (
	bootAllocator BootMemAllocator

	setFrameAllocatorFn = mm.SetFrameAllocator

	errBootAllocOutOfMemory = &kernel.Error{Module: "pmm", Message: "out of memory"}
)

// BootMemAllocator returns free frames in ascending address order by walking
// the available regions of the memory map. Frames occupied by the kernel
// image are skipped. Allocated frames cannot be released.
type BootMemAllocator struct {
	allocCount uint64

	// next is the lowest frame that has not been handed out yet.
	next mm.Frame

	kernelStart, kernelEnd           uintptr
	kernelStartFrame, kernelEndFrame mm.Frame
}

// Init resets the allocator and reserves the frames in the physical range
// [kernelStart, kernelEnd).
func (alloc *BootMemAllocator) Init(kernelStart, kernelEnd uintptr) {
	alloc.allocCount = 0
	alloc.next = mm.FrameFromAddress(lowMemoryEnd)
	alloc.kernelStart, alloc.kernelEnd = kernelStart, kernelEnd
	alloc.kernelStartFrame = mm.FrameFromAddress(kernelStart)
	alloc.kernelEndFrame = mm.FrameFromAddress(kernelEnd + mm.PageSize - 1)
}

// AllocFrame reserves the next free frame.
func (alloc *BootMemAllocator) AllocFrame() (mm.Frame, *kernel.Error) {
	frame := mm.InvalidFrame

	multiboot.VisitMemRegions(func(region *multiboot.MemoryMapEntry) bool {
		if region.Type != multiboot.MemAvailable {
			return true
		}

		// Region bounds are not necessarily page aligned.
		start := mm.FrameFromAddress(uintptr(region.PhysAddress) + mm.PageSize - 1)
		end := mm.FrameFromAddress(uintptr(region.PhysAddress + region.Length))

		candidate := alloc.next
		if candidate < start {
			candidate = start
		}
		if candidate >= alloc.kernelStartFrame && candidate < alloc.kernelEndFrame {
			candidate = alloc.kernelEndFrame
		}
		if candidate >= end {
			return true
		}

		frame = candidate
		return false
	})

	if !frame.Valid() {
		return mm.InvalidFrame, errBootAllocOutOfMemory
	}

	alloc.next = frame + 1
	alloc.allocCount++
	return frame, nil
}

// AllocCount returns the number of frames handed out since Init.
func (alloc *BootMemAllocator) AllocCount() uint64 {
	return alloc.allocCount
}

// Init prints the memory map, prepares the boot allocator and registers it
// as the system frame allocator.
func Init(kernelStart, kernelEnd uintptr) {
	var available uint64
	multiboot.VisitMemRegions(func(region *multiboot.MemoryMapEntry) bool {
		kfmt.Logf("pmm", "[0x%10x - 0x%10x] %s", region.PhysAddress, region.PhysAddress+region.Length, region.Type.String())
		if region.Type == multiboot.MemAvailable {
			available += region.Length
		}
		return true
	})
	kfmt.Logf("pmm", "available memory: %d KiB, kernel at 0x%x - 0x%x", available>>10, kernelStart, kernelEnd)

	bootAllocator.Init(kernelStart, kernelEnd)
	setFrameAllocatorFn(allocFrame)
}

func allocFrame() (mm.Frame, *kernel.Error) {
	return bootAllocator.AllocFrame()
}

// Package vmm installs 4-level page mappings into the active address space.
// It relies on the boot code having pointed the last P4 entry back at the P4
// table itself so every page table is reachable through a fixed virtual
// address.
package vmm

import (
	"math"
	"unsafe"

	"github.com/finnmattis/finn-os/kernel"
	"github.com/finnmattis/finn-os/kernel/cpu"
	"github.com/finnmattis/finn-os/kernel/mm"
)

const (
	pageLevels = 4

	// pointerShift is log2 of the size of a page table entry.
	pointerShift = 3

	entriesPerTable = mm.PageSize >> pointerShift

	// bits 12-51 of an entry hold the physical frame address.
	ptePhysPageMask = uintptr(0x000ffffffffff000)

	// flagHugePage marks a P3 or P2 entry that maps a 1G or 2M page.
	flagHugePage = mm.PageFlag(1 << 7)
)

var (
	// pdtVirtualAddr resolves to the P4 table when every index selects the
	// recursive entry.
	pdtVirtualAddr = uintptr(math.MaxUint64 &^ (mm.PageSize - 1))

	pageLevelShifts = [pageLevels]uint8{39, 30, 21, 12}
)

var (
	// ptePtrFn and nextAddrFn let tests back the recursive mapping with
	// ordinary arrays.
	ptePtrFn = func(entryAddr uintptr) unsafe.Pointer {
		return unsafe.Pointer(entryAddr)
	}
	nextAddrFn = func(tableAddr uintptr) uintptr {
		return tableAddr
	}

	flushTLBEntryFn = cpu.FlushTLBEntry
	allocFrameFn    = mm.AllocFrame
	setPageMapperFn = mm.SetPageMapper

	// ErrInvalidMapping is returned when looking up an address that is not
	// mapped.
	ErrInvalidMapping = &kernel.Error{Module: "vmm", Message: "virtual address does not point to a mapped physical page"}

	errNoHugePageSupport = &kernel.Error{Module: "vmm", Message: "huge pages are not supported"}
)

type pageTableEntry uintptr

func (pte pageTableEntry) hasFlags(flags mm.PageFlag) bool {
	return uintptr(pte)&uintptr(flags) == uintptr(flags)
}

func (pte pageTableEntry) frame() mm.Frame {
	return mm.Frame((uintptr(pte) & ptePhysPageMask) >> mm.PageShift)
}

func makeEntry(frame mm.Frame, flags mm.PageFlag) pageTableEntry {
	return pageTableEntry((frame.Address() & ptePhysPageMask) | uintptr(flags))
}

// Init registers Map as the system page mapper.
func Init() {
	setPageMapperFn(Map)
}

// Map points page at frame with the given flags. Missing intermediate tables
// are allocated with mm.AllocFrame and cleared before use.
func Map(page mm.Page, frame mm.Frame, flags mm.PageFlag) *kernel.Error {
	var err *kernel.Error

	walk(page.Address(), func(level uint8, pte *pageTableEntry) bool {
		if level == pageLevels-1 {
			*pte = makeEntry(frame, flags)
			flushTLBEntryFn(page.Address())
			return true
		}

		if pte.hasFlags(flagHugePage) {
			err = errNoHugePageSupport
			return false
		}

		if !pte.hasFlags(mm.FlagPresent) {
			var tableFrame mm.Frame
			if tableFrame, err = allocFrameFn(); err != nil {
				return false
			}
			*pte = makeEntry(tableFrame, mm.FlagPresent|mm.FlagRW)

			// One more shift through the recursive slot reaches the
			// table the entry now points to.
			nextTable := uintptr(unsafe.Pointer(pte)) << 9
			table := (*[entriesPerTable]pageTableEntry)(unsafe.Pointer(nextAddrFn(nextTable)))
			for i := range table {
				table[i] = 0
			}
		}

		return true
	})

	return err
}

// Translate returns the physical address that virtAddr maps to.
func Translate(virtAddr uintptr) (uintptr, *kernel.Error) {
	var (
		err   *kernel.Error
		entry pageTableEntry
	)

	walk(virtAddr, func(_ uint8, pte *pageTableEntry) bool {
		if !pte.hasFlags(mm.FlagPresent) {
			err = ErrInvalidMapping
			return false
		}
		entry = *pte
		return true
	})

	if err != nil {
		return 0, err
	}
	return entry.frame().Address() + virtAddr&(mm.PageSize-1), nil
}

// walk visits the entry for virtAddr at every paging level, starting at P4.
// It stops early when walkFn returns false.
func walk(virtAddr uintptr, walkFn func(level uint8, pte *pageTableEntry) bool) {
	tableAddr := pdtVirtualAddr
	for level := uint8(0); level < pageLevels; level++ {
		index := (virtAddr >> pageLevelShifts[level]) & (entriesPerTable - 1)
		entryAddr := tableAddr + index<<pointerShift

		if !walkFn(level, (*pageTableEntry)(ptePtrFn(entryAddr))) {
			return
		}

		tableAddr = entryAddr << 9
	}
}

// Package multiboot reads the boot information structure that a multiboot2
// compliant loader hands to the kernel. Only the tags the kernel consumes are
// decoded: the command line, the loader name and the physical memory map.
package multiboot

import (
	"strings"
	"unsafe"
)

var infoData uintptr

type tagType uint32

const (
	tagEnd            tagType = 0
	tagBootCmdLine    tagType = 1
	tagBootLoaderName tagType = 2
	tagMemoryMap      tagType = 6
)

// tagHeader precedes the payload of every tag. Tags start at 8-byte aligned
// offsets.
type tagHeader struct {
	tagType tagType
	size    uint32
}

type mmapHeader struct {
	entrySize    uint32
	entryVersion uint32
}

// MemoryEntryType defines the type of a MemoryMapEntry.
type MemoryEntryType uint32

const (
	// MemAvailable indicates that the memory region is available for use.
	MemAvailable MemoryEntryType = iota + 1

	// MemReserved indicates that the memory region is not available for use.
	MemReserved

	// MemAcpiReclaimable indicates a memory region that holds ACPI info that
	// can be reused by the OS.
	MemAcpiReclaimable

	// MemNvs indicates memory that must be preserved when hibernating.
	MemNvs

	memUnknown
)

func (t MemoryEntryType) String() string {
	switch t {
	case MemAvailable:
		return "available"
	case MemReserved:
		return "reserved"
	case MemAcpiReclaimable:
		return "ACPI (reclaimable)"
	case MemNvs:
		return "NVS"
	default:
		return "unknown"
	}
}

// MemoryMapEntry describes a physical memory region.
type MemoryMapEntry struct {
	PhysAddress uint64
	Length      uint64
	Type        MemoryEntryType
}

// MemRegionVisitor is invoked for each memory map entry. Returning false
// stops the scan.
type MemRegionVisitor func(*MemoryMapEntry) bool

// SetInfoPtr sets the address of the boot information structure.
func SetInfoPtr(ptr uintptr) {
	infoData = ptr
}

// VisitMemRegions invokes visitor for each entry of the memory map. Entries
// with a type the kernel does not recognize are reported as MemReserved.
func VisitMemRegions(visitor MemRegionVisitor) {
	curPtr, size := findTagByType(tagMemoryMap)
	if size == 0 {
		return
	}

	entrySize := uintptr((*mmapHeader)(unsafe.Pointer(curPtr)).entrySize)
	endPtr := curPtr + uintptr(size)

	for curPtr += unsafe.Sizeof(mmapHeader{}); curPtr < endPtr; curPtr += entrySize {
		entry := (*MemoryMapEntry)(unsafe.Pointer(curPtr))
		if entry.Type == 0 || entry.Type >= memUnknown {
			entry.Type = MemReserved
		}

		if !visitor(entry) {
			return
		}
	}
}

// CmdLine returns the kernel command line. The returned string aliases the
// boot information structure so it can be used before the heap is up.
func CmdLine() string {
	return tagString(tagBootCmdLine)
}

// BootLoaderName returns the name reported by the boot loader.
func BootLoaderName() string {
	return tagString(tagBootLoaderName)
}

// CmdLineFlag looks up a "name=value" or bare "name" argument on the command
// line. Bare arguments report their own name as the value.
func CmdLineFlag(name string) (string, bool) {
	line := CmdLine()
	for len(line) != 0 {
		var field string
		field, line, _ = strings.Cut(line, " ")

		key, value, hasValue := strings.Cut(field, "=")
		if key != name {
			continue
		}
		if !hasValue {
			return key, true
		}
		return value, true
	}

	return "", false
}

// tagString returns the NUL-terminated string payload of a tag.
func tagString(tag tagType) string {
	ptr, size := findTagByType(tag)
	if size < 1 {
		return ""
	}
	return unsafe.String((*byte)(unsafe.Pointer(ptr)), int(size-1))
}

// findTagByType returns the payload address and payload size of the first
// tag of the given type, or (0, 0) if there is none.
func findTagByType(tag tagType) (uintptr, uint32) {
	if infoData == 0 {
		return 0, 0
	}

	hdrSize := unsafe.Sizeof(tagHeader{})
	curPtr := infoData + 8
	for {
		hdr := (*tagHeader)(unsafe.Pointer(curPtr))
		switch {
		case hdr.tagType == tagEnd:
			return 0, 0
		case hdr.tagType == tag:
			return curPtr + hdrSize, hdr.size - uint32(hdrSize)
		}

		curPtr += uintptr(hdr.size+7) &^ 7
	}
}

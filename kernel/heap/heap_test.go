package heap

import (
	"bytes"
	"testing"

	"github.com/finnmattis/finn-os/kernel"
	"github.com/finnmattis/finn-os/kernel/kfmt"
	"github.com/finnmattis/finn-os/kernel/mm"
)

func TestInit(t *testing.T) {
	defer func() {
		allocFrameFn = mm.AllocFrame
		mapFn = mm.Map
		allocator = BumpAllocator{}
		kfmt.SetOutputSink(nil)
	}()
	kfmt.SetOutputSink(&bytes.Buffer{})

	t.Run("success", func(t *testing.T) {
		var (
			nextFrame mm.Frame
			mapped    int
			lastPage  mm.Page
		)

		allocFrameFn = func() (mm.Frame, *kernel.Error) {
			nextFrame++
			return nextFrame, nil
		}
		mapFn = func(page mm.Page, frame mm.Frame, flags mm.PageFlag) *kernel.Error {
			if flags&(mm.FlagPresent|mm.FlagRW) != mm.FlagPresent|mm.FlagRW {
				t.Errorf("expected page to be mapped present and writable; flags %x", flags)
			}
			if mapped > 0 && page != lastPage+1 {
				t.Errorf("expected pages to be mapped in order; got %d after %d", page, lastPage)
			}
			mapped++
			lastPage = page
			return nil
		}

		if err := Init(); err != nil {
			t.Fatal(err)
		}

		if exp := int(Size / mm.PageSize); mapped != exp {
			t.Fatalf("expected %d pages to be mapped; got %d", exp, mapped)
		}

		if exp := mm.PageFromAddress(Start + Size - 1); lastPage != exp {
			t.Fatalf("expected last mapped page to be %d; got %d", exp, lastPage)
		}

		addr := Alloc(16, 16)
		if addr != Start {
			t.Fatalf("expected first allocation at 0x%x; got 0x%x", Start, addr)
		}

		if allocations, used := Stats(); allocations != 1 || used != 16 {
			t.Fatalf("expected 1 allocation using 16 bytes; got %d, %d", allocations, used)
		}

		Free(addr)
		if allocations, used := Stats(); allocations != 0 || used != 0 {
			t.Fatalf("expected an empty heap; got %d, %d", allocations, used)
		}
	})

	t.Run("frame allocation error", func(t *testing.T) {
		expErr := &kernel.Error{Module: "test", Message: "out of frames"}
		allocFrameFn = func() (mm.Frame, *kernel.Error) { return mm.InvalidFrame, expErr }

		if err := Init(); err != expErr {
			t.Fatalf("expected to get %v; got %v", expErr, err)
		}
	})

	t.Run("map error", func(t *testing.T) {
		expErr := &kernel.Error{Module: "test", Message: "map failed"}
		allocFrameFn = func() (mm.Frame, *kernel.Error) { return mm.Frame(1), nil }
		mapFn = func(mm.Page, mm.Frame, mm.PageFlag) *kernel.Error { return expErr }

		if err := Init(); err != expErr {
			t.Fatalf("expected to get %v; got %v", expErr, err)
		}
	})
}

func TestAllocExhaustionIsFatal(t *testing.T) {
	defer func() {
		panicFn = kfmt.Panic
		allocator = BumpAllocator{}
		kfmt.SetOutputSink(nil)
	}()

	var buf bytes.Buffer
	kfmt.SetOutputSink(&buf)

	var panicErr interface{}
	panicFn = func(e interface{}) { panicErr = e }

	allocator.Init(0x1000, 8)
	if addr := Alloc(16, 1); addr != 0 || panicErr != errOutOfMemory {
		t.Fatalf("expected Alloc to panic with errOutOfMemory; got addr 0x%x, err %v", addr, panicErr)
	}

	Free(0x1000)
	if !bytes.Contains(buf.Bytes(), []byte("[heap] WARNING: dealloc without a live allocation")) {
		t.Fatalf("expected a warning for an unmatched Free; got %q", buf.String())
	}
}

func TestContains(t *testing.T) {
	specs := []struct {
		addr uintptr
		exp  bool
	}{
		{Start - 1, false},
		{Start, true},
		{Start + Size - 1, true},
		{Start + Size, false},
		{0, false},
	}

	for specIndex, spec := range specs {
		if got := Contains(spec.addr); got != spec.exp {
			t.Errorf("[spec %d] expected Contains(0x%x) to be %t; got %t", specIndex, spec.addr, spec.exp, got)
		}
	}
}

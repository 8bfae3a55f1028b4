package device

import (
	"io"
	"sort"
	"testing"

	"github.com/finnmattis/finn-os/kernel"
)

type namedDriver string

func (d namedDriver) DriverName() string                     { return string(d) }
func (d namedDriver) DriverVersion() (uint16, uint16, uint16) { return 0, 0, 1 }
func (d namedDriver) DriverInit(io.Writer) *kernel.Error      { return nil }

func probeFor(name string) ProbeFn {
	return func() Driver { return namedDriver(name) }
}

func TestDriverListOrder(t *testing.T) {
	defer func() { registeredDrivers = nil }()

	specs := []struct {
		name  string
		order DetectOrder
	}{
		{"vt", DetectOrderLast},
		{"ps2", DetectOrderNormal},
		{"serial", DetectOrderEarly},
		{"vga_text", DetectOrderNormal},
		{"late", DetectOrderNormal + 1},
	}

	for _, spec := range specs {
		RegisterDriver(&DriverInfo{Order: spec.order, Probe: probeFor(spec.name)})
	}

	list := DriverList()
	if list.Len() != len(specs) {
		t.Fatalf("expected %d registered drivers; got %d", len(specs), list.Len())
	}

	sort.Stable(list)

	exp := []string{"serial", "ps2", "vga_text", "late", "vt"}
	for i, name := range exp {
		if got := list[i].Probe().DriverName(); got != name {
			t.Errorf("[spec %d] expected %q to be probed at position %d; got %q", i, name, i, got)
		}
	}
}

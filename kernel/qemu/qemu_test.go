package qemu

import (
	"testing"

	"github.com/finnmattis/finn-os/kernel/cpu"
)

func TestExit(t *testing.T) {
	defer func() {
		portWriteDwordFn = cpu.PortWriteDword
		haltFn = cpu.Halt
	}()

	specs := []struct {
		code   ExitCode
		expVal uint32
	}{
		{Success, 0x10},
		{Failed, 0x11},
	}

	for specIndex, spec := range specs {
		var (
			port   uint16
			val    uint32
			halted bool
		)
		portWriteDwordFn = func(p uint16, v uint32) { port, val = p, v }
		haltFn = func() { halted = true }

		Exit(spec.code)

		if port != ExitPort || val != spec.expVal {
			t.Errorf("[spec %d] expected write of 0x%x to port 0x%x; got 0x%x to 0x%x", specIndex, spec.expVal, ExitPort, val, port)
		}
		if !halted {
			t.Errorf("[spec %d] expected the CPU to be halted", specIndex)
		}
	}
}

package ps2

import (
	"bytes"
	"testing"

	"github.com/finnmattis/finn-os/kernel/cpu"
)

type portWrite struct {
	port uint16
	val  uint8
}

// fakeController emulates the i8042 data/status registers.
type fakeController struct {
	writes    []portWrite
	responses []uint8
	status    uint8
}

func (f *fakeController) install() {
	portWriteByteFn = func(port uint16, val uint8) {
		f.writes = append(f.writes, portWrite{port, val})
	}
	portReadByteFn = func(port uint16) uint8 {
		if port == CommandPort {
			if len(f.responses) > 0 {
				return f.status | statusOutputFull
			}
			return f.status
		}

		b := f.responses[0]
		f.responses = f.responses[1:]
		return b
	}
}

func restorePorts() {
	portWriteByteFn = cpu.PortWriteByte
	portReadByteFn = cpu.PortReadByte
}

func TestControllerInit(t *testing.T) {
	defer restorePorts()

	fake := &fakeController{responses: []uint8{0x61, mouseAck, mouseAck}}
	fake.install()

	var buf bytes.Buffer
	if err := probeForController().DriverInit(&buf); err != nil {
		t.Fatal(err)
	}

	expWrites := []portWrite{
		{CommandPort, cmdReadConfig},
		{CommandPort, cmdWriteConfig},
		{DataPort, 0x43},
		{CommandPort, cmdWriteAux},
		{DataPort, mouseSetDefaults},
		{CommandPort, cmdWriteAux},
		{DataPort, mouseEnableStreaming},
	}

	if len(fake.writes) != len(expWrites) {
		t.Fatalf("expected %d port writes; got %d: %+v", len(expWrites), len(fake.writes), fake.writes)
	}
	for i, exp := range expWrites {
		if fake.writes[i] != exp {
			t.Errorf("write %d: expected %+v; got %+v", i, exp, fake.writes[i])
		}
	}

	if exp := "config 0x43, mouse streaming\n"; buf.String() != exp {
		t.Fatalf("expected output %q; got %q", exp, buf.String())
	}
}

func TestControllerInitErrors(t *testing.T) {
	defer restorePorts()

	specs := []struct {
		fake   *fakeController
		expErr interface{}
	}{
		// mouse answers SetDefaults with a resend request
		{&fakeController{responses: []uint8{0x00, 0xfe}}, errNoAck},
		// input buffer never drains
		{&fakeController{status: statusInputFull}, errTimeout},
		// no config byte is ever returned
		{&fakeController{}, errTimeout},
	}

	for specIndex, spec := range specs {
		spec.fake.install()

		if err := (&Controller{}).DriverInit(&bytes.Buffer{}); err != spec.expErr {
			t.Errorf("[spec %d] expected error %v; got %v", specIndex, spec.expErr, err)
		}
	}
}

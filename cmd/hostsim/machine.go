package main

import (
	"sync"

	"github.com/finnmattis/finn-os/device/ps2/keyboard"
	"github.com/finnmattis/finn-os/device/ps2/mouse"
	"github.com/finnmattis/finn-os/kernel/timer"
)

// machine stands in for the CPU's interrupt logic. Interrupt sources run on
// their own goroutines and serialize on irqMu, which plays the role of the
// interrupt flag: holding it masks interrupts.
type machine struct {
	irqMu sync.Mutex

	// wake holds a pending wakeup for a halted executor. It is buffered so
	// an interrupt that fires between the idle check and the halt is not
	// lost.
	wake chan struct{}
}

func newMachine() *machine {
	return &machine{wake: make(chan struct{}, 1)}
}

// interrupt runs handler the way the CPU runs an interrupt handler and wakes
// a halted executor.
func (m *machine) interrupt(handler func()) {
	m.irqMu.Lock()
	handler()
	m.irqMu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// keyboardInterrupts raises one keyboard interrupt per scancode.
func (m *machine) keyboardInterrupts(scancodes ...uint8) {
	for _, scancode := range scancodes {
		m.interrupt(func() { keyboard.AddScancode(scancode) })
	}
}

// mouseInterrupts raises one mouse interrupt per packet byte.
func (m *machine) mouseInterrupts(packet ...uint8) {
	for _, b := range packet {
		m.interrupt(func() { mouse.HandleByte(b) })
	}
}

func (m *machine) timerInterrupt() {
	m.interrupt(timer.Tick)
}

// withoutInterrupts runs fn with interrupts masked.
func (m *machine) withoutInterrupts(fn func()) {
	m.irqMu.Lock()
	defer m.irqMu.Unlock()
	fn()
}

// DisableInterrupts implements task.Idler.
func (m *machine) DisableInterrupts() { m.irqMu.Lock() }

// EnableInterrupts implements task.Idler.
func (m *machine) EnableInterrupts() { m.irqMu.Unlock() }

// EnableInterruptsAndHalt implements task.Idler. It blocks until the next
// interrupt.
func (m *machine) EnableInterruptsAndHalt() {
	m.irqMu.Unlock()
	<-m.wake
}

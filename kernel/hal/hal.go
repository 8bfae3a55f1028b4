// Package hal detects the hardware the kernel runs on and connects the
// drivers it finds to the rest of the kernel.
package hal

import (
	"bytes"
	"io"
	"sort"

	"github.com/finnmattis/finn-os/device"
	"github.com/finnmattis/finn-os/device/serial"
	"github.com/finnmattis/finn-os/device/tty"
	"github.com/finnmattis/finn-os/device/video/console"
	"github.com/finnmattis/finn-os/kernel/kfmt"
)

// managedDevices contains the devices discovered by the HAL.
type managedDevices struct {
	// logSinks receive kernel output: the first serial port and the
	// terminal linked to the active console.
	logSinks []io.Writer

	serialPort    *serial.Port
	activeConsole console.Device
	activeTTY     *tty.VT

	// activeDrivers tracks all initialized device drivers.
	activeDrivers []device.Driver
}

var (
	devices managedDevices
	strBuf  bytes.Buffer

	setOutputSinkFn = kfmt.SetOutputSink
)

// DetectHardware probes for hardware devices and initializes the appropriate
// drivers.
func DetectHardware() {
	// Drivers with the same priority are probed in registration order.
	drivers := device.DriverList()
	sort.Stable(drivers)

	probe(drivers)
}

// ActiveConsole returns the console the terminal is linked to or nil if no
// console was found.
func ActiveConsole() console.Device {
	return devices.activeConsole
}

// ActiveDrivers returns the drivers that were successfully initialized.
func ActiveDrivers() []device.Driver {
	return devices.activeDrivers
}

// probe executes the probe function for each driver and invokes
// onDriverInit for each successfully initialized driver.
func probe(driverInfoList device.DriverInfoList) {
	for _, info := range driverInfoList {
		drv := info.Probe()
		if drv == nil {
			continue
		}

		// The sink may have been attached by the previous driver.
		w := kfmt.PrefixWriter{Sink: kfmt.GetOutputSink()}

		strBuf.Reset()
		major, minor, patch := drv.DriverVersion()
		kfmt.Fprintf(&strBuf, "[hal] %s(%d.%d.%d): ", drv.DriverName(), major, minor, patch)
		w.Prefix = strBuf.Bytes()

		if err := drv.DriverInit(&w); err != nil {
			kfmt.Fprintf(&w, "init failed: %s\n", err.Message)
			continue
		}

		onDriverInit(drv)
		w.Sink = kfmt.GetOutputSink()
		kfmt.Fprintf(&w, "initialized\n")
		devices.activeDrivers = append(devices.activeDrivers, drv)
	}
}

// onDriverInit is invoked by probe() whenever a piece of hardware is detected
// and successfully initialized.
func onDriverInit(drv device.Driver) {
	switch drvImpl := drv.(type) {
	case *serial.Port:
		if devices.serialPort != nil {
			return
		}

		devices.serialPort = drvImpl
		addLogSink(drvImpl)
	case console.Device:
		if devices.activeConsole != nil {
			return
		}

		devices.activeConsole = drvImpl
		if devices.activeTTY != nil {
			linkTTYToConsole()
		}
	case *tty.VT:
		if devices.activeTTY != nil {
			return
		}

		devices.activeTTY = drvImpl
		if devices.activeConsole != nil {
			linkTTYToConsole()
		}
	}
}

// linkTTYToConsole attaches the active terminal to the active console and
// starts sending kernel output to it.
func linkTTYToConsole() {
	devices.activeTTY.AttachTo(devices.activeConsole)
	addLogSink(devices.activeTTY)
}

func addLogSink(w io.Writer) {
	devices.logSinks = append(devices.logSinks, w)
	if len(devices.logSinks) == 1 {
		setOutputSinkFn(w)
		return
	}
	setOutputSinkFn(io.MultiWriter(devices.logSinks...))
}

package main

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	evdev "github.com/gvalkov/golang-evdev"

	"anxiousscroll/scroll"
)

// errNoSuitableDevice is returned when enumeration finds no wheel mouse.
var errNoSuitableDevice = errors.New("no suitable mouse device found, specify a device path with -device")

// deviceCaps lists the relative axes and keys a physical device reports.
// The virtual device mirrors them.
type deviceCaps struct {
	RelAxes []int
	Keys    []int
}

// physicalDevice wraps an evdev node opened for reading.
type physicalDevice struct {
	dev     *evdev.InputDevice
	grabbed bool
	waiter  *fdWaiter
	frames  frameBuffer
}

func newPhysicalDevice(dev *evdev.InputDevice) (*physicalDevice, error) {
	w, err := newFdWaiter(int(dev.File.Fd()))
	if err != nil {
		_ = dev.File.Close()
		return nil, fmt.Errorf("watch %s: %w", dev.Fn, err)
	}
	return &physicalDevice{dev: dev, waiter: w}, nil
}

// openPhysicalDevice opens the node at path, or searches for a mouse when path is empty.
func openPhysicalDevice(path string, logger *slog.Logger) (*physicalDevice, error) {
	if path != "" {
		logger.Info("using specified device", "device", path)
		dev, err := evdev.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		return newPhysicalDevice(dev)
	}

	logger.Info("searching for mouse devices")
	dev, err := findMouseDevice(logger)
	if err != nil {
		return nil, err
	}
	return newPhysicalDevice(dev)
}

// findMouseDevice returns the first input device that supports REL_X, REL_Y,
// REL_WHEEL and REL_HWHEEL. All other opened devices are closed.
func findMouseDevice(logger *slog.Logger) (*evdev.InputDevice, error) {
	devices, err := evdev.ListInputDevices()
	if err != nil {
		return nil, fmt.Errorf("list input devices: %w", err)
	}

	var found *evdev.InputDevice
	for _, dev := range devices {
		if found == nil && looksLikeWheelMouse(relAxes(dev)) {
			logger.Info("found mouse device", "name", dev.Name, "device", dev.Fn)
			found = dev
			continue
		}
		_ = dev.File.Close()
	}

	if found == nil {
		return nil, errNoSuitableDevice
	}
	return found, nil
}

func relAxes(dev *evdev.InputDevice) []int {
	return dev.CapabilitiesFlat[EV_REL]
}

func keyCodes(dev *evdev.InputDevice) []int {
	return dev.CapabilitiesFlat[EV_KEY]
}

// looksLikeWheelMouse reports whether the axes include pointer motion and both wheels.
func looksLikeWheelMouse(axes []int) bool {
	need := map[int]bool{REL_X: false, REL_Y: false, REL_WHEEL: false, REL_HWHEEL: false}
	for _, a := range axes {
		if _, ok := need[a]; ok {
			need[a] = true
		}
	}
	for _, ok := range need {
		if !ok {
			return false
		}
	}
	return true
}

func (p *physicalDevice) Name() string { return p.dev.Name }
func (p *physicalDevice) Path() string { return p.dev.Fn }

func (p *physicalDevice) capabilities() deviceCaps {
	return deviceCaps{
		RelAxes: relAxes(p.dev),
		Keys:    keyCodes(p.dev),
	}
}

// grab takes exclusive access so other readers stop seeing the raw events.
func (p *physicalDevice) grab() error {
	if err := p.dev.Grab(); err != nil {
		return fmt.Errorf("grab %s: %w", p.dev.Fn, err)
	}
	p.grabbed = true
	return nil
}

// ReadBatch blocks until the kernel delivers at least one complete frame
// (events through a SYN_REPORT) and returns the frames in order. A partial
// frame at the end of a read is held for the next call.
func (p *physicalDevice) ReadBatch() ([]scroll.Event, error) {
	for {
		if err := p.waiter.wait(); err != nil {
			return nil, err
		}
		raw, err := p.dev.Read()
		if err != nil {
			return nil, err
		}
		batch := make([]scroll.Event, len(raw))
		for i, ev := range raw {
			batch[i] = eventFromEvdev(ev)
		}
		if frame := p.frames.push(batch); len(frame) > 0 {
			return frame, nil
		}
	}
}

// Interrupt makes a pending and every later ReadBatch return errReadInterrupted.
func (p *physicalDevice) Interrupt() {
	p.waiter.wake()
}

// Close releases the grab (if held) and closes the node. Call it after the
// reader has stopped; use Interrupt to stop it.
func (p *physicalDevice) Close() error {
	p.waiter.close()
	if p.grabbed {
		_ = p.dev.Release()
		p.grabbed = false
	}
	return p.dev.File.Close()
}

// eventFromEvdev converts a kernel event; the timeval becomes a wall-clock time.
func eventFromEvdev(ev evdev.InputEvent) scroll.Event {
	return scroll.Event{
		Time:  time.Unix(int64(ev.Time.Sec), int64(ev.Time.Usec)*int64(time.Microsecond)),
		Type:  ev.Type,
		Code:  ev.Code,
		Value: ev.Value,
	}
}

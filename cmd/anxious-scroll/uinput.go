package main

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"golang.org/x/sys/unix"

	"anxiousscroll/scroll"
)

type inputID struct {
	Bustype uint16
	Vendor  uint16
	Product uint16
	Version uint16
}

// uinputUserDev is struct uinput_user_dev from <linux/uinput.h>
type uinputUserDev struct {
	Name       [uinputMaxNameSize]byte
	ID         inputID
	EffectsMax uint32
	Absmax     [absCnt]int32
	Absmin     [absCnt]int32
	Absfuzz    [absCnt]int32
	Absflat    [absCnt]int32
}

// virtualDevice is the uinput device the rewritten stream is emitted on.
type virtualDevice struct {
	fd   int
	name string
	buf  bytes.Buffer
}

// newVirtualDevice creates a uinput device advertising the given capabilities.
func newVirtualDevice(name string, caps deviceCaps) (*virtualDevice, error) {
	fd, err := unix.Open(uinputPath, unix.O_WRONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", uinputPath, err)
	}

	v := &virtualDevice{fd: fd, name: name}
	if err := v.setup(caps); err != nil {
		_ = unix.Close(fd)
		return nil, err
	}
	return v, nil
}

func (v *virtualDevice) setup(caps deviceCaps) error {
	for _, ev := range []int{EV_SYN, EV_KEY, EV_REL} {
		if err := unix.IoctlSetInt(v.fd, uiSetEvBit, ev); err != nil {
			return fmt.Errorf("UI_SET_EVBIT %d: %w", ev, err)
		}
	}
	for _, rel := range caps.RelAxes {
		if rel < 0 || rel > REL_MAX {
			continue
		}
		if err := unix.IoctlSetInt(v.fd, uiSetRelBit, rel); err != nil {
			return fmt.Errorf("UI_SET_RELBIT %d: %w", rel, err)
		}
	}
	for _, key := range caps.Keys {
		if key < 0 || key > KEY_MAX {
			continue
		}
		if err := unix.IoctlSetInt(v.fd, uiSetKeyBit, key); err != nil {
			return fmt.Errorf("UI_SET_KEYBIT %d: %w", key, err)
		}
	}

	var dev uinputUserDev
	copy(dev.Name[:uinputMaxNameSize-1], v.name)
	dev.ID = inputID{Bustype: busUSB, Vendor: 0x1, Product: 0x1, Version: 1}

	var b bytes.Buffer
	if err := binary.Write(&b, binary.NativeEndian, &dev); err != nil {
		return fmt.Errorf("encode uinput_user_dev: %w", err)
	}
	if _, err := unix.Write(v.fd, b.Bytes()); err != nil {
		return fmt.Errorf("write uinput_user_dev: %w", err)
	}

	if err := unix.IoctlSetInt(v.fd, uiDevCreate, 0); err != nil {
		return fmt.Errorf("UI_DEV_CREATE: %w", err)
	}
	return nil
}

// Emit writes the batch to the virtual device.
func (v *virtualDevice) Emit(batch []scroll.Event) error {
	if len(batch) == 0 {
		return nil
	}
	v.buf.Reset()
	if err := encodeEvents(&v.buf, batch); err != nil {
		return err
	}
	n, err := unix.Write(v.fd, v.buf.Bytes())
	if err != nil {
		return fmt.Errorf("write events: %w", err)
	}
	if n != v.buf.Len() {
		return fmt.Errorf("short write to uinput: %d of %d bytes", n, v.buf.Len())
	}
	return nil
}

// Close destroys the virtual device.
func (v *virtualDevice) Close() error {
	_ = unix.IoctlSetInt(v.fd, uiDevDestroy, 0)
	return unix.Close(v.fd)
}

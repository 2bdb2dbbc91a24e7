package main

import "time"

// Linux input event types and codes (from <linux/input-event-codes.h>)
const (
	EV_SYN = 0x00
	EV_KEY = 0x01
	EV_REL = 0x02

	SYN_REPORT = 0x00

	REL_X             = 0x00
	REL_Y             = 0x01
	REL_HWHEEL        = 0x06
	REL_WHEEL         = 0x08
	REL_WHEEL_HI_RES  = 0x0b
	REL_HWHEEL_HI_RES = 0x0c

	KEY_MAX = 0x2ff
	REL_MAX = 0x0f
)

// uinput ioctls and sizes (from <linux/uinput.h>)
const (
	uinputPath        = "/dev/uinput"
	uinputMaxNameSize = 80
	uiDevCreate       = 0x5501
	uiDevDestroy      = 0x5502
	uiSetEvBit        = 0x40045564
	uiSetKeyBit       = 0x40045565
	uiSetRelBit       = 0x40045566
	busUSB            = 0x03
	absCnt            = 64
)

// Daemon defaults
const (
	defaultVirtualName  = "Anxious Scroll Daemon"
	defaultStatusListen = "127.0.0.1:3002"
	defaultRetryDelayMS = 10 // Sleep after a transient read error (ms)

	// Give udev a moment to create the virtual node before the first emit.
	uinputSettleDelay = 200 * time.Millisecond

	// wsSampleCoalesceWindow is the maximum window during which bursty scroll
	// samples are coalesced (latest-wins) before broadcasting to clients.
	wsSampleCoalesceWindow = 50 * time.Millisecond

	sampleQueueSize = 64
)

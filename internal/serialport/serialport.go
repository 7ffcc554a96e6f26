// Package serialport opens the RIA's USB CDC console as a raw serial line.
package serialport

import (
	"errors"
	"runtime"
	"time"
)

// ErrUnsupported is returned by Open on platforms without a termios backend.
var ErrUnsupported = errors.New("serial ports are not supported on " + runtime.GOOS)

// Config describes how to open a port.
type Config struct {
	Name string
	Baud int
	// ReadTimeout bounds a single Read; it is rounded to tenths of a second.
	ReadTimeout time.Duration
}

// DefaultDevice returns where the RP6502 USB console usually appears.
func DefaultDevice() string {
	return defaultDeviceFor(runtime.GOOS)
}

func defaultDeviceFor(goos string) string {
	switch goos {
	case "windows":
		return "COM1"
	case "darwin":
		return "/dev/tty.usbmodem"
	case "linux":
		return "/dev/ttyACM0"
	default:
		return "/dev/tty"
	}
}

// deciseconds converts d for VTIME, keeping at least one tick.
func deciseconds(d time.Duration) uint8 {
	ds := d / (100 * time.Millisecond)
	switch {
	case ds < 1:
		return 1
	case ds > 255:
		return 255
	default:
		return uint8(ds) //nolint:gosec // bounded above
	}
}

package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"rp6502/internal/console"
	"rp6502/internal/monitor"
	"rp6502/internal/project"
	"rp6502/internal/serialport"
)

// readTimeout is the VTIME of the serial line; the monitor retries idle
// reads until its own prompt timeout.
const readTimeout = 100 * time.Millisecond

func addDeviceFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("device", "D", "", "serial device (default: -c file, rp6502.toml, then "+serialport.DefaultDevice()+")")
	cmd.Flags().StringP("config", "c", "", "device configuration file, created with the current device when missing")
	cmd.Flags().Duration("timeout", monitor.DefaultTimeout, "how long to wait for a monitor prompt")
}

// board is an open connection to the RIA monitor.
type board struct {
	*monitor.Monitor
	port io.Closer
}

func (b *board) Close() error { return b.port.Close() }

// resolveDevice applies --device, -c, the project manifest and the platform
// default, in that order.
func resolveDevice(cmd *cobra.Command) (string, error) {
	flag, err := cmd.Flags().GetString("device")
	if err != nil {
		return "", err
	}
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return "", err
	}
	manifest, _, err := loadProjectManifest(".")
	if err != nil {
		return "", err
	}
	return project.DeviceChoice{
		Flag:       flag,
		ConfigPath: configPath,
		Manifest:   manifest,
		Default:    serialport.DefaultDevice(),
	}.Resolve()
}

func openBoard(cmd *cobra.Command) (*board, error) {
	timeout, err := cmd.Flags().GetDuration("timeout")
	if err != nil {
		return nil, err
	}
	device, err := resolveDevice(cmd)
	if err != nil {
		return nil, err
	}
	note(cmd, "Opening device %s", device)
	port, err := serialport.Open(serialport.Config{
		Name:        device,
		Baud:        monitor.BaudRate,
		ReadTimeout: readTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", device, err)
	}
	mon := monitor.New(port)
	mon.SetTimeout(timeout)
	return &board{Monitor: mon, port: port}, nil
}

// note prints a "[rp6502] ..." status line unless --quiet.
func note(cmd *cobra.Command, format string, args ...any) {
	if isQuiet(cmd) {
		return
	}
	console.Notef(cmd.OutOrStdout(), prog, format, args...)
}

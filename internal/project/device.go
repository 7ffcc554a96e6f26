package project

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

type deviceFile struct {
	Device DeviceConfig `toml:"device"`
}

// DeviceChoice collects the places a serial device can come from.
type DeviceChoice struct {
	Flag       string // --device, empty when not given
	ConfigPath string // -c file, empty when not given
	Manifest   *Manifest
	Default    string
}

// Resolve picks the device: --device, then the -c file, then the manifest,
// then the platform default. A -c file that does not exist yet is created
// holding the device that was picked without it.
//
// An explicit --device wins even over an existing -c file, so a one-off
// override never means editing the file. The file is still read, and
// created when missing.
func (c DeviceChoice) Resolve() (string, error) {
	fallback := c.Default
	if c.Manifest != nil && strings.TrimSpace(c.Manifest.Config.Device.Port) != "" {
		fallback = strings.TrimSpace(c.Manifest.Config.Device.Port)
	}
	if flag := strings.TrimSpace(c.Flag); flag != "" {
		fallback = flag
		if c.ConfigPath == "" {
			return flag, nil
		}
	}
	if c.ConfigPath == "" {
		return fallback, nil
	}
	port, err := LoadDeviceFile(c.ConfigPath, fallback)
	if err != nil {
		return "", err
	}
	if flag := strings.TrimSpace(c.Flag); flag != "" {
		return flag, nil
	}
	return port, nil
}

// LoadDeviceFile reads the port from path, creating the file with current
// when it does not exist.
func LoadDeviceFile(path, current string) (string, error) {
	var cfg deviceFile
	_, err := toml.DecodeFile(path, &cfg)
	if errors.Is(err, os.ErrNotExist) {
		return current, writeDeviceFile(path, current)
	}
	if err != nil {
		return "", fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if port := strings.TrimSpace(cfg.Device.Port); port != "" {
		return port, nil
	}
	return current, nil
}

func writeDeviceFile(path, port string) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(deviceFile{Device: DeviceConfig{Port: port}}); err != nil {
		return fmt.Errorf("%s: failed to encode TOML: %w", path, err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

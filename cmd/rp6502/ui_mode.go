package main

import (
	"fmt"
	"os"
	"strings"

	"rp6502/internal/console"
)

// uiMode is the --ui setting of build.
type uiMode string

var uiModes = map[string]uiMode{"": "auto", "auto": "auto", "on": "on", "off": "off"}

func readUIMode(value string) (uiMode, error) {
	mode, ok := uiModes[strings.ToLower(strings.TrimSpace(value))]
	if !ok {
		return "", fmt.Errorf("invalid --ui value %q (expected auto|on|off)", value)
	}
	return mode, nil
}

// shouldUseTUI resolves "auto" against stdout.
func shouldUseTUI(mode uiMode) bool {
	if mode == "auto" {
		return console.IsTerminal(os.Stdout)
	}
	return mode == "on"
}

// Package console holds the small bits of terminal handling shared by the
// rp6502 and cc65wrap commands.
package console

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/term"
)

// ColorMode selects when output is colorized.
type ColorMode string

const (
	ColorAuto ColorMode = "auto"
	ColorOn   ColorMode = "on"
	ColorOff  ColorMode = "off"
)

// ParseColorMode validates a --color value.
func ParseColorMode(value string) (ColorMode, error) {
	switch strings.TrimSpace(strings.ToLower(value)) {
	case "", "auto":
		return ColorAuto, nil
	case "on", "always":
		return ColorOn, nil
	case "off", "never":
		return ColorOff, nil
	default:
		return "", fmt.Errorf("invalid --color value %q (expected auto|on|off)", value)
	}
}

// ApplyColor configures fatih/color globally. Auto keeps the library's own
// detection, which honours NO_COLOR and non-terminal outputs.
func ApplyColor(mode ColorMode) {
	switch mode {
	case ColorOn:
		color.NoColor = false
	case ColorOff:
		color.NoColor = true
	}
}

// IsTerminal reports whether f is a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

var (
	errorLabel = color.New(color.FgRed, color.Bold)
	warnLabel  = color.New(color.FgYellow, color.Bold)
	noteLabel  = color.New(color.FgCyan)
)

// Errorf prints "<prog>: error: <message>".
func Errorf(w io.Writer, prog, format string, args ...any) {
	fmt.Fprintf(w, "%s: %s %s\n", prog, errorLabel.Sprint("error:"), fmt.Sprintf(format, args...))
}

// Warnf prints "<prog>: warning: <message>".
func Warnf(w io.Writer, prog, format string, args ...any) {
	fmt.Fprintf(w, "%s: %s %s\n", prog, warnLabel.Sprint("warning:"), fmt.Sprintf(format, args...))
}

// Notef prints a "[<prog>] <message>" status line.
func Notef(w io.Writer, prog, format string, args ...any) {
	fmt.Fprintf(w, "%s %s\n", noteLabel.Sprintf("[%s]", prog), fmt.Sprintf(format, args...))
}

package toolchain

import (
	"errors"
	"fmt"
	"path/filepath"
)

// ConfigurationError reports a setup problem found before any tool runs:
// a missing executable, an unreadable target path or a malformed wrapper
// launch line.
type ConfigurationError struct {
	Op  string
	Err error
}

func (e *ConfigurationError) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// ExitCode is always 1 for configuration failures.
func (e *ConfigurationError) ExitCode() int { return 1 }

// InvocationError reports that a real tool ran and exited with a non-zero status.
type InvocationError struct {
	Tool   string
	Status int
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("%s exited with status %d", filepath.Base(e.Tool), e.Status)
}

// ExitCode returns the tool's own status so callers can propagate it unchanged.
func (e *InvocationError) ExitCode() int {
	if e.Status == 0 {
		return 1
	}
	return e.Status
}

// ExitCode maps err to a process exit status: 0 for nil, the carried status
// for errors that know it, 1 otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var coded interface{ ExitCode() int }
	if errors.As(err, &coded) {
		return coded.ExitCode()
	}
	return 1
}

func configErr(op string, err error) error {
	return &ConfigurationError{Op: op, Err: err}
}

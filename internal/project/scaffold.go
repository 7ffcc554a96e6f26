package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"rp6502/internal/boot"
)

// ScaffoldOptions selects what "rp6502 init" writes.
type ScaffoldOptions struct {
	Name    string
	Asm     bool
	Device  string
	Message string
}

// Scaffold creates rp6502.toml and a hello-world entry in dir. It refuses to
// touch an existing manifest and keeps an existing entry file. created lists
// the files written, relative to dir.
func Scaffold(dir string, opts ScaffoldOptions) (created []string, err error) {
	if st, err := os.Stat(dir); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %q: %w", dir, err)
		}
	} else if !st.IsDir() {
		return nil, fmt.Errorf("%q is not a directory", dir)
	}

	manifestPath := filepath.Join(dir, ManifestName)
	if _, err := os.Stat(manifestPath); err == nil {
		return nil, fmt.Errorf("project already initialized: %s exists", manifestPath)
	}

	name := strings.TrimSpace(opts.Name)
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = "rp6502-project"
	}
	message := opts.Message
	if message == "" {
		message = "Hello, world!"
	}

	entry := filepath.Join("src", "main.c")
	var body string
	if opts.Asm {
		entry = filepath.Join("src", "main.s")
		if body, err = boot.MainSource(message + "\r\n"); err != nil {
			return nil, err
		}
	} else {
		body = boot.CSource(message)
	}

	if err := os.WriteFile(manifestPath, []byte(DefaultManifest(name, opts.Device)), 0o600); err != nil {
		return nil, fmt.Errorf("failed to write manifest: %w", err)
	}
	created = append(created, ManifestName)

	entryPath := filepath.Join(dir, entry)
	if _, err := os.Stat(entryPath); errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(entryPath), 0o755); err != nil {
			return created, err
		}
		if err := os.WriteFile(entryPath, []byte(body), 0o600); err != nil {
			return created, fmt.Errorf("failed to write %s: %w", entry, err)
		}
		created = append(created, filepath.ToSlash(entry))
	}
	return created, nil
}

// DefaultManifest returns the manifest written by Scaffold.
func DefaultManifest(name, device string) string {
	var b strings.Builder
	fmt.Fprintf(&b, `# RP6502 project manifest
[package]
name = %q
version = "0.1.0"

[build]
sources = ["src/*.c", "src/*.s"]
address = "$%04X"
reset = "$%04X"
help = [%q]
`, name, DefaultOrigin, DefaultOrigin, name)
	if device != "" {
		fmt.Fprintf(&b, "\n[device]\nport = %q\n", device)
	}
	return b.String()
}

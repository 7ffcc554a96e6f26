package toolchain

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"runtime"
	"testing"
)

func fakeLookPath(found map[string]string) func(string) (string, error) {
	return func(name string) (string, error) {
		if p, ok := found[name]; ok {
			return p, nil
		}
		return "", &exec.Error{Name: name, Err: exec.ErrNotFound}
	}
}

func fakeQuery(out string) func(context.Context, string, ...string) (string, error) {
	return func(context.Context, string, ...string) (string, error) {
		return out, nil
	}
}

func fullToolset() map[string]string {
	return map[string]string{
		"cc65": "/opt/cc65/bin/cc65",
		"ca65": "/opt/cc65/bin/ca65",
		"ld65": "/opt/cc65/bin/ld65",
		"ar65": "/opt/cc65/bin/ar65",
	}
}

func TestDiscoverResolvesIncludeDir(t *testing.T) {
	cfg, err := Discover(context.Background(), Options{
		LookPath: fakeLookPath(fullToolset()),
		Query:    fakeQuery("/opt/cc65/share/cc65/target\n"),
	})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if cfg.Compiler != "/opt/cc65/bin/cc65" {
		t.Fatalf("Compiler = %q", cfg.Compiler)
	}
	if cfg.TargetPath != "/opt/cc65/share/cc65/target" {
		t.Fatalf("TargetPath = %q", cfg.TargetPath)
	}
	if cfg.IncludeDir != "/opt/cc65/share/cc65/include" {
		t.Fatalf("IncludeDir = %q", cfg.IncludeDir)
	}
	if cfg.Target != DefaultTarget || cfg.CPU != DefaultCPU {
		t.Fatalf("target/cpu = %q/%q", cfg.Target, cfg.CPU)
	}
}

func TestDiscoverMissingCompilerIsConfigurationError(t *testing.T) {
	tools := fullToolset()
	delete(tools, "cc65")
	_, err := Discover(context.Background(), Options{
		LookPath: fakeLookPath(tools),
		Query:    fakeQuery("/x"),
	})
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected *ConfigurationError, got %T (%v)", err, err)
	}
	if ExitCode(err) != 1 {
		t.Fatalf("ExitCode = %d, want 1", ExitCode(err))
	}
}

func TestDiscoverArchiverOptional(t *testing.T) {
	tools := fullToolset()
	delete(tools, "ar65")
	cfg, err := Discover(context.Background(), Options{
		LookPath: fakeLookPath(tools),
		Query:    fakeQuery("/opt/cc65/share/cc65/target"),
	})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if _, err := cfg.ArchiveCommand("lib.lib", []string{"a.o"}); err == nil {
		t.Fatal("ArchiveCommand without ar65 should fail")
	}
}

func TestDiscoverEmptyTargetPath(t *testing.T) {
	_, err := Discover(context.Background(), Options{
		LookPath: fakeLookPath(fullToolset()),
		Query:    fakeQuery("  \n"),
	})
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected *ConfigurationError, got %v", err)
	}
}

func TestDiscoverUsesHomeBin(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts")
	}
	home := t.TempDir()
	bin := filepath.Join(home, "bin")
	if err := os.MkdirAll(bin, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"cc65", "ca65", "ld65"} {
		writeScript(t, filepath.Join(bin, name), "#!/bin/sh\necho "+filepath.Join(home, "share", "target")+"\n")
	}
	cfg, err := Discover(context.Background(), Options{
		Home:     home,
		LookPath: fakeLookPath(nil),
	})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if cfg.Compiler != filepath.Join(bin, "cc65") {
		t.Fatalf("Compiler = %q", cfg.Compiler)
	}
	if cfg.IncludeDir != filepath.Join(home, "share", "include") {
		t.Fatalf("IncludeDir = %q", cfg.IncludeDir)
	}
}

func TestLauncher(t *testing.T) {
	cfg := Config{Compiler: "/usr/bin/cc65"}
	if got := cfg.Launcher(); !reflect.DeepEqual(got, []string{"/usr/bin/cc65"}) {
		t.Fatalf("Launcher without wrapper = %v", got)
	}
	cfg.Wrapper = "/usr/local/bin/cc65wrap"
	cfg.Descriptor = "/src/rp6502.toml"
	want := []string{"/usr/local/bin/cc65wrap", "-P", "/src/rp6502.toml", "--", "/usr/bin/cc65"}
	if got := cfg.Launcher(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Launcher = %v, want %v", got, want)
	}
}

func TestPlacationDefines(t *testing.T) {
	for _, d := range PlacationDefines() {
		if !IsPlacationDefine(d) {
			t.Fatalf("%q not recognised", d)
		}
	}
	for _, arg := range []string{"-D__fastcall__", "-Dfoo=bar", "__cdecl__=", "-O"} {
		if IsPlacationDefine(arg) {
			t.Fatalf("%q wrongly recognised", arg)
		}
	}
}

func writeScript(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}
}

func TestOptionsOverlay(t *testing.T) {
	base := Options{Home: "/opt/cc65", Compiler: "/opt/cc65/bin/cc65", Target: "rp6502"}
	got := base.Overlay(Options{Compiler: "/usr/bin/cc65", Linker: " ", CPU: "6502"})
	if got.Home != "/opt/cc65" || got.Compiler != "/usr/bin/cc65" {
		t.Fatalf("unexpected overlay: %+v", got)
	}
	if got.Linker != "" || got.CPU != "6502" || got.Target != "rp6502" {
		t.Fatalf("unexpected overlay: %+v", got)
	}
}

package wrapper

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strconv"
	"strings"
	"testing"

	"rp6502/internal/toolchain"
)

func skipWithoutShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires /bin/sh")
	}
}

// writeCompiler creates a fake compiler that prints each argument on its own
// line to stdout, writes stderrText to stderr and exits with status.
func writeCompiler(t *testing.T, stderrText string, status int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cc65")
	script := "#!/bin/sh\nfor a in \"$@\"; do printf '%s\\n' \"$a\"; done\n"
	if stderrText != "" {
		script += "printf '%s' '" + stderrText + "' >&2\n"
	}
	script += "exit " + strconv.Itoa(status) + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParseMissingSeparator(t *testing.T) {
	cases := [][]string{
		nil,
		{"cc65wrap"},
		{"cc65wrap", "-P", "rp6502.toml"},
		{"cc65wrap", "-P", "rp6502.toml", "/bin/true"},
		{"cc65wrap", "-P", "--", "/bin/true"},
		{"cc65wrap", "--", "x", "/bin/true", "-O"},
	}
	for _, args := range cases {
		_, err := Parse(args)
		var cfgErr *toolchain.ConfigurationError
		if !errors.As(err, &cfgErr) {
			t.Fatalf("Parse(%v): expected ConfigurationError, got %v", args, err)
		}
		if toolchain.ExitCode(err) == 0 {
			t.Fatalf("Parse(%v): exit code must be non-zero", args)
		}
	}
}

func TestParseMissingCompiler(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "no-such-cc65")
	_, err := Parse([]string{"cc65wrap", "-P", "x", "--", missing, "-O"})
	var cfgErr *toolchain.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if !strings.Contains(err.Error(), "does not exist") {
		t.Fatalf("unexpected message: %v", err)
	}

	_, err = Parse([]string{"cc65wrap", "-P", "x", "--"})
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError for empty compiler, got %v", err)
	}
}

func TestRunMissingCompilerNeverExecutes(t *testing.T) {
	var stdout, stderr bytes.Buffer
	missing := filepath.Join(t.TempDir(), "cc65")
	err := Run(context.Background(), []string{"cc65wrap", "-P", "x", "--", missing}, Streams{Stdout: &stdout, Stderr: &stderr})
	if err == nil {
		t.Fatal("expected failure")
	}
	if stdout.Len() != 0 || stderr.Len() != 0 {
		t.Fatalf("nothing should be relayed, got stdout=%q stderr=%q", stdout.String(), stderr.String())
	}
}

func TestFilterArgs(t *testing.T) {
	tests := []struct {
		in   []string
		want []string
	}{
		{
			in:   []string{"-D__fastcall__=", "-O", "-D__cdecl__=", "main.c"},
			want: []string{"-O", "main.c"},
		},
		{
			in:   []string{"-O", "-D__cdecl__=", "-D__cdecl__=", "-Dfoo=bar", "-D__fastcall__="},
			want: []string{"-O", "-Dfoo=bar"},
		},
		{
			in:   []string{"-D__fastcall__", "-D__cdecl__=1", "x.c"},
			want: []string{"-D__fastcall__", "-D__cdecl__=1", "x.c"},
		},
		{
			in:   []string{"-D__fastcall__=", "-D__cdecl__="},
			want: []string{},
		},
	}
	for _, tt := range tests {
		got := FilterArgs(tt.in)
		if !reflect.DeepEqual(got, tt.want) {
			t.Fatalf("FilterArgs(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestRewriteDiagnostics(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"main.c(12): Error: Undefined symbol 'x'\n", "main.c(12): error: Undefined symbol 'x'\n"},
		{"main.c:7: Warning: Unused variable\n", "main.c:7: warning: Unused variable\n"},
		{"12: Error: message", "12: error: message"},
		{"Error: no line number\n", "Error: no line number\n"},
		{"a.c:1: Error: Error: twice\n", "a.c:1: error: Error: twice\n"},
		{"x.c:3: Note: something\n", "x.c:3: Note: something\n"},
		{"1: Error: a\n2: Warning: b\n", "1: error: a\n2: warning: b\n"},
		{"src/util.c(140): Warning: Parameter 'n' is never used\nsrc/util.c(141): Error: ';' expected\n",
			"src/util.c(140): warning: Parameter 'n' is never used\nsrc/util.c(141): error: ';' expected\n"},
		{"ld65: Error: Cannot open 'x.o'\n", "ld65: Error: Cannot open 'x.o'\n"},
		{"main.c(): Error: empty\n", "main.c(): Error: empty\n"},
	}
	for _, tt := range tests {
		if got := RewriteDiagnostics(tt.in); got != tt.want {
			t.Fatalf("RewriteDiagnostics(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRunEndToEndTrue(t *testing.T) {
	skipWithoutShell(t)
	if _, err := os.Stat("/bin/true"); err != nil {
		t.Skip("/bin/true not available")
	}
	var stdout, stderr bytes.Buffer
	args := []string{"cc65wrap", "-P", "script", "--", "/bin/true", "-D__fastcall__=", "-Dfoo=bar"}
	inv, err := Parse(args)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !reflect.DeepEqual(inv.Args, []string{"-Dfoo=bar"}) {
		t.Fatalf("forwarded %v, want [-Dfoo=bar]", inv.Args)
	}
	if err := Run(context.Background(), args, Streams{Stdout: &stdout, Stderr: &stderr}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if toolchain.ExitCode(nil) != 0 {
		t.Fatal("nil error must map to status 0")
	}
}

func TestRunForwardsFilteredArgsAndRelaysOutput(t *testing.T) {
	skipWithoutShell(t)
	compiler := writeCompiler(t, "main.c(3): Error: bad\nmain.c(4): Warning: meh\n", 0)
	var stdout, stderr bytes.Buffer
	args := []string{"cc65wrap", "-P", "rp6502.toml", "--", compiler,
		"-D__cdecl__=", "-t", "rp6502", "-D__fastcall__=", "-o", "main.s", "main.c"}
	if err := Run(context.Background(), args, Streams{Stdout: &stdout, Stderr: &stderr}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := "-t\nrp6502\n-o\nmain.s\nmain.c\n"
	if stdout.String() != want {
		t.Fatalf("stdout = %q, want %q", stdout.String(), want)
	}
	if stderr.String() != "main.c(3): error: bad\nmain.c(4): warning: meh\n" {
		t.Fatalf("stderr = %q", stderr.String())
	}
}

func TestRunPropagatesExitStatus(t *testing.T) {
	skipWithoutShell(t)
	for _, status := range []int{0, 1, 2, 7} {
		compiler := writeCompiler(t, "", status)
		err := Run(context.Background(), []string{"a", "b", "c", "--", compiler}, Streams{})
		if got := toolchain.ExitCode(err); got != status {
			t.Fatalf("status %d: ExitCode = %d (err %v)", status, got, err)
		}
		if status != 0 {
			var invErr *toolchain.InvocationError
			if !errors.As(err, &invErr) {
				t.Fatalf("status %d: expected InvocationError, got %T", status, err)
			}
		}
	}
}

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"rp6502/internal/project"
	"rp6502/internal/rom"
)

// runCLI executes the root command with args and returns its combined
// output and exit status. The command tree is shared, so flags left over from
// an earlier call are reset first.
func runCLI(t *testing.T, args ...string) (string, int) {
	t.Helper()
	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		resetFlags(rootCmd)
	})
	code := execute(args)
	return out.String(), code
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

func loadROM(t *testing.T, path string) *rom.ROM {
	t.Helper()
	r := rom.New()
	if err := r.AddROMFile(path); err != nil {
		t.Fatalf("AddROMFile(%s): %v", path, err)
	}
	return r
}

func TestCreateCommand(t *testing.T) {
	dir := t.TempDir()
	bin := filepath.Join(dir, "prog.bin")
	if err := os.WriteFile(bin, []byte{0xA9, 0x00, 0x60}, 0o600); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "prog.rp6502")

	output, code := runCLI(t, "create", "-o", out, "-a", "$0200", "-r", "0x200", "--help-line", "Demo", bin)
	if code != 0 {
		t.Fatalf("exit %d:\n%s", code, output)
	}
	for _, want := range []string{"[rp6502] Creating " + out, "[rp6502] Adding binary asset " + bin} {
		if !strings.Contains(output, want) {
			t.Errorf("output lacks %q:\n%s", want, output)
		}
	}
	r := loadROM(t, out)
	if r.At(0x200) != 0xA9 || r.At(0xFFFC) != 0x00 || r.At(0xFFFD) != 0x02 {
		t.Fatalf("unexpected ROM contents")
	}
	if help := r.Help(); len(help) != 1 || help[0] != "Demo" {
		t.Fatalf("help = %q", help)
	}

	// A second ROM merges the first one.
	bin2 := filepath.Join(dir, "data.bin")
	if err := os.WriteFile(bin2, []byte{0x00, 0x30, 0xEE}, 0o600); err != nil {
		t.Fatal(err)
	}
	merged := filepath.Join(dir, "merged.rp6502")
	output, code = runCLI(t, "create", "-o", merged, "-a", "file", bin2, out)
	if code != 0 {
		t.Fatalf("exit %d:\n%s", code, output)
	}
	r = loadROM(t, merged)
	if r.At(0x3000) != 0xEE || r.At(0x200) != 0xA9 {
		t.Fatalf("merged ROM is missing data")
	}
}

func TestCreateArgumentErrors(t *testing.T) {
	dir := t.TempDir()
	bin := filepath.Join(dir, "prog.bin")
	if err := os.WriteFile(bin, []byte{0x60}, 0o600); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "out.rp6502")

	if _, code := runCLI(t, "create", "-o", out, bin); code != 1 {
		t.Fatalf("missing -a: exit %d", code)
	}
	if _, code := runCLI(t, "create", "-a", "$200", bin); code != 1 {
		t.Fatalf("missing -o: exit %d", code)
	}
	if _, code := runCLI(t, "create", "-o", out, "-a", "$zz", bin); code != 1 {
		t.Fatalf("bad address: exit %d", code)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Fatalf("no ROM should be written, stat err=%v", err)
	}
}

func TestHelloCommand(t *testing.T) {
	out := filepath.Join(t.TempDir(), "hello.rp6502")
	output, code := runCLI(t, "hello", "-o", out, "-m", "Hi")
	if code != 0 {
		t.Fatalf("exit %d:\n%s", code, output)
	}
	r := loadROM(t, out)
	if r.At(0x200) != 0xA2 || r.At(0xFFFC) != 0x00 || r.At(0xFFFD) != 0x02 {
		t.Fatalf("unexpected hello ROM")
	}

	output, code = runCLI(t, "hello", "--listing")
	if code != 0 {
		t.Fatalf("listing exit %d:\n%s", code, output)
	}
	if !strings.Contains(output, "$0206  BD 1E 02  LDA $021E,X") {
		t.Fatalf("listing:\n%s", output)
	}

	output, code = runCLI(t, "hello", "--source", "--origin", "$1000")
	if code != 0 || !strings.Contains(output, ".org") {
		t.Fatalf("source exit %d:\n%s", code, output)
	}
}

func TestInitAndClean(t *testing.T) {
	t.Chdir(t.TempDir())
	output, code := runCLI(t, "init", "demo", "--asm", "-D", "/dev/ttyUSB0")
	if code != 0 {
		t.Fatalf("init exit %d:\n%s", code, output)
	}
	if !strings.Contains(output, "src/main.s") {
		t.Fatalf("init output:\n%s", output)
	}
	m, ok, err := project.LoadManifest("demo")
	if err != nil || !ok {
		t.Fatalf("LoadManifest: ok=%v err=%v", ok, err)
	}
	if m.Name() != "demo" || m.Config.Device.Port != "/dev/ttyUSB0" {
		t.Fatalf("manifest = %+v", m.Config)
	}
	if _, code := runCLI(t, "init", "demo"); code != 1 {
		t.Fatalf("second init should fail, exit %d", code)
	}

	if err := os.MkdirAll(filepath.Join("demo", "build", "obj"), 0o755); err != nil {
		t.Fatal(err)
	}
	output, code = runCLI(t, "clean", "demo")
	if code != 0 || !strings.Contains(output, "removed") {
		t.Fatalf("clean exit %d:\n%s", code, output)
	}
	output, _ = runCLI(t, "clean", "demo")
	if !strings.Contains(output, "build directory not found") {
		t.Fatalf("second clean:\n%s", output)
	}
}

func TestToolchainCommand(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires /bin/sh")
	}
	t.Chdir(t.TempDir())
	bin := t.TempDir()
	for _, tool := range []string{"cc65", "ca65", "ld65"} {
		script := "#!/bin/sh\necho /opt/cc65/share/cc65/target\n"
		if err := os.WriteFile(filepath.Join(bin, tool), []byte(script), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	t.Setenv("CC65_HOME", filepath.Dir(bin))
	t.Setenv("CC65", filepath.Join(bin, "cc65"))
	t.Setenv("CA65", filepath.Join(bin, "ca65"))
	t.Setenv("LD65", filepath.Join(bin, "ld65"))
	t.Setenv("AR65", "")
	t.Setenv("CC65WRAP", "")

	output, code := runCLI(t, "toolchain", "--format", "json")
	if code != 0 {
		t.Fatalf("exit %d:\n%s", code, output)
	}
	for _, want := range []string{`"include_dir": "/opt/cc65/share/cc65/include"`, `"-D__fastcall__="`, `"target": "rp6502"`} {
		if !strings.Contains(output, want) {
			t.Errorf("output lacks %s:\n%s", want, output)
		}
	}

	t.Setenv("CC65", filepath.Join(bin, "missing-cc65"))
	if _, code := runCLI(t, "toolchain"); code != 1 {
		t.Fatalf("missing compiler: exit %d", code)
	}
}

func TestVersionCommand(t *testing.T) {
	output, code := runCLI(t, "version", "--format", "json", "--hash")
	if code != 0 {
		t.Fatalf("exit %d:\n%s", code, output)
	}
	if !strings.Contains(output, `"tool": "rp6502"`) || !strings.Contains(output, `"git_commit"`) {
		t.Fatalf("version output:\n%s", output)
	}
	if _, code := runCLI(t, "version", "--format", "yaml"); code != 1 {
		t.Fatalf("bad format: exit %d", code)
	}
}

func TestDeviceArgumentsCheckedBeforeOpening(t *testing.T) {
	if _, code := runCLI(t, "upload", "-o", "X.BIN", "a.bin", "b.bin"); code != 1 {
		t.Fatalf("upload -o with two files: exit %d", code)
	}
	if _, code := runCLI(t, "run", "-r", "file", "x.rp6502"); code != 1 {
		t.Fatalf("run -r file: exit %d", code)
	}
}

func TestFlagsDoNotCarryOver(t *testing.T) {
	dir := t.TempDir()
	bin := filepath.Join(dir, "prog.bin")
	if err := os.WriteFile(bin, []byte{0x60}, 0o600); err != nil {
		t.Fatal(err)
	}
	first := filepath.Join(dir, "first.rp6502")
	if output, code := runCLI(t, "create", "-o", first, "-a", "$0200", "-r", "$0200", bin); code != 0 {
		t.Fatalf("exit %d:\n%s", code, output)
	}
	// -o and -r from the first run must not apply here.
	if _, code := runCLI(t, "create", "-a", "$0300", bin); code != 1 {
		t.Fatalf("create without -o after a full run: exit %d", code)
	}
	second := filepath.Join(dir, "second.rp6502")
	if output, code := runCLI(t, "create", "-o", second, "-a", "$0300", bin); code != 0 {
		t.Fatalf("exit %d:\n%s", code, output)
	}
	if r := loadROM(t, second); r.HasResetVector() {
		t.Fatal("reset vector leaked from an earlier invocation")
	}
}

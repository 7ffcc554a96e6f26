package buildpipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"

	"rp6502/internal/buildcache"
	"rp6502/internal/project"
	"rp6502/internal/rom"
	"rp6502/internal/toolchain"
)

// Shared prologue of the fake tools: picks out -o and -m, remembers the last
// argument and refuses editor-only defines.
const toolPrologue = `#!/bin/sh
out=""; map=""; prev=""; last=""
for a in "$@"; do
  [ "$prev" = "-o" ] && out="$a"
  [ "$prev" = "-m" ] && map="$a"
  case "$a" in *__fastcall__*|*__cdecl__*) echo "placation define leaked" >&2; exit 9;; esac
  prev="$a"; last="$a"
done
`

type fakeTools struct {
	dir string
	log string
}

func writeTool(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(toolPrologue+body), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func newFakeTools(t *testing.T) fakeTools {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires /bin/sh")
	}
	dir := t.TempDir()
	log := filepath.Join(dir, "calls.log")
	writeTool(t, dir, "cc65", `echo cc65 >> '`+log+`'
if grep -q FAIL "$last"; then printf '%s(3): Error: boom\n' "$last" >&2; exit 2; fi
cp "$last" "$out"
`)
	writeTool(t, dir, "ca65", `echo ca65 >> '`+log+`'
cp "$last" "$out"
`)
	writeTool(t, dir, "ld65", `echo ld65 >> '`+log+`'
printf '\251\000\140' > "$out"
echo "map" > "$map"
`)
	return fakeTools{dir: dir, log: log}
}

func (f fakeTools) options() toolchain.Options {
	return toolchain.Options{
		Compiler:  filepath.Join(f.dir, "cc65"),
		Assembler: filepath.Join(f.dir, "ca65"),
		Linker:    filepath.Join(f.dir, "ld65"),
		LookPath: func(name string) (string, error) {
			return "", &exec.Error{Name: name, Err: exec.ErrNotFound}
		},
		Query: func(context.Context, string, ...string) (string, error) {
			return "/opt/cc65/share/cc65/target\n", nil
		},
	}
}

func (f fakeTools) calls(t *testing.T, tool string) int {
	t.Helper()
	data, err := os.ReadFile(f.log)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		t.Fatal(err)
	}
	n := 0
	for _, line := range strings.Split(string(data), "\n") {
		if line == tool {
			n++
		}
	}
	return n
}

type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordingSink) OnEvent(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *recordingSink) find(file string, stage Stage, status Status) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ev := range s.events {
		if ev.File == file && ev.Stage == stage && ev.Status == status {
			return true
		}
	}
	return false
}

func newProject(t *testing.T, mainC string) *project.Manifest {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		project.ManifestName: "[package]\nname = \"demo\"\n\n[build]\nhelp = [\"Demo\"]\n",
		"src/main.c":         mainC,
		"src/util.s":         "rts\n",
	}
	for name, body := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	m, ok, err := project.LoadManifest(root)
	if err != nil || !ok {
		t.Fatalf("LoadManifest: ok=%v err=%v", ok, err)
	}
	return m
}

func TestBuildProducesROM(t *testing.T) {
	tools := newFakeTools(t)
	m := newProject(t, "int main(void) { return 0; }\n")
	cache, err := buildcache.OpenAt(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	sink := &recordingSink{}
	var stdout, stderr bytes.Buffer
	req := &BuildRequest{
		Manifest:      m,
		Toolchain:     tools.options(),
		Jobs:          2,
		PrintCommands: true,
		Cache:         cache,
		Progress:      sink,
		Stdout:        &stdout,
		Stderr:        &stderr,
	}

	res, err := Build(context.Background(), req)
	if err != nil {
		t.Fatalf("Build: %v\n%s", err, stderr.String())
	}
	if res.ROM != filepath.Join(m.OutputDir(), "demo.rp6502") {
		t.Fatalf("ROM = %q", res.ROM)
	}
	r := rom.New()
	if err := r.AddROMFile(res.ROM); err != nil {
		t.Fatalf("AddROMFile: %v", err)
	}
	if r.At(0x200) != 0xA9 || r.At(0x202) != 0x60 {
		t.Fatalf("program bytes = %02X %02X", r.At(0x200), r.At(0x202))
	}
	if r.At(0xFFFC) != 0x00 || r.At(0xFFFD) != 0x02 {
		t.Fatalf("reset vector = %02X%02X", r.At(0xFFFD), r.At(0xFFFC))
	}
	if help := r.Help(); len(help) != 1 || help[0] != "Demo" {
		t.Fatalf("help = %q", help)
	}
	if _, err := os.Stat(res.Map); err != nil {
		t.Fatalf("map file: %v", err)
	}
	asm := toolchain.AssemblyPath(m.ObjectPath(project.Source{Path: filepath.Join(m.Root, "src", "main.c"), Rel: "src/main.c"}))
	if _, err := os.Stat(asm); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("intermediate %s should be removed, stat err=%v", asm, err)
	}

	db, err := os.ReadFile(res.CompileDB)
	if err != nil {
		t.Fatalf("compile database: %v", err)
	}
	if !bytes.Contains(db, []byte(toolchain.DefineFastcall)) || !bytes.Contains(db, []byte("/opt/cc65/share/cc65/include")) {
		t.Fatalf("compile database lacks editor arguments:\n%s", db)
	}
	if !strings.Contains(stdout.String(), " -m ") {
		t.Fatalf("expected printed link command, got:\n%s", stdout.String())
	}
	if !sink.find("src/main.c", StageCompile, StatusDone) || !sink.find("", StagePackage, StatusDone) {
		t.Fatalf("missing progress events: %+v", sink.events)
	}

	// Unchanged sources come from the cache.
	res, err = Build(context.Background(), req)
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	for _, u := range res.Units {
		if !u.Cached {
			t.Fatalf("unit %s was recompiled", u.Source)
		}
	}
	if got := tools.calls(t, "cc65"); got != 1 {
		t.Fatalf("cc65 ran %d times, want 1", got)
	}
	if got := tools.calls(t, "ld65"); got != 2 {
		t.Fatalf("ld65 ran %d times, want 2", got)
	}
}

func TestBuildCompileFailure(t *testing.T) {
	tools := newFakeTools(t)
	m := newProject(t, "FAIL\n")
	sink := &recordingSink{}
	var stderr bytes.Buffer
	_, err := Build(context.Background(), &BuildRequest{
		Manifest:  m,
		Toolchain: tools.options(),
		Jobs:      1,
		Progress:  sink,
		Stderr:    &stderr,
	})
	var inv *toolchain.InvocationError
	if !errors.As(err, &inv) {
		t.Fatalf("expected InvocationError, got %T (%v)", err, err)
	}
	if toolchain.ExitCode(err) != 2 {
		t.Fatalf("exit code = %d, want 2", toolchain.ExitCode(err))
	}
	if !strings.Contains(stderr.String(), "(3): error: boom") {
		t.Fatalf("diagnostics not rewritten: %q", stderr.String())
	}
	if !sink.find("src/main.c", StageCompile, StatusError) {
		t.Fatalf("missing error event: %+v", sink.events)
	}
	if tools.calls(t, "ld65") != 0 {
		t.Fatal("linker ran after a failed compile")
	}
}

func TestBuildMissingToolchain(t *testing.T) {
	m := newProject(t, "int x;\n")
	_, err := Build(context.Background(), &BuildRequest{
		Manifest: m,
		Toolchain: toolchain.Options{
			LookPath: func(name string) (string, error) {
				return "", &exec.Error{Name: name, Err: exec.ErrNotFound}
			},
		},
	})
	var cfgErr *toolchain.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %T (%v)", err, err)
	}
}

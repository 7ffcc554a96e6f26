package buildcache

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"rp6502/internal/project"
)

func TestPutGet(t *testing.T) {
	c, err := OpenAt(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	key := project.DigestBytes([]byte("k"))
	if _, ok, err := c.Get(key); ok || err != nil {
		t.Fatalf("empty cache: ok=%v err=%v", ok, err)
	}
	in := &Entry{Source: "src/main.c", Object: []byte{0x55, 0x7A, 0x6E, 0x61}, Stderr: "main.c(1): warning: x\n"}
	if err := c.Put(key, in); err != nil {
		t.Fatalf("Put: %v", err)
	}
	out, ok, err := c.Get(key)
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if out.Source != in.Source || string(out.Object) != string(in.Object) || out.Stderr != in.Stderr {
		t.Fatalf("round trip mismatch: %+v", out)
	}
	if out.Schema != schemaVersion || out.Created == 0 {
		t.Fatalf("metadata not set: %+v", out)
	}
	matches, _ := filepath.Glob(filepath.Join(c.Dir(), "objects", "*", "tmp-*"))
	if len(matches) != 0 {
		t.Fatalf("temp files left behind: %v", matches)
	}
}

func TestNilCache(t *testing.T) {
	var c *Cache
	if err := c.Put(project.Digest{}, &Entry{}); err != nil {
		t.Fatal(err)
	}
	if _, ok, err := c.Get(project.Digest{}); ok || err != nil {
		t.Fatalf("nil cache must miss: ok=%v err=%v", ok, err)
	}
	if err := c.DropAll(); err != nil {
		t.Fatal(err)
	}
}

func TestCorruptEntry(t *testing.T) {
	c, err := OpenAt(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	key := project.DigestBytes([]byte("bad"))
	p := c.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte{0xC1}, 0o600); err != nil {
		t.Fatal(err)
	}
	if _, ok, err := c.Get(key); ok || err == nil {
		t.Fatalf("expected decode error, ok=%v err=%v", ok, err)
	}
}

func TestDropAll(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	c, err := OpenAt(dir)
	if err != nil {
		t.Fatal(err)
	}
	key := project.DigestBytes([]byte("k"))
	if err := c.Put(key, &Entry{Object: []byte{1}}); err != nil {
		t.Fatal(err)
	}
	if err := c.DropAll(); err != nil {
		t.Fatalf("DropAll: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("cache dir still present: %v", err)
	}
}

func TestOpenUsesUserCacheDir(t *testing.T) {
	base := t.TempDir()
	t.Setenv("XDG_CACHE_HOME", base)
	t.Setenv("HOME", base)
	t.Setenv("LocalAppData", base)
	want, err := os.UserCacheDir()
	if err != nil {
		t.Fatal(err)
	}
	if runtime.GOOS == "linux" && want != base {
		t.Fatalf("UserCacheDir = %q, want XDG_CACHE_HOME %q", want, base)
	}
	c, err := Open("rp6502")
	if err != nil {
		t.Fatal(err)
	}
	if c.Dir() != filepath.Join(want, "rp6502") {
		t.Fatalf("dir = %q", c.Dir())
	}
	if info, err := os.Stat(c.Dir()); err != nil || !info.IsDir() {
		t.Fatalf("cache dir not created: %v", err)
	}
}

func TestKey(t *testing.T) {
	src := project.DigestBytes([]byte("int main(void){}"))
	base := KeyInput{
		Source: src,
		Tools:  []string{"/usr/bin/cc65", "/usr/bin/ca65"},
		Argv:   [][]string{{"cc65", "-O", "main.c"}},
	}
	k := Key(base)
	if k != Key(base) {
		t.Fatal("Key is not deterministic")
	}
	changed := base
	changed.Argv = [][]string{{"cc65", "-Oi", "main.c"}}
	if Key(changed) == k {
		t.Fatal("flags must change the key")
	}
	changed = base
	changed.Headers = []project.Digest{project.DigestBytes([]byte("#define X 1"))}
	if Key(changed) == k {
		t.Fatal("headers must change the key")
	}
	changed = base
	changed.Tools = []string{"/opt/cc65/bin/cc65", "/usr/bin/ca65"}
	if Key(changed) == k {
		t.Fatal("tools must change the key")
	}
}

package project

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"rp6502/internal/toolchain"
)

// Source is one translation unit of the project.
type Source struct {
	Path string // absolute
	Rel  string // slash-separated, relative to the root or "ext/..." outside it
}

// IsC reports whether the unit goes through the C compiler.
func (s Source) IsC() bool { return toolchain.IsC(s.Path) }

// Sources expands [build].sources. Patterns are globs relative to the root;
// a literal path that does not exist is an error, a glob may match nothing.
func (m *Manifest) Sources() ([]Source, error) {
	seen := make(map[string]struct{})
	var out []Source
	for _, pattern := range m.Config.Build.Sources {
		full := m.resolve(pattern)
		var matches []string
		if strings.ContainsAny(pattern, "*?[") {
			var err error
			if matches, err = filepath.Glob(full); err != nil {
				return nil, fmt.Errorf("%s: bad source pattern %q: %w", m.Path, pattern, err)
			}
		} else {
			if _, err := os.Stat(full); err != nil {
				return nil, fmt.Errorf("%s: source %q: %w", m.Path, pattern, err)
			}
			matches = []string{full}
		}
		sort.Strings(matches)
		for _, path := range matches {
			if _, dup := seen[path]; dup {
				continue
			}
			if !toolchain.IsC(path) && !toolchain.IsAssembly(path) {
				if strings.ContainsAny(pattern, "*?[") {
					continue
				}
				return nil, fmt.Errorf("%s: %s is neither C nor assembly", m.Path, path)
			}
			seen[path] = struct{}{}
			out = append(out, Source{Path: path, Rel: m.relName(path)})
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s: [build].sources matched no files", m.Path)
	}
	return out, nil
}

// ObjectPath is where the object file of src is written.
func (m *Manifest) ObjectPath(src Source) string {
	rel := strings.TrimSuffix(src.Rel, filepath.Ext(src.Rel)) + ".o"
	return filepath.Join(m.OutputDir(), "obj", filepath.FromSlash(rel))
}

func (m *Manifest) relName(path string) string {
	if pathWithin(m.Root, path) {
		if rel, err := filepath.Rel(m.Root, path); err == nil {
			return filepath.ToSlash(rel)
		}
	}
	// keep objects of out-of-tree sources apart
	short := DigestBytes([]byte(filepath.Dir(path))).String()[:8]
	return "ext/" + short + "-" + filepath.Base(path)
}

// HeaderFiles lists the headers a compile may read: every .h and .inc file
// next to a source and in the include directories.
func (m *Manifest) HeaderFiles(sources []Source) []string {
	dirs := make(map[string]struct{})
	for _, s := range sources {
		dirs[filepath.Dir(s.Path)] = struct{}{}
	}
	for _, d := range m.IncludeDirs() {
		dirs[d] = struct{}{}
	}
	var out []string
	for dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			ext := strings.ToLower(filepath.Ext(e.Name()))
			if !e.IsDir() && (ext == ".h" || ext == ".inc") {
				out = append(out, filepath.Join(dir, e.Name()))
			}
		}
	}
	sort.Strings(out)
	return out
}

// Package toolchain describes the cc65 toolchain used to build RP6502 programs.
//
// A Config is resolved once by Discover and then passed by value to every
// consumer: the build pipeline, the wrapper and the editor integration. It
// records where the real tools live, how compile/link/archive steps are spelled
// and which extra defines keep editor analyzers from tripping over cc65's
// calling-convention keywords.
package toolchain

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

const (
	// Separator splits the wrapper's own launch arguments from the real compiler.
	Separator = "--"

	// DefineFastcall hides cc65's __fastcall__ keyword from editor analyzers.
	DefineFastcall = "-D__fastcall__="
	// DefineCdecl hides cc65's __cdecl__ keyword from editor analyzers.
	DefineCdecl = "-D__cdecl__="

	// DefaultTarget is the cc65 target system for the Picocomputer.
	DefaultTarget = "rp6502"
	// DefaultCPU selects 65C02 code generation.
	DefaultCPU = "65C02"
)

// Tool names as installed by cc65.
const (
	ToolCompiler  = "cc65"
	ToolAssembler = "ca65"
	ToolLinker    = "ld65"
	ToolArchiver  = "ar65"
	ToolWrapper   = "cc65wrap"
)

// PlacationDefines returns the defines injected for editor tooling only. The
// wrapper removes them again before the real compiler sees the command line.
func PlacationDefines() []string {
	return []string{DefineFastcall, DefineCdecl}
}

// IsPlacationDefine reports whether arg is one of PlacationDefines.
func IsPlacationDefine(arg string) bool {
	return arg == DefineFastcall || arg == DefineCdecl
}

// Options steers discovery. Empty fields fall back to the search path.
type Options struct {
	Home       string // cc65 installation root, tools are looked up in Home/bin first
	Compiler   string
	Assembler  string
	Linker     string
	Archiver   string
	Wrapper    string // cc65wrap launcher; empty disables the launcher
	Descriptor string // passed to the launcher as "-P <descriptor>"
	Target     string
	CPU        string

	// LookPath and Query are seams for tests; nil selects the real implementations.
	LookPath func(file string) (string, error)
	Query    func(ctx context.Context, compiler string, args ...string) (string, error)
}

// OptionsFromEnv seeds Options from CC65_HOME, CC65, CA65, LD65, AR65 and CC65WRAP.
func OptionsFromEnv() Options {
	return Options{
		Home:      os.Getenv("CC65_HOME"),
		Compiler:  os.Getenv("CC65"),
		Assembler: os.Getenv("CA65"),
		Linker:    os.Getenv("LD65"),
		Archiver:  os.Getenv("AR65"),
		Wrapper:   os.Getenv("CC65WRAP"),
	}
}

// Overlay returns o with every non-empty path or name in over applied on top.
// The test seams are taken from over when set.
func (o Options) Overlay(over Options) Options {
	pick := func(dst *string, v string) {
		if strings.TrimSpace(v) != "" {
			*dst = v
		}
	}
	pick(&o.Home, over.Home)
	pick(&o.Compiler, over.Compiler)
	pick(&o.Assembler, over.Assembler)
	pick(&o.Linker, over.Linker)
	pick(&o.Archiver, over.Archiver)
	pick(&o.Wrapper, over.Wrapper)
	pick(&o.Descriptor, over.Descriptor)
	pick(&o.Target, over.Target)
	pick(&o.CPU, over.CPU)
	if over.LookPath != nil {
		o.LookPath = over.LookPath
	}
	if over.Query != nil {
		o.Query = over.Query
	}
	return o
}

// Config is the resolved toolchain description. Treat it as read-only.
type Config struct {
	Compiler   string
	Assembler  string
	Linker     string
	Archiver   string
	Wrapper    string
	Descriptor string
	Target     string
	CPU        string

	// TargetPath is what "cc65 --print-target-path" reports.
	TargetPath string
	// IncludeDir is the absolute system include directory derived from TargetPath.
	IncludeDir string

	CompileTemplate  Template
	AssembleTemplate Template
	LinkTemplate     Template
	ArchiveTemplate  Template
}

// Discover locates the toolchain and derives the system include directory.
// A compiler, assembler or linker that cannot be found is a *ConfigurationError.
// The archiver is optional and only required by Archive.
func Discover(ctx context.Context, opts Options) (Config, error) {
	lookPath := opts.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	query := opts.Query
	if query == nil {
		query = queryTool
	}

	cfg := Config{
		Descriptor:       opts.Descriptor,
		Target:           valueOr(opts.Target, DefaultTarget),
		CPU:              valueOr(opts.CPU, DefaultCPU),
		CompileTemplate:  DefaultCompileTemplate,
		AssembleTemplate: DefaultAssembleTemplate,
		LinkTemplate:     DefaultLinkTemplate,
		ArchiveTemplate:  DefaultArchiveTemplate,
	}

	var err error
	if cfg.Compiler, err = findTool(lookPath, opts.Home, opts.Compiler, ToolCompiler); err != nil {
		return Config{}, configErr("locate "+ToolCompiler, err)
	}
	if cfg.Assembler, err = findTool(lookPath, opts.Home, opts.Assembler, ToolAssembler); err != nil {
		return Config{}, configErr("locate "+ToolAssembler, err)
	}
	if cfg.Linker, err = findTool(lookPath, opts.Home, opts.Linker, ToolLinker); err != nil {
		return Config{}, configErr("locate "+ToolLinker, err)
	}
	if archiver, archErr := findTool(lookPath, opts.Home, opts.Archiver, ToolArchiver); archErr == nil {
		cfg.Archiver = archiver
	}
	if opts.Wrapper != "" {
		if cfg.Wrapper, err = findTool(lookPath, "", opts.Wrapper, ToolWrapper); err != nil {
			return Config{}, configErr("locate "+ToolWrapper, err)
		}
	}

	out, err := query(ctx, cfg.Compiler, "--print-target-path")
	if err != nil {
		return Config{}, configErr("query target path", err)
	}
	cfg.TargetPath = strings.TrimSpace(out)
	if cfg.TargetPath == "" {
		return Config{}, configErr("query target path", fmt.Errorf("%s printed an empty target path", cfg.Compiler))
	}
	cfg.IncludeDir = includeDirFor(cfg.TargetPath)
	return cfg, nil
}

// Launcher is the command prefix the build uses in place of the compiler:
// the wrapper launch line when a wrapper is configured, the compiler otherwise.
func (c Config) Launcher() []string {
	if c.Wrapper == "" {
		return []string{c.Compiler}
	}
	descriptor := c.Descriptor
	if descriptor == "" {
		descriptor = "-"
	}
	return []string{c.Wrapper, "-P", descriptor, Separator, c.Compiler}
}

// includeDirFor resolves <target>/../include to an absolute, clean path.
func includeDirFor(targetPath string) string {
	dir := filepath.Join(targetPath, "..", "include")
	if abs, err := filepath.Abs(dir); err == nil {
		return abs
	}
	return filepath.Clean(dir)
}

func findTool(lookPath func(string) (string, error), home, override, name string) (string, error) {
	candidate := override
	if candidate == "" && home != "" {
		inHome := filepath.Join(home, "bin", name)
		if info, err := os.Stat(inHome); err == nil && !info.IsDir() {
			candidate = inHome
		}
	}
	if candidate == "" {
		candidate = name
	}
	if strings.ContainsRune(candidate, filepath.Separator) {
		info, err := os.Stat(candidate)
		if err != nil {
			return "", err
		}
		if info.IsDir() {
			return "", fmt.Errorf("%s is a directory", candidate)
		}
		return filepath.Abs(candidate)
	}
	path, err := lookPath(candidate)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", fmt.Errorf("%s not found in PATH; install cc65 or set CC65_HOME", candidate)
		}
		return "", err
	}
	return filepath.Abs(path)
}

func queryTool(ctx context.Context, tool string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, tool, args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return "", err
		}
		return "", fmt.Errorf("%s: %s", filepath.Base(tool), msg)
	}
	return string(out), nil
}

func valueOr(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

package project

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"rp6502/internal/rom"
	"rp6502/internal/toolchain"
)

// DefaultOrigin is where the rp6502 linker configuration places programs.
const DefaultOrigin = 0x0200

var (
	ErrPackageSectionMissing = errors.New("missing [package]")
	ErrPackageNameMissing    = errors.New("missing [package].name")
)

// Manifest is a loaded rp6502.toml.
type Manifest struct {
	Path   string
	Root   string
	Config Config
}

// Config mirrors the manifest tables.
type Config struct {
	Package   PackageConfig   `toml:"package"`
	Build     BuildConfig     `toml:"build"`
	Toolchain ToolchainConfig `toml:"toolchain"`
	Device    DeviceConfig    `toml:"device"`
}

type PackageConfig struct {
	Name    string `toml:"name"`
	Version string `toml:"version,omitempty"`
}

// BuildConfig drives "rp6502 build".
type BuildConfig struct {
	Sources   []string    `toml:"sources"`
	Address   rom.Address `toml:"address"`
	Reset     rom.Address `toml:"reset"`
	NMI       rom.Address `toml:"nmi,omitempty"`
	IRQ       rom.Address `toml:"irq,omitempty"`
	Config    string      `toml:"config,omitempty"` // ld65 -C configuration
	Libraries []string    `toml:"libraries,omitempty"`
	Defines   []string    `toml:"defines,omitempty"`
	Include   []string    `toml:"include,omitempty"`
	Flags     []string    `toml:"flags,omitempty"`
	ASFlags   []string    `toml:"asflags,omitempty"`
	Help      []string    `toml:"help,omitempty"`
	Output    string      `toml:"output,omitempty"`
}

// ToolchainConfig overrides tool discovery. Relative paths are resolved
// against the project root.
type ToolchainConfig struct {
	Home   string `toml:"home,omitempty"`
	CC65   string `toml:"cc65,omitempty"`
	CA65   string `toml:"ca65,omitempty"`
	LD65   string `toml:"ld65,omitempty"`
	AR65   string `toml:"ar65,omitempty"`
	Target string `toml:"target,omitempty"`
	CPU    string `toml:"cpu,omitempty"`
}

// DeviceConfig names the serial port of the board.
type DeviceConfig struct {
	Port string `toml:"port"`
}

// DefaultSources is used when [build].sources is absent.
var DefaultSources = []string{"src/*.c", "src/*.s"}

// LoadManifest finds rp6502.toml above startDir and loads it. ok is false
// when there is no manifest.
func LoadManifest(startDir string) (*Manifest, bool, error) {
	manifestPath, ok, err := FindManifest(startDir)
	if err != nil || !ok {
		return nil, ok, err
	}
	cfg, err := LoadConfig(manifestPath)
	if err != nil {
		return nil, true, err
	}
	return &Manifest{
		Path:   manifestPath,
		Root:   filepath.Dir(manifestPath),
		Config: cfg,
	}, true, nil
}

// LoadConfig decodes and validates one manifest file.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("%s: unknown key %s", path, undecoded[0])
	}
	if !meta.IsDefined("package") {
		return Config{}, fmt.Errorf("%s: %w", path, ErrPackageSectionMissing)
	}
	if !meta.IsDefined("package", "name") || strings.TrimSpace(cfg.Package.Name) == "" {
		return Config{}, fmt.Errorf("%s: %w", path, ErrPackageNameMissing)
	}
	if !meta.IsDefined("build", "sources") {
		cfg.Build.Sources = append([]string(nil), DefaultSources...)
	}
	if len(cfg.Build.Sources) == 0 {
		return Config{}, fmt.Errorf("%s: [build].sources is empty", path)
	}
	if cfg.Build.Address.IsZero() {
		cfg.Build.Address = rom.At(DefaultOrigin)
	}
	if !meta.IsDefined("build", "reset") && cfg.Build.Address.Set {
		cfg.Build.Reset = cfg.Build.Address
	}
	if strings.TrimSpace(cfg.Build.Output) == "" {
		cfg.Build.Output = "build"
	}
	if err := checkHelp(cfg.Build.Help); err != nil {
		return Config{}, fmt.Errorf("%s: [build].help: %w", path, err)
	}
	return cfg, nil
}

func checkHelp(lines []string) error {
	probe := rom.New()
	for _, line := range lines {
		if err := probe.AddHelp(line); err != nil {
			return err
		}
	}
	return nil
}

// Name returns the package name.
func (m *Manifest) Name() string {
	return strings.TrimSpace(m.Config.Package.Name)
}

// OutputDir is the absolute build directory.
func (m *Manifest) OutputDir() string {
	return m.resolve(m.Config.Build.Output)
}

// Addresses returns the ROM packaging addresses of the linked program.
func (m *Manifest) Addresses() rom.Addresses {
	b := m.Config.Build
	return rom.Addresses{Data: b.Address, Reset: b.Reset, NMI: b.NMI, IRQ: b.IRQ}
}

// IncludeDirs resolves [build].include against the root.
func (m *Manifest) IncludeDirs() []string {
	return m.resolveAll(m.Config.Build.Include)
}

// Libraries resolves [build].libraries. Bare names such as "rp6502.lib" are
// left for ld65 to search.
func (m *Manifest) Libraries() []string {
	out := make([]string, 0, len(m.Config.Build.Libraries))
	for _, lib := range m.Config.Build.Libraries {
		if strings.ContainsAny(lib, `/\`) {
			lib = m.resolve(lib)
		}
		out = append(out, lib)
	}
	return out
}

// LinkerConfig resolves [build].config, or "" for the target's default.
func (m *Manifest) LinkerConfig() string {
	if strings.TrimSpace(m.Config.Build.Config) == "" {
		return ""
	}
	return m.resolve(m.Config.Build.Config)
}

// ToolchainOptions converts [toolchain] into discovery options.
func (m *Manifest) ToolchainOptions() toolchain.Options {
	t := m.Config.Toolchain
	return toolchain.Options{
		Home:       m.resolveTool(t.Home),
		Compiler:   m.resolveTool(t.CC65),
		Assembler:  m.resolveTool(t.CA65),
		Linker:     m.resolveTool(t.LD65),
		Archiver:   m.resolveTool(t.AR65),
		Target:     t.Target,
		CPU:        t.CPU,
		Descriptor: m.Path,
	}
}

// resolveTool keeps bare tool names for PATH lookup.
func (m *Manifest) resolveTool(p string) string {
	p = strings.TrimSpace(p)
	if p == "" || !strings.ContainsAny(p, `/\`) {
		return p
	}
	return m.resolve(p)
}

func (m *Manifest) resolve(p string) string {
	p = filepath.FromSlash(strings.TrimSpace(p))
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(m.Root, p)
}

func (m *Manifest) resolveAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, p := range in {
		out = append(out, m.resolve(p))
	}
	return out
}

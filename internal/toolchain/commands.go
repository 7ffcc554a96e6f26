package toolchain

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Command is one tool invocation.
type Command struct {
	Path string
	Args []string
	// Wrapped marks a compiler step whose arguments still carry the
	// placation defines; it must run through the wrapper.
	Wrapped bool
}

// Argv returns Path followed by Args.
func (c Command) Argv() []string {
	return append([]string{c.Path}, c.Args...)
}

func (c Command) String() string {
	return strings.Join(c.Argv(), " ")
}

// CompileUnit describes one translation unit.
type CompileUnit struct {
	Source   string
	Object   string
	Defines  []string // NAME or NAME=VALUE
	Includes []string
	Flags    []string
	ASFlags  []string
}

// IsAssembly reports whether path is an assembler source.
func IsAssembly(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".s", ".asm", ".a65":
		return true
	}
	return false
}

// IsC reports whether path is a C source.
func IsC(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".c")
}

// AssemblyPath is where the compile step writes the intermediate assembly for object.
func AssemblyPath(object string) string {
	return strings.TrimSuffix(object, filepath.Ext(object)) + ".s"
}

// CompileCommands returns the steps producing u.Object. C sources get a
// compile step (Wrapped) and an assemble step; assembler sources only the latter.
func (c Config) CompileCommands(u CompileUnit) ([]Command, error) {
	if u.Source == "" || u.Object == "" {
		return nil, errors.New("compile unit needs a source and an object path")
	}
	includes := make([]string, 0, len(u.Includes))
	for _, dir := range u.Includes {
		includes = append(includes, "-I", dir)
	}
	vars := Vars{
		"SYSTEM":    {c.Target},
		"CPU":       {c.CPU},
		"ASSEMBLER": {c.Assembler},
		"INCLUDES":  includes,
		"ASFLAGS":   u.ASFlags,
		"OBJECT":    {u.Object},
	}

	var steps []Command
	switch {
	case IsAssembly(u.Source):
		vars["ASM"] = []string{u.Source}
	case IsC(u.Source):
		asm := AssemblyPath(u.Object)
		if filepath.Clean(asm) == filepath.Clean(u.Source) {
			return nil, fmt.Errorf("%s: object path would overwrite the source", u.Source)
		}
		defines := PlacationDefines()
		for _, d := range u.Defines {
			defines = append(defines, "-D"+d)
		}
		vars["LAUNCHER"] = []string{c.Compiler}
		vars["DEFINES"] = defines
		vars["FLAGS"] = u.Flags
		vars["ASM"] = []string{asm}
		vars["SOURCE"] = []string{u.Source}
		argv, err := c.CompileTemplate.Expand(vars)
		if err != nil {
			return nil, err
		}
		steps = append(steps, Command{Path: argv[0], Args: argv[1:], Wrapped: true})
	default:
		return nil, fmt.Errorf("%s: unsupported source type %q", u.Source, filepath.Ext(u.Source))
	}

	argv, err := c.AssembleTemplate.Expand(vars)
	if err != nil {
		return nil, err
	}
	steps = append(steps, Command{Path: argv[0], Args: argv[1:]})
	return steps, nil
}

// LinkUnit describes the final link.
type LinkUnit struct {
	Output    string
	Map       string
	Config    string // ld65 config file; empty links with "-t <target>"
	Objects   []string
	Libraries []string
}

// LinkCommand expands the link template. A map file is always requested.
func (c Config) LinkCommand(l LinkUnit) (Command, error) {
	if l.Output == "" || len(l.Objects) == 0 {
		return Command{}, errors.New("link needs an output and at least one object")
	}
	mapFile := l.Map
	if mapFile == "" {
		mapFile = l.Output + ".map"
	}
	linkFlags := []string{"-t", c.Target}
	if l.Config != "" {
		linkFlags = []string{"-C", l.Config}
	}
	libs := l.Libraries
	if len(libs) == 0 {
		libs = []string{c.Target + ".lib"}
	}
	argv, err := c.LinkTemplate.Expand(Vars{
		"LINKER":    {c.Linker},
		"LINKFLAGS": linkFlags,
		"MAP":       {mapFile},
		"OUTPUT":    {l.Output},
		"OBJECTS":   l.Objects,
		"LIBRARIES": libs,
	})
	if err != nil {
		return Command{}, err
	}
	return Command{Path: argv[0], Args: argv[1:]}, nil
}

// ArchiveCommand expands the archive template.
func (c Config) ArchiveCommand(output string, objects []string) (Command, error) {
	if c.Archiver == "" {
		return Command{}, configErr("locate "+ToolArchiver, errors.New("ar65 not found"))
	}
	argv, err := c.ArchiveTemplate.Expand(Vars{
		"ARCHIVER": {c.Archiver},
		"OUTPUT":   {output},
		"OBJECTS":  objects,
	})
	if err != nil {
		return Command{}, err
	}
	return Command{Path: argv[0], Args: argv[1:]}, nil
}

// EditorArgs is the compile line an editor should analyze for source: the
// launcher form including placation defines and the system include directory.
func (c Config) EditorArgs(u CompileUnit) ([]string, error) {
	steps, err := c.CompileCommands(u)
	if err != nil {
		return nil, err
	}
	first := steps[0]
	var argv []string
	if first.Wrapped {
		argv = append(c.Launcher(), first.Args...)
	} else {
		argv = first.Argv()
	}
	if c.IncludeDir != "" {
		argv = append(argv, "-I", c.IncludeDir)
	}
	return argv, nil
}

package buildpipeline

import (
	"encoding/json"
	"os"
	"path/filepath"

	"rp6502/internal/toolchain"
)

// CompileDBName is the clang-style compilation database written next to the
// build outputs for editor analyzers.
const CompileDBName = "compile_commands.json"

type compileDBEntry struct {
	Directory string   `json:"directory"`
	File      string   `json:"file"`
	Arguments []string `json:"arguments"`
	Output    string   `json:"output"`
}

// writeCompileDB records the editor form of every C unit, placation defines
// and system include directory included. Assembler units are listed with
// their ca65 line.
func writeCompileDB(path string, cfg toolchain.Config, units []plannedUnit) (string, error) {
	entries := make([]compileDBEntry, 0, len(units))
	for _, u := range units {
		args, err := cfg.EditorArgs(u.unit)
		if err != nil {
			return "", err
		}
		entries = append(entries, compileDBEntry{
			Directory: filepath.Dir(u.unit.Source),
			File:      u.unit.Source,
			Arguments: args,
			Output:    u.unit.Object,
		})
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o600); err != nil {
		return "", err
	}
	return path, nil
}

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"rp6502/internal/project"
)

// loadProjectManifest finds rp6502.toml at or above dir.
func loadProjectManifest(dir string) (*project.Manifest, bool, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, false, err
	}
	return project.LoadManifest(abs)
}

// requireProject is loadProjectManifest for commands that need a project.
func requireProject(dir string) (*project.Manifest, error) {
	m, ok, err := loadProjectManifest(dir)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("no %s found in %s or any parent directory (run \"rp6502 init\")", project.ManifestName, dir)
	}
	return m, nil
}

// projectArg returns the directory named by the optional [path] argument.
func projectArg(args []string) (string, error) {
	if len(args) == 0 || args[0] == "" {
		return ".", nil
	}
	info, err := os.Stat(args[0])
	if err != nil {
		return "", fmt.Errorf("failed to stat %q: %w", args[0], err)
	}
	if !info.IsDir() {
		return filepath.Dir(args[0]), nil
	}
	return args[0], nil
}

// displayPath shortens path relative to the working directory when possible.
func displayPath(path string) string {
	wd, err := os.Getwd()
	if err != nil {
		return path
	}
	rel, err := filepath.Rel(wd, path)
	if err != nil || filepath.IsAbs(rel) || len(rel) >= len(path) {
		return path
	}
	return rel
}

package buildcache

import (
	"rp6502/internal/project"
)

// KeyInput is everything that determines a compiled object.
type KeyInput struct {
	Source  project.Digest
	Headers []project.Digest // in a stable order
	Tools   []string         // tool paths, so a toolchain switch misses
	Argv    [][]string       // the commands, with output paths normalised
}

// Key derives the cache key.
func Key(in KeyInput) project.Digest {
	parts := make([]string, 0, len(in.Headers)+len(in.Tools)+8)
	for _, h := range in.Headers {
		parts = append(parts, "h:"+h.String())
	}
	for _, t := range in.Tools {
		parts = append(parts, "t:"+t)
	}
	for _, argv := range in.Argv {
		parts = append(parts, "cmd")
		parts = append(parts, argv...)
	}
	return project.Combine(in.Source, parts...)
}

package toolchain

import (
	"fmt"
	"regexp"
	"strings"
)

// Template is a whitespace separated command line with <NAME> placeholders,
// in the spirit of CMake's CMAKE_<LANG>_COMPILE_OBJECT rules.
//
// A field that is exactly one placeholder expands to all of its values (and
// disappears when there are none). Placeholders embedded in a larger field
// are replaced by their values joined with a space.
type Template string

// Default command templates for the 6502 target. cc65 only emits assembly, so
// a C unit takes two steps: compile to <ASM>, then assemble <ASM> to <OBJECT>.
const (
	DefaultCompileTemplate  Template = "<LAUNCHER> -t <SYSTEM> --cpu <CPU> <DEFINES> <INCLUDES> <FLAGS> -o <ASM> <SOURCE>"
	DefaultAssembleTemplate Template = "<ASSEMBLER> -t <SYSTEM> --cpu <CPU> <INCLUDES> <ASFLAGS> -o <OBJECT> <ASM>"
	DefaultLinkTemplate     Template = "<LINKER> <LINKFLAGS> -m <MAP> -o <OUTPUT> <OBJECTS> <LIBRARIES>"
	DefaultArchiveTemplate  Template = "<ARCHIVER> a <OUTPUT> <OBJECTS>"
)

// Vars maps placeholder names (without angle brackets) to their values.
type Vars map[string][]string

var placeholderRE = regexp.MustCompile(`<([A-Z][A-Z_]*)>`)

// Expand substitutes vars into the template. Any placeholder without a binding
// is an error so that a typo in a custom template fails loudly.
func (t Template) Expand(vars Vars) ([]string, error) {
	fields := strings.Fields(string(t))
	out := make([]string, 0, len(fields))
	for _, field := range fields {
		if m := placeholderRE.FindStringSubmatch(field); m != nil && m[0] == field {
			values, ok := vars[m[1]]
			if !ok {
				return nil, fmt.Errorf("template %q: unbound placeholder %s", t, field)
			}
			out = append(out, values...)
			continue
		}
		var missing string
		expanded := placeholderRE.ReplaceAllStringFunc(field, func(ph string) string {
			name := ph[1 : len(ph)-1]
			values, ok := vars[name]
			if !ok {
				missing = ph
				return ph
			}
			return strings.Join(values, " ")
		})
		if missing != "" {
			return nil, fmt.Errorf("template %q: unbound placeholder %s", t, missing)
		}
		if expanded != "" {
			out = append(out, expanded)
		}
	}
	return out, nil
}

package toolchain

import (
	"reflect"
	"strings"
	"testing"
)

func testConfig() Config {
	return Config{
		Compiler:         "/bin/cc65",
		Assembler:        "/bin/ca65",
		Linker:           "/bin/ld65",
		Archiver:         "/bin/ar65",
		Target:           DefaultTarget,
		CPU:              DefaultCPU,
		IncludeDir:       "/share/cc65/include",
		CompileTemplate:  DefaultCompileTemplate,
		AssembleTemplate: DefaultAssembleTemplate,
		LinkTemplate:     DefaultLinkTemplate,
		ArchiveTemplate:  DefaultArchiveTemplate,
	}
}

func TestCompileCommandsC(t *testing.T) {
	cfg := testConfig()
	steps, err := cfg.CompileCommands(CompileUnit{
		Source:   "src/main.c",
		Object:   "build/main.o",
		Defines:  []string{"NDEBUG"},
		Includes: []string{"inc"},
		Flags:    []string{"-O"},
	})
	if err != nil {
		t.Fatalf("CompileCommands: %v", err)
	}
	if len(steps) != 2 {
		t.Fatalf("got %d steps, want 2", len(steps))
	}
	compile := steps[0]
	if !compile.Wrapped {
		t.Fatal("compile step must be wrapped")
	}
	wantCompile := []string{"/bin/cc65", "-t", "rp6502", "--cpu", "65C02",
		"-D__fastcall__=", "-D__cdecl__=", "-DNDEBUG", "-I", "inc", "-O",
		"-o", "build/main.s", "src/main.c"}
	if !reflect.DeepEqual(compile.Argv(), wantCompile) {
		t.Fatalf("compile argv:\n got %v\nwant %v", compile.Argv(), wantCompile)
	}
	assemble := steps[1]
	if assemble.Wrapped {
		t.Fatal("assemble step must not be wrapped")
	}
	wantAsm := []string{"/bin/ca65", "-t", "rp6502", "--cpu", "65C02", "-I", "inc", "-o", "build/main.o", "build/main.s"}
	if !reflect.DeepEqual(assemble.Argv(), wantAsm) {
		t.Fatalf("assemble argv:\n got %v\nwant %v", assemble.Argv(), wantAsm)
	}
}

func TestCompileCommandsAssembly(t *testing.T) {
	cfg := testConfig()
	steps, err := cfg.CompileCommands(CompileUnit{Source: "src/boot.s", Object: "build/boot.o"})
	if err != nil {
		t.Fatalf("CompileCommands: %v", err)
	}
	if len(steps) != 1 {
		t.Fatalf("got %d steps, want 1", len(steps))
	}
	want := "/bin/ca65 -t rp6502 --cpu 65C02 -o build/boot.o src/boot.s"
	if got := steps[0].String(); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestCompileCommandsRejectsUnknownSource(t *testing.T) {
	cfg := testConfig()
	if _, err := cfg.CompileCommands(CompileUnit{Source: "x.rs", Object: "x.o"}); err == nil {
		t.Fatal("expected error for .rs source")
	}
	if _, err := cfg.CompileCommands(CompileUnit{Source: "x.c"}); err == nil {
		t.Fatal("expected error without object")
	}
	if _, err := cfg.CompileCommands(CompileUnit{Source: "x.s", Object: "x.o"}); err != nil {
		t.Fatalf("assembly source: %v", err)
	}
}

func TestLinkCommandMapFile(t *testing.T) {
	cfg := testConfig()
	cmd, err := cfg.LinkCommand(LinkUnit{
		Output:  "build/hello",
		Objects: []string{"build/main.o", "build/util.o"},
	})
	if err != nil {
		t.Fatalf("LinkCommand: %v", err)
	}
	want := "/bin/ld65 -t rp6502 -m build/hello.map -o build/hello build/main.o build/util.o rp6502.lib"
	if got := cmd.String(); got != want {
		t.Fatalf("got %q\nwant %q", got, want)
	}

	cmd, err = cfg.LinkCommand(LinkUnit{
		Output:    "out",
		Map:       "out.map",
		Config:    "rp6502.cfg",
		Objects:   []string{"a.o"},
		Libraries: []string{"custom.lib"},
	})
	if err != nil {
		t.Fatalf("LinkCommand: %v", err)
	}
	if got := cmd.String(); got != "/bin/ld65 -C rp6502.cfg -m out.map -o out a.o custom.lib" {
		t.Fatalf("got %q", got)
	}
}

func TestArchiveCommand(t *testing.T) {
	cfg := testConfig()
	cmd, err := cfg.ArchiveCommand("libx.lib", []string{"a.o", "b.o"})
	if err != nil {
		t.Fatalf("ArchiveCommand: %v", err)
	}
	if got := cmd.String(); got != "/bin/ar65 a libx.lib a.o b.o" {
		t.Fatalf("got %q", got)
	}
}

func TestEditorArgsIncludesSystemDir(t *testing.T) {
	cfg := testConfig()
	cfg.Wrapper = "/bin/cc65wrap"
	cfg.Descriptor = "rp6502.toml"
	argv, err := cfg.EditorArgs(CompileUnit{Source: "main.c", Object: "main.o"})
	if err != nil {
		t.Fatalf("EditorArgs: %v", err)
	}
	line := strings.Join(argv, " ")
	if !strings.HasPrefix(line, "/bin/cc65wrap -P rp6502.toml -- /bin/cc65 ") {
		t.Fatalf("unexpected launcher: %s", line)
	}
	if !strings.HasSuffix(line, "-I /share/cc65/include") {
		t.Fatalf("missing system include: %s", line)
	}
	if !strings.Contains(line, DefineFastcall) || !strings.Contains(line, DefineCdecl) {
		t.Fatalf("missing placation defines: %s", line)
	}
}

func TestTemplateExpand(t *testing.T) {
	tests := []struct {
		name    string
		tmpl    Template
		vars    Vars
		want    []string
		wantErr bool
	}{
		{
			name: "splice list",
			tmpl: "<CC> <FLAGS> x",
			vars: Vars{"CC": {"cc"}, "FLAGS": {"-a", "-b"}},
			want: []string{"cc", "-a", "-b", "x"},
		},
		{
			name: "empty list drops field",
			tmpl: "<CC> <FLAGS> x",
			vars: Vars{"CC": {"cc"}, "FLAGS": nil},
			want: []string{"cc", "x"},
		},
		{
			name: "embedded placeholder",
			tmpl: "-o <OBJECT>.s",
			vars: Vars{"OBJECT": {"main"}},
			want: []string{"-o", "main.s"},
		},
		{
			name:    "unbound",
			tmpl:    "<CC> <NOPE>",
			vars:    Vars{"CC": {"cc"}},
			wantErr: true,
		},
		{
			name:    "unbound embedded",
			tmpl:    "--map=<MAP>",
			vars:    Vars{},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.tmpl.Expand(tt.vars)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Expand: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

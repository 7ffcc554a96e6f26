package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"rp6502/internal/toolchain"
)

var toolchainCmd = &cobra.Command{
	Use:   "toolchain [path]",
	Short: "Show the resolved cc65 toolchain descriptor",
	Long: `Resolve the cc65 toolchain the way "rp6502 build" does and print it: tool
paths, the wrapper launch line, the system include directory, the command
templates and the editor-only defines. Use --format json for editor setup.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runToolchain,
}

func init() {
	toolchainCmd.Flags().String("format", "text", "output format (text|json)")
}

type toolchainPayload struct {
	Compiler   string   `json:"compiler"`
	Assembler  string   `json:"assembler"`
	Linker     string   `json:"linker"`
	Archiver   string   `json:"archiver,omitempty"`
	Launcher   []string `json:"launcher"`
	Descriptor string   `json:"descriptor,omitempty"`
	Target     string   `json:"target"`
	CPU        string   `json:"cpu"`
	TargetPath string   `json:"target_path"`
	IncludeDir string   `json:"include_dir"`
	Defines    []string `json:"defines"`
	Templates  struct {
		Compile  string `json:"compile"`
		Assemble string `json:"assemble"`
		Link     string `json:"link"`
		Archive  string `json:"archive"`
	} `json:"templates"`
}

func runToolchain(cmd *cobra.Command, args []string) error {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return err
	}
	format = strings.ToLower(strings.TrimSpace(format))
	if format != "text" && format != "json" {
		return fmt.Errorf("unsupported format %q (must be text or json)", format)
	}

	opts := toolchain.OptionsFromEnv()
	dir, err := projectArg(args)
	if err != nil {
		return err
	}
	if manifest, ok, err := loadProjectManifest(dir); err != nil {
		return err
	} else if ok {
		opts = manifest.ToolchainOptions().Overlay(opts)
	}
	cfg, err := toolchain.Discover(cmd.Context(), opts)
	if err != nil {
		return err
	}

	payload := toolchainPayload{
		Compiler:   cfg.Compiler,
		Assembler:  cfg.Assembler,
		Linker:     cfg.Linker,
		Archiver:   cfg.Archiver,
		Launcher:   cfg.Launcher(),
		Descriptor: cfg.Descriptor,
		Target:     cfg.Target,
		CPU:        cfg.CPU,
		TargetPath: cfg.TargetPath,
		IncludeDir: cfg.IncludeDir,
		Defines:    toolchain.PlacationDefines(),
	}
	payload.Templates.Compile = string(cfg.CompileTemplate)
	payload.Templates.Assemble = string(cfg.AssembleTemplate)
	payload.Templates.Link = string(cfg.LinkTemplate)
	payload.Templates.Archive = string(cfg.ArchiveTemplate)

	if format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(payload)
	}
	renderToolchainText(cmd.OutOrStdout(), payload)
	return nil
}

func renderToolchainText(out io.Writer, p toolchainPayload) {
	row := func(label, value string) {
		if value == "" {
			value = "(none)"
		}
		fmt.Fprintf(out, "%-12s %s\n", label+":", value)
	}
	row("compiler", p.Compiler)
	row("assembler", p.Assembler)
	row("linker", p.Linker)
	row("archiver", p.Archiver)
	row("launcher", strings.Join(p.Launcher, " "))
	row("descriptor", p.Descriptor)
	row("target", p.Target)
	row("cpu", p.CPU)
	row("target path", p.TargetPath)
	row("include", p.IncludeDir)
	row("defines", strings.Join(p.Defines, " "))
	fmt.Fprintln(out, "templates:")
	fmt.Fprintf(out, "  compile    %s\n", p.Templates.Compile)
	fmt.Fprintf(out, "  assemble   %s\n", p.Templates.Assemble)
	fmt.Fprintf(out, "  link       %s\n", p.Templates.Link)
	fmt.Fprintf(out, "  archive    %s\n", p.Templates.Archive)
}

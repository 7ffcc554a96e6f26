// Package buildpipeline turns an rp6502 project into a ROM: it resolves the
// cc65 toolchain, compiles every source through the compiler wrapper, links
// with ld65 and packages the result as a .rp6502 file.
package buildpipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"rp6502/internal/buildcache"
	"rp6502/internal/project"
	"rp6502/internal/rom"
	"rp6502/internal/toolchain"
	"rp6502/internal/trace"
)

// BuildRequest configures a project build.
type BuildRequest struct {
	Manifest *project.Manifest
	// Toolchain is laid over the manifest's [toolchain] table, typically
	// OptionsFromEnv plus any test seams.
	Toolchain toolchain.Options

	Jobs          int
	KeepTmp       bool
	PrintCommands bool
	Cache         *buildcache.Cache // nil disables caching
	Progress      ProgressSink

	// Stdout receives --print-commands lines, Stderr tool diagnostics.
	Stdout io.Writer
	Stderr io.Writer
}

// UnitResult describes one compiled source.
type UnitResult struct {
	Source string
	Object string
	Cached bool
}

// BuildResult captures build artefacts and timings.
type BuildResult struct {
	Toolchain toolchain.Config
	Units     []UnitResult
	Binary    string
	Map       string
	ROM       string
	CompileDB string
	Timings   Timings
}

// Build runs every stage. On failure the partial result is returned with
// the error; the failing stage has already been reported to Progress.
func Build(ctx context.Context, req *BuildRequest) (BuildResult, error) {
	var result BuildResult
	if req == nil || req.Manifest == nil {
		return result, fmt.Errorf("missing build request")
	}
	reqCopy := *req
	req = &reqCopy
	if req.Stdout == nil {
		req.Stdout = io.Discard
	}
	if req.Stderr == nil {
		req.Stderr = io.Discard
	}
	if req.Jobs <= 0 {
		req.Jobs = runtime.NumCPU()
	}
	m := req.Manifest

	ctx, span := trace.Start(ctx, trace.ScopeCommand, "build")
	span.WithExtra("package", m.Name())
	defer func() { span.End(m.Name()) }()

	sources, err := m.Sources()
	if err != nil {
		return result, err
	}
	files := make([]string, len(sources))
	for i, s := range sources {
		files[i] = s.Rel
	}
	emitQueued(req.Progress, files)

	// toolchain
	start := time.Now()
	emitStage(req.Progress, nil, StageToolchain, StatusWorking, nil, 0)
	opts := m.ToolchainOptions().Overlay(req.Toolchain)
	cfg, err := toolchain.Discover(ctx, opts)
	if err != nil {
		emitStage(req.Progress, nil, StageToolchain, StatusError, err, 0)
		return result, err
	}
	result.Toolchain = cfg
	r := &runner{req: req, cfg: cfg}
	result.Timings.Set(StageToolchain, time.Since(start))
	emitStage(req.Progress, nil, StageToolchain, StatusDone, nil, result.Timings.Duration(StageToolchain))

	outDir := m.OutputDir()
	if err := os.MkdirAll(outDir, 0o750); err != nil {
		return result, fmt.Errorf("failed to create output dir: %w", err)
	}

	// compile
	start = time.Now()
	units, err := planUnits(m, cfg, sources)
	if err != nil {
		emitStage(req.Progress, files, StageCompile, StatusError, err, 0)
		return result, err
	}
	result.CompileDB, err = writeCompileDB(filepath.Join(outDir, CompileDBName), cfg, units)
	if err != nil {
		return result, err
	}
	result.Units, err = r.compileAll(ctx, m, units)
	result.Timings.Set(StageCompile, time.Since(start))
	if err != nil {
		return result, err
	}

	// link
	start = time.Now()
	emitStage(req.Progress, nil, StageLink, StatusWorking, nil, 0)
	result.Binary = filepath.Join(outDir, m.Name())
	result.Map = result.Binary + ".map"
	objects := make([]string, len(units))
	for i, u := range units {
		objects[i] = u.unit.Object
	}
	link, err := cfg.LinkCommand(toolchain.LinkUnit{
		Output:    result.Binary,
		Map:       result.Map,
		Config:    m.LinkerConfig(),
		Objects:   objects,
		Libraries: m.Libraries(),
	})
	if err == nil {
		err = r.runAndRelay(ctx, link)
	}
	if err != nil {
		emitStage(req.Progress, nil, StageLink, StatusError, err, 0)
		return result, err
	}
	result.Timings.Set(StageLink, time.Since(start))
	emitStage(req.Progress, nil, StageLink, StatusDone, nil, result.Timings.Duration(StageLink))

	// package
	start = time.Now()
	emitStage(req.Progress, nil, StagePackage, StatusWorking, nil, 0)
	result.ROM = result.Binary + ".rp6502"
	if err := packageROM(m, result.Binary, result.ROM); err != nil {
		emitStage(req.Progress, nil, StagePackage, StatusError, err, 0)
		return result, err
	}
	result.Timings.Set(StagePackage, time.Since(start))
	emitStage(req.Progress, nil, StagePackage, StatusDone, nil, result.Timings.Duration(StagePackage))

	if !req.KeepTmp {
		for _, u := range units {
			if u.asm == "" {
				continue
			}
			if err := os.Remove(u.asm); err != nil && !errors.Is(err, os.ErrNotExist) {
				return result, fmt.Errorf("failed to clean intermediate %s: %w", u.asm, err)
			}
		}
	}
	return result, nil
}

// packageROM wraps the linked binary with the manifest's addresses and help.
func packageROM(m *project.Manifest, binary, out string) error {
	r := rom.New()
	for _, line := range m.Config.Build.Help {
		if err := r.AddHelp(line); err != nil {
			return err
		}
	}
	if err := r.AddBinaryFile(binary, m.Addresses()); err != nil {
		return err
	}
	return r.WriteFile(out)
}

func emitQueued(sink ProgressSink, files []string) {
	if sink == nil {
		return
	}
	for _, file := range files {
		sink.OnEvent(Event{File: file, Stage: StageCompile, Status: StatusQueued})
	}
}

func emitStage(sink ProgressSink, files []string, stage Stage, status Status, err error, elapsed time.Duration) {
	if sink == nil {
		return
	}
	sink.OnEvent(Event{Stage: stage, Status: status, Err: err, Elapsed: elapsed})
	for _, file := range files {
		sink.OnEvent(Event{File: file, Stage: stage, Status: status, Err: err, Elapsed: elapsed})
	}
}

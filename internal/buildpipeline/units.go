package buildpipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"rp6502/internal/buildcache"
	"rp6502/internal/project"
	"rp6502/internal/toolchain"
	"rp6502/internal/trace"
	"rp6502/internal/wrapper"
)

type plannedUnit struct {
	src   project.Source
	unit  toolchain.CompileUnit
	steps []toolchain.Command
	asm   string // intermediate assembly of a C source
}

func planUnits(m *project.Manifest, cfg toolchain.Config, sources []project.Source) ([]plannedUnit, error) {
	units := make([]plannedUnit, 0, len(sources))
	for _, src := range sources {
		u := toolchain.CompileUnit{
			Source:   src.Path,
			Object:   m.ObjectPath(src),
			Defines:  m.Config.Build.Defines,
			Includes: m.IncludeDirs(),
			Flags:    m.Config.Build.Flags,
			ASFlags:  m.Config.Build.ASFlags,
		}
		steps, err := cfg.CompileCommands(u)
		if err != nil {
			return nil, err
		}
		p := plannedUnit{src: src, unit: u, steps: steps}
		if src.IsC() {
			p.asm = toolchain.AssemblyPath(u.Object)
		}
		units = append(units, p)
	}
	return units, nil
}

// runner executes tool commands for one build.
type runner struct {
	req *BuildRequest
	cfg toolchain.Config
	mu  sync.Mutex // serialises writes to req.Stdout and req.Stderr
}

func (r *runner) compileAll(ctx context.Context, m *project.Manifest, units []plannedUnit) ([]UnitResult, error) {
	ctx, span := trace.Start(ctx, trace.ScopeStage, "compile")
	defer span.End("")

	sources := make([]project.Source, len(units))
	for i, u := range units {
		sources[i] = u.src
	}
	headers, err := digestAll(m.HeaderFiles(sources))
	if err != nil {
		emitStage(r.req.Progress, nil, StageCompile, StatusError, err, 0)
		return nil, err
	}

	start := time.Now()
	emitStage(r.req.Progress, nil, StageCompile, StatusWorking, nil, 0)
	results := make([]UnitResult, len(units))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.req.Jobs)
	for i := range units {
		g.Go(func() error {
			res, err := r.compileUnit(gctx, units[i], headers)
			results[i] = res
			return err
		})
	}
	if err := g.Wait(); err != nil {
		emitStage(r.req.Progress, nil, StageCompile, StatusError, err, 0)
		return results, err
	}
	emitStage(r.req.Progress, nil, StageCompile, StatusDone, nil, time.Since(start))
	return results, nil
}

func (r *runner) compileUnit(ctx context.Context, u plannedUnit, headers []project.Digest) (UnitResult, error) {
	res := UnitResult{Source: u.src.Path, Object: u.unit.Object}
	ctx, span := trace.Start(ctx, trace.ScopeUnit, u.src.Rel)
	start := time.Now()
	sink := r.req.Progress
	fail := func(err error) (UnitResult, error) {
		span.End(err.Error())
		if sink != nil {
			sink.OnEvent(Event{File: u.src.Rel, Stage: StageCompile, Status: StatusError, Err: err, Elapsed: time.Since(start)})
		}
		return res, err
	}
	if sink != nil {
		sink.OnEvent(Event{File: u.src.Rel, Stage: StageCompile, Status: StatusWorking})
	}
	if err := os.MkdirAll(filepath.Dir(u.unit.Object), 0o750); err != nil {
		return fail(err)
	}

	srcDigest, err := project.DigestFile(u.src.Path)
	if err != nil {
		return fail(err)
	}
	argv := make([][]string, len(u.steps))
	for i, step := range u.steps {
		argv[i] = step.Argv()
	}
	key := buildcache.Key(buildcache.KeyInput{
		Source:  srcDigest,
		Headers: headers,
		Tools:   []string{r.cfg.Compiler, r.cfg.Assembler, r.cfg.Wrapper},
		Argv:    argv,
	})

	if entry, ok, cacheErr := r.req.Cache.Get(key); cacheErr == nil && ok {
		if err := os.WriteFile(u.unit.Object, entry.Object, 0o600); err != nil {
			return fail(err)
		}
		r.relay(entry.Stderr)
		res.Cached = true
		span.WithExtra("cache", "hit")
		span.End("cached")
		if sink != nil {
			sink.OnEvent(Event{File: u.src.Rel, Stage: StageCompile, Status: StatusCached, Elapsed: time.Since(start)})
		}
		return res, nil
	}

	var diag bytes.Buffer
	for _, step := range u.steps {
		if err := r.run(ctx, step, &diag); err != nil {
			r.relay(diag.String())
			return fail(fmt.Errorf("%s: %w", u.src.Rel, err))
		}
	}
	r.relay(diag.String())

	if r.req.Cache != nil {
		object, err := os.ReadFile(u.unit.Object)
		if err != nil {
			return fail(err)
		}
		if err := r.req.Cache.Put(key, &buildcache.Entry{Source: u.src.Rel, Object: object, Stderr: diag.String()}); err != nil {
			r.relay(fmt.Sprintf("warning: build cache: %v\n", err))
		}
	}
	span.End("ok")
	if sink != nil {
		sink.OnEvent(Event{File: u.src.Rel, Stage: StageCompile, Status: StatusDone, Elapsed: time.Since(start)})
	}
	return res, nil
}

// run executes one command, collecting its output in out. A Wrapped step
// goes through the configured cc65wrap binary, or through the in-process
// wrapper when none is configured, so the compiler never sees the
// placation defines.
func (r *runner) run(ctx context.Context, cmd toolchain.Command, out io.Writer) error {
	if cmd.Wrapped {
		launch := append(r.cfg.Launcher(), cmd.Args...)
		r.printCommand(launch)
		if r.cfg.Wrapper == "" {
			descriptor := r.cfg.Descriptor
			if descriptor == "" {
				descriptor = "-"
			}
			args := append([]string{"rp6502", "-P", descriptor, toolchain.Separator, cmd.Path}, cmd.Args...)
			return wrapper.Run(ctx, args, wrapper.Streams{Stdout: out, Stderr: out})
		}
		return execTool(ctx, launch, out, false)
	}
	r.printCommand(cmd.Argv())
	return execTool(ctx, cmd.Argv(), out, true)
}

// runAndRelay runs cmd and relays its output right away.
func (r *runner) runAndRelay(ctx context.Context, cmd toolchain.Command) error {
	var out bytes.Buffer
	err := r.run(ctx, cmd, &out)
	r.relay(out.String())
	return err
}

func (r *runner) relay(text string) {
	if text == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, _ = io.WriteString(r.req.Stderr, text)
}

func (r *runner) printCommand(argv []string) {
	if !r.req.PrintCommands {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.req.Stdout, strings.Join(argv, " "))
}

// execTool runs argv. ca65 and ld65 print the same "Error:" tags as cc65, so
// their stderr is rewritten the way the wrapper does it when rewrite is set.
func execTool(ctx context.Context, argv []string, out io.Writer, rewrite bool) error {
	tool := filepath.Base(argv[0])
	ctx, span := trace.Start(ctx, trace.ScopeTool, "exec:"+tool)
	// #nosec G204 -- tool paths come from toolchain discovery
	c := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var stderr bytes.Buffer
	c.Stdout = out
	c.Stderr = &stderr
	runErr := c.Run()
	text := stderr.String()
	if rewrite {
		text = wrapper.RewriteDiagnostics(text)
	}
	_, _ = io.WriteString(out, text)

	var exitErr *exec.ExitError
	switch {
	case runErr == nil:
		span.End("ok")
		return nil
	case errors.As(runErr, &exitErr):
		status := exitErr.ExitCode()
		if status <= 0 {
			status = 1
		}
		span.WithExtra("status", fmt.Sprint(status))
		span.End("failed")
		return &toolchain.InvocationError{Tool: tool, Status: status}
	default:
		span.End(runErr.Error())
		return fmt.Errorf("%s: %w", tool, runErr)
	}
}

func digestAll(paths []string) ([]project.Digest, error) {
	out := make([]project.Digest, 0, len(paths))
	for _, p := range paths {
		d, err := project.DigestFile(p)
		if err != nil {
			return nil, err
		}
		out = append(out, project.Combine(d, p))
	}
	return out, nil
}

// Package wrapper stands in for the cc65 compiler.
//
// Editors analyse the build's compile lines, including the defines that hide
// cc65's calling-convention keywords. The real compiler must not see those
// defines, so the build launches the compiler through this wrapper:
//
//	cc65wrap -P <descriptor> -- /path/to/cc65 <compiler arguments>
//
// The wrapper drops the placation defines, runs the compiler, relays its
// stdout untouched, lower-cases the severity tags in its stderr so editor
// problem matchers pick them up, and exits with the compiler's status.
package wrapper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"rp6502/internal/toolchain"
	"rp6502/internal/trace"
)

// Argument positions of the launch line.
const (
	separatorIndex = 3
	compilerIndex  = 4
)

// Invocation is a parsed launch line.
type Invocation struct {
	Self     []string // the launching tool's own identity, positions 0..2
	Compiler string
	Args     []string // compiler arguments with placation defines removed
	Dropped  int      // how many placation defines were removed
}

// Parse validates a launch line and filters the compiler arguments. A
// missing separator or a compiler path that does not exist is a
// *toolchain.ConfigurationError; nothing has been executed at that point.
func Parse(args []string) (Invocation, error) {
	if len(args) <= separatorIndex || args[separatorIndex] != toolchain.Separator {
		return Invocation{}, &toolchain.ConfigurationError{
			Op:  "wrapper",
			Err: fmt.Errorf("expected %q at argument %d: usage: <tool> -P <descriptor> -- <compiler> [args...]", toolchain.Separator, separatorIndex),
		}
	}
	if len(args) <= compilerIndex || strings.TrimSpace(args[compilerIndex]) == "" {
		return Invocation{}, &toolchain.ConfigurationError{Op: "wrapper", Err: errors.New("missing compiler path after separator")}
	}
	compiler := args[compilerIndex]
	info, err := os.Stat(compiler)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			err = fmt.Errorf("compiler %s does not exist", compiler)
		}
		return Invocation{}, &toolchain.ConfigurationError{Op: "wrapper", Err: err}
	}
	if info.IsDir() {
		return Invocation{}, &toolchain.ConfigurationError{Op: "wrapper", Err: fmt.Errorf("compiler %s is a directory", compiler)}
	}

	rest := args[compilerIndex+1:]
	filtered := FilterArgs(rest)
	return Invocation{
		Self:     append([]string(nil), args[:separatorIndex]...),
		Compiler: compiler,
		Args:     filtered,
		Dropped:  len(rest) - len(filtered),
	}, nil
}

// FilterArgs returns args without any placation define, order preserved.
func FilterArgs(args []string) []string {
	out := make([]string, 0, len(args))
	for _, arg := range args {
		if toolchain.IsPlacationDefine(arg) {
			continue
		}
		out = append(out, arg)
	}
	return out
}

// cc65 reports "file(12): Error:", ca65 and others "file:12: Error:".
var severityRE = regexp.MustCompile(`(\d+\)?): (Error|Warning):`)

// RewriteDiagnostics lower-cases "Error:" and "Warning:" when they follow a
// "<line>:" or "(<line>):" location. Everything else is left as is.
func RewriteDiagnostics(text string) string {
	return severityRE.ReplaceAllStringFunc(text, func(m string) string {
		sub := severityRE.FindStringSubmatch(m)
		return sub[1] + ": " + strings.ToLower(sub[2]) + ":"
	})
}

// Streams are the standard streams relayed to and from the compiler.
type Streams struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Run parses args, runs the compiler and relays its output. It returns nil
// when the compiler exits with status 0 and a *toolchain.InvocationError
// carrying the status otherwise.
func Run(ctx context.Context, args []string, streams Streams) error {
	ctx, span := trace.Start(ctx, trace.ScopeUnit, "wrap")
	inv, err := Parse(args)
	if err != nil {
		span.End(err.Error())
		return err
	}
	span.WithExtra("dropped", strconv.Itoa(inv.Dropped))
	err = Exec(ctx, inv, streams)
	span.WithExtra("status", strconv.Itoa(toolchain.ExitCode(err))).End("")
	return err
}

// Exec runs an already parsed invocation.
func Exec(ctx context.Context, inv Invocation, streams Streams) error {
	_, span := trace.Start(ctx, trace.ScopeTool, "exec:"+filepath.Base(inv.Compiler))
	defer span.End(strings.Join(inv.Args, " "))

	// #nosec G204 -- running the configured compiler is the whole point
	cmd := exec.CommandContext(ctx, inv.Compiler, inv.Args...)
	cmd.Stdin = streams.Stdin
	cmd.Stdout = streams.Stdout
	if cmd.Stdout == nil {
		cmd.Stdout = io.Discard
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	if stderr.Len() > 0 && streams.Stderr != nil {
		if _, err := io.WriteString(streams.Stderr, RewriteDiagnostics(stderr.String())); err != nil && runErr == nil {
			return fmt.Errorf("relay compiler diagnostics: %w", err)
		}
	}
	if runErr == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		status := exitErr.ExitCode()
		if status <= 0 {
			status = 1
		}
		return &toolchain.InvocationError{Tool: inv.Compiler, Status: status}
	}
	return &toolchain.ConfigurationError{Op: "start " + filepath.Base(inv.Compiler), Err: runErr}
}

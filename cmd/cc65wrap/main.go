// Command cc65wrap launches the cc65 compiler on behalf of a build system.
//
//	cc65wrap -P <descriptor> -- <path to cc65> [compiler arguments]
//
// It removes the editor-only defines from the compiler arguments, runs the
// compiler, rewrites "Error:"/"Warning:" tags to lower case on stderr and
// exits with the compiler's status. It has no flags of its own. Set
// RP6502_TRACE to a file (or "-") to trace invocations.
package main

import (
	"context"
	"os"
	"os/signal"

	"rp6502/internal/console"
	"rp6502/internal/toolchain"
	"rp6502/internal/trace"
	"rp6502/internal/wrapper"
)

const prog = "cc65wrap"

func main() {
	os.Exit(run(os.Args))
}

func run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	tracer, err := trace.FromEnv(os.Getenv("RP6502_TRACE"))
	if err != nil {
		console.Warnf(os.Stderr, prog, "%v", err)
		tracer = trace.Nop
	}
	defer func() {
		if closeErr := tracer.Close(); closeErr != nil {
			console.Warnf(os.Stderr, prog, "trace: %v", closeErr)
		}
	}()
	ctx = trace.WithTracer(ctx, tracer)

	err = wrapper.Run(ctx, args, wrapper.Streams{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	})
	if err == nil {
		return 0
	}
	console.Errorf(os.Stderr, prog, "%v", err)
	return toolchain.ExitCode(err)
}

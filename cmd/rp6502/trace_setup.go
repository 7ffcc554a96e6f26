package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"rp6502/internal/trace"
)

// setupTracing attaches a tracer to the command context according to the
// trace flags. The returned function flushes it; given the command's error it
// also dumps the in-memory ring, when one was requested.
func setupTracing(cmd *cobra.Command) (func(error), error) {
	root := cmd.Root()

	traceOutput, err := root.PersistentFlags().GetString("trace")
	if err != nil {
		return nil, fmt.Errorf("failed to get trace flag: %w", err)
	}
	levelStr, err := root.PersistentFlags().GetString("trace-level")
	if err != nil {
		return nil, fmt.Errorf("failed to get trace-level flag: %w", err)
	}
	ringSize, err := root.PersistentFlags().GetInt("trace-ring")
	if err != nil {
		return nil, fmt.Errorf("failed to get trace-ring flag: %w", err)
	}

	level, err := trace.ParseLevel(levelStr)
	if err != nil {
		return nil, err
	}
	// An output without an explicit level traces stages.
	if level == trace.LevelOff && traceOutput != "" {
		level = trace.LevelStage
	}

	tracers := make([]trace.Tracer, 0, 2)
	if level != trace.LevelOff {
		stream, err := trace.New(trace.Config{Level: level, OutputPath: traceOutput})
		if err != nil {
			return nil, fmt.Errorf("failed to create tracer: %w", err)
		}
		tracers = append(tracers, stream)
	}
	var ring *trace.RingTracer
	if ringSize > 0 {
		ring = trace.NewRingTracer(ringSize, trace.LevelDebug)
		tracers = append(tracers, ring)
	}

	var tracer trace.Tracer
	switch len(tracers) {
	case 0:
		tracer = trace.Nop
	case 1:
		tracer = tracers[0]
	default:
		tracer = trace.NewTee(trace.LevelDebug, tracers...)
	}
	ctx := trace.WithTracer(cmd.Context(), tracer)
	cmd.SetContext(ctx)

	return func(cmdErr error) {
		if cmdErr != nil && ring != nil {
			fmt.Fprintf(os.Stderr, "last %d trace events:\n", ring.Len())
			if err := ring.Dump(os.Stderr, trace.FormatText); err != nil {
				fmt.Fprintf(os.Stderr, "trace: dump error: %v\n", err)
			}
		}
		if err := tracer.Flush(); err != nil {
			fmt.Fprintf(os.Stderr, "trace: flush error: %v\n", err)
		}
		if err := tracer.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "trace: close error: %v\n", err)
		}
	}, nil
}

package main

import (
	"io"

	"rp6502/internal/buildpipeline"
	"rp6502/internal/observ"
)

// printStageTimings prints the recorded build stages in execution order.
func printStageTimings(out io.Writer, timings buildpipeline.Timings) {
	timer := observ.NewTimer()
	for _, stage := range buildpipeline.Stages {
		if timings.Has(stage) {
			timer.Add(string(stage), timings.Duration(stage), "")
		}
	}
	_, _ = io.WriteString(out, timer.Summary())
}

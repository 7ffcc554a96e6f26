// Package trace records what the rp6502 tools do, for diagnosing slow or
// stuck builds and misbehaving compiler invocations.
//
// Enable it on the CLI:
//
//	rp6502 build --trace=- --trace-level=unit
//
// or for the wrapper, which has no flags of its own:
//
//	RP6502_TRACE=/tmp/wrap.ndjson cc65wrap -P rp6502.toml -- cc65 ...
//
// Levels, from quiet to chatty: off, stage, unit, debug. Events carry a
// scope (command, stage, unit, tool) and a level admits every scope at or
// above its own granularity.
//
// Tracers travel through context:
//
//	ctx = trace.WithTracer(ctx, tracer)
//	span := trace.Begin(trace.FromContext(ctx), trace.ScopeStage, "link", 0)
//	defer span.End("")
package trace

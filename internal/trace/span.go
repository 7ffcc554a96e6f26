package trace

import (
	"strconv"
	"sync/atomic"
	"time"
)

var seq, spanIDs atomic.Uint64

// NextSeq numbers events across every tracer of the process.
func NextSeq() uint64 { return seq.Add(1) }

// NextSpanID returns a fresh, non-zero span ID.
func NextSpanID() uint64 { return spanIDs.Add(1) }

// Span is an open begin/end pair. A Span from a disabled tracer is inert, so
// callers never need to check before calling End or WithExtra.
type Span struct {
	tracer  Tracer
	base    Event
	started time.Time
}

// Begin emits the begin event of a span under parent (0 for a root).
func Begin(t Tracer, scope Scope, name string, parent uint64) *Span {
	if !admits(t, scope) {
		return &Span{}
	}
	s := &Span{
		tracer:  t,
		started: time.Now(),
		base:    Event{Scope: scope, SpanID: NextSpanID(), ParentID: parent, Name: name},
	}
	s.emit(KindSpanBegin, "", nil)
	return s
}

// End emits the end event, with the elapsed milliseconds under "ms", and
// returns the elapsed time.
func (s *Span) End(detail string) time.Duration {
	if s == nil || s.tracer == nil {
		return 0
	}
	elapsed := time.Since(s.started)
	extra := s.base.Extra
	if extra == nil {
		extra = map[string]string{}
	}
	extra["ms"] = strconv.FormatFloat(elapsed.Seconds()*1000, 'f', 2, 64)
	s.emit(KindSpanEnd, detail, extra)
	return elapsed
}

// WithExtra records a key for the end event.
func (s *Span) WithExtra(key, value string) *Span {
	if s == nil || s.tracer == nil {
		return s
	}
	if s.base.Extra == nil {
		s.base.Extra = map[string]string{}
	}
	s.base.Extra[key] = value
	return s
}

// ID is 0 for inert spans.
func (s *Span) ID() uint64 {
	if s == nil {
		return 0
	}
	return s.base.SpanID
}

func (s *Span) emit(kind Kind, detail string, extra map[string]string) {
	ev := s.base
	ev.Time = time.Now()
	ev.Seq = NextSeq()
	ev.Kind = kind
	ev.Detail = detail
	ev.Extra = extra
	s.tracer.Emit(&ev)
}

// Point emits an instant event such as a monitor reply or a cache hit.
func Point(t Tracer, scope Scope, name, detail string, parent uint64) {
	if !admits(t, scope) {
		return
	}
	t.Emit(&Event{
		Time:     time.Now(),
		Seq:      NextSeq(),
		Kind:     KindPoint,
		Scope:    scope,
		ParentID: parent,
		Name:     name,
		Detail:   detail,
	})
}

func admits(t Tracer, scope Scope) bool {
	return t != nil && t.Enabled() && t.Level().ShouldEmit(scope)
}

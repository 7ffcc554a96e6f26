package trace

import "errors"

// Tee copies every event to each of its tracers. The rp6502 CLI uses it to
// stream a --trace file while the ring keeps the tail for failure reports.
type Tee struct {
	level   Level
	tracers []Tracer
}

// NewTee returns a Tee over tracers; nil entries are skipped.
func NewTee(level Level, tracers ...Tracer) *Tee {
	t := &Tee{level: level}
	for _, tr := range tracers {
		if tr != nil {
			t.tracers = append(t.tracers, tr)
		}
	}
	return t
}

func (t *Tee) Emit(ev *Event) {
	for _, tr := range t.tracers {
		tr.Emit(ev)
	}
}

// Flush flushes every tracer and joins their errors.
func (t *Tee) Flush() error {
	errs := make([]error, 0, len(t.tracers))
	for _, tr := range t.tracers {
		errs = append(errs, tr.Flush())
	}
	return errors.Join(errs...)
}

// Close closes every tracer and joins their errors.
func (t *Tee) Close() error {
	errs := make([]error, 0, len(t.tracers))
	for _, tr := range t.tracers {
		errs = append(errs, tr.Close())
	}
	return errors.Join(errs...)
}

func (t *Tee) Level() Level  { return t.level }
func (t *Tee) Enabled() bool { return t.level > LevelOff && len(t.tracers) > 0 }

package buildpipeline

import "time"

// Stage is one step of a build, in the order Stages lists them.
type Stage string

const (
	StageToolchain Stage = "toolchain" // locate cc65 and query its target path
	StageCompile   Stage = "compile"   // cc65 then ca65, or ca65 alone, per source
	StageLink      Stage = "link"      // ld65
	StagePackage   Stage = "package"   // write the .rp6502 ROM
)

var Stages = []Stage{StageToolchain, StageCompile, StageLink, StagePackage}

// Status is the state of a stage or of one source within the compile stage.
type Status string

const (
	StatusQueued  Status = "queued"
	StatusWorking Status = "working"
	StatusDone    Status = "done"
	StatusCached  Status = "cached" // object restored from the build cache
	StatusError   Status = "error"
)

// Event reports progress. File is empty for whole-stage events.
type Event struct {
	File    string
	Stage   Stage
	Status  Status
	Err     error
	Elapsed time.Duration
}

// ProgressSink consumes progress events. Compile events arrive from several
// goroutines at once.
type ProgressSink interface {
	OnEvent(Event)
}

// ChannelSink forwards events to Ch, blocking until they are received. A nil
// channel drops them.
type ChannelSink struct {
	Ch chan<- Event
}

func (s ChannelSink) OnEvent(ev Event) {
	if s.Ch != nil {
		s.Ch <- ev
	}
}

type stageTime struct {
	stage Stage
	dur   time.Duration
}

// Timings records how long each finished stage took. Stages that did not
// finish are absent.
type Timings struct {
	recorded []stageTime
}

// Set records dur for stage, replacing an earlier value.
func (t *Timings) Set(stage Stage, dur time.Duration) {
	for i := range t.recorded {
		if t.recorded[i].stage == stage {
			t.recorded[i].dur = dur
			return
		}
	}
	t.recorded = append(t.recorded, stageTime{stage, dur})
}

func (t Timings) Has(stage Stage) bool {
	_, ok := t.lookup(stage)
	return ok
}

// Duration is 0 for stages that were not recorded.
func (t Timings) Duration(stage Stage) time.Duration {
	d, _ := t.lookup(stage)
	return d
}

func (t Timings) lookup(stage Stage) (time.Duration, bool) {
	for _, st := range t.recorded {
		if st.stage == stage {
			return st.dur, true
		}
	}
	return 0, false
}

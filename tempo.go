package lumo

import "fmt"

// DefaultTicksPerBeat is the logical resolution of the timeline: a 4/4 bar is
// 960 ticks.
const DefaultTicksPerBeat = 240

// Tempo converts between logical ticks and seconds.
type Tempo struct {
	BPM          float64 `bson:"bpm" yaml:"bpm"`
	TicksPerBeat int     `bson:"ticksPerBeat" yaml:"ticksperbeat"`
}

func DefaultTempo() Tempo {
	return Tempo{BPM: 120, TicksPerBeat: DefaultTicksPerBeat}
}

// TicksToSeconds returns ticks / TicksPerBeat * 60 / BPM.
func (t Tempo) TicksToSeconds(ticks float64) float64 {
	return ticks / float64(t.ticksPerBeat()) * 60 / t.BPM
}

func (t Tempo) SecondsToTicks(seconds float64) float64 {
	return seconds * t.BPM / 60 * float64(t.ticksPerBeat())
}

func (t Tempo) ticksPerBeat() int {
	if t.TicksPerBeat <= 0 {
		return DefaultTicksPerBeat
	}
	return t.TicksPerBeat
}

func (t Tempo) Validate() error {
	if t.BPM <= 0 {
		return Errorf(ValidationError, fmt.Sprintf("bpm should be positive, got %v", t.BPM))
	}
	if t.TicksPerBeat < 0 {
		return Errorf(ValidationError, fmt.Sprintf("ticks per beat should be positive, got %v", t.TicksPerBeat))
	}
	return nil
}

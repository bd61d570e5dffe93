package lumo

// DefaultResolution is the number of colors generated by nodes that produce
// a color strip of their own, e.g. Afterglow and Dot.
const DefaultResolution = 60

type (
	// TrackValue is the sampled value of a track for one tick: a number for
	// automation tracks, or the held notes for pattern and live MIDI tracks.
	TrackValue struct {
		Number  float64
		Notes   []Note
		IsNotes bool
	}

	// CalculationContext is rebuilt every tick and handed to every evaluated
	// graph. It is never persisted.
	CalculationContext struct {
		Position    float64
		Tempo       Tempo
		Resolution  int
		FPS         int
		SampleRate  int
		TimeDomain  []float32
		Frequency   []float32
		TrackValues map[string]TrackValue
	}
)

func NumberValue(v float64) TrackValue { return TrackValue{Number: v} }

func NotesValue(notes []Note) TrackValue { return TrackValue{Notes: notes, IsNotes: true} }

package lumo

type (
	// Track is a horizontal lane of the timeline. Segments refer to tracks by
	// id only; a track does not own its segments, the Timeline does.
	Track struct {
		ID        string `bson:"id" yaml:"id"`
		Name      string `bson:"name" yaml:"name"`
		Removable bool   `bson:"removable" yaml:"removable,omitempty"`
	}

	// Segment is a scheduled interval [Start, End] on a track, driving the
	// payload with id PayloadID while the playhead is inside it. Temporary
	// segments are previews (e.g. while dragging from the library) and are
	// never persisted.
	Segment struct {
		ID        string `bson:"id" yaml:"id"`
		TrackID   string `bson:"trackId" yaml:"trackid"`
		PayloadID string `bson:"payloadId" yaml:"payloadid"`
		Start     int    `bson:"start" yaml:"start"`
		End       int    `bson:"end" yaml:"end"`
		Resizable bool   `bson:"resizable" yaml:"resizable,omitempty"`
		Temporary bool   `bson:"-" yaml:"-"`
	}
)

// Length returns End - Start.
func (s Segment) Length() int {
	return s.End - s.Start
}

// Contains reports whether position lies within the segment, inclusive at
// both ends.
func (s Segment) Contains(position float64) bool {
	return float64(s.Start) <= position && position <= float64(s.End)
}

// Overlaps reports whether s and o share any open interval. Touching segments
// (s.End == o.Start) do not overlap.
func (s Segment) Overlaps(o Segment) bool {
	return s.Start < o.End && o.Start < s.End
}

// DefaultTracks returns the tracks a new project starts with. They are not
// removable.
func DefaultTracks() []Track {
	return []Track{
		{ID: "audio", Name: "Audio"},
		{ID: "lights", Name: "Lights"},
		{ID: "automation", Name: "Automation"},
	}
}

package lumo

import (
	"fmt"
	"sort"
)

type (
	// Note is a held note in a NotePattern, spanning [Start, End) in ticks
	// relative to the start of the segment. Value is the MIDI key and
	// Velocity is in range [0,1].
	Note struct {
		Start    int     `bson:"start" yaml:"start"`
		End      int     `bson:"end" yaml:"end"`
		Value    int     `bson:"value" yaml:"value"`
		Velocity float64 `bson:"velocity" yaml:"velocity"`
	}

	// NotePattern is a list of notes, sorted by start tick.
	NotePattern struct {
		notes []Note
	}
)

// Covers reports whether the note is held at tick.
func (n Note) Covers(tick float64) bool {
	return float64(n.Start) <= tick && tick < float64(n.End)
}

func NewNotePattern(notes ...Note) *NotePattern {
	p := &NotePattern{notes: append([]Note(nil), notes...)}
	p.sort()
	return p
}

func (p *NotePattern) sort() {
	sort.SliceStable(p.notes, func(i, j int) bool { return p.notes[i].Start < p.notes[j].Start })
}

func (p *NotePattern) Notes() []Note {
	return append([]Note(nil), p.notes...)
}

func (p *NotePattern) AddNote(n Note) error {
	if n.Start >= n.End {
		return Errorf(ValidationError, fmt.Sprintf("note start (%v) should be less than end (%v)", n.Start, n.End))
	}
	p.notes = append(p.notes, n)
	p.sort()
	return nil
}

func (p *NotePattern) RemoveNote(index int) error {
	if index < 0 || index >= len(p.notes) {
		return Errorf(ValidationError, fmt.Sprintf("note index %v out of range [0,%v)", index, len(p.notes)))
	}
	p.notes = append(p.notes[:index], p.notes[index+1:]...)
	return nil
}

// NotesAt returns all the notes covering tick, in start order.
func (p *NotePattern) NotesAt(tick float64) []Note {
	var ret []Note
	for _, n := range p.notes {
		if float64(n.Start) > tick {
			break
		}
		if n.Covers(tick) {
			ret = append(ret, n)
		}
	}
	return ret
}

// Length returns the end of the last ending note.
func (p *NotePattern) Length() int {
	l := 0
	for _, n := range p.notes {
		l = max(l, n.End)
	}
	return l
}

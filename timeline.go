package lumo

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type (
	// Timeline holds the ordered tracks and the segments placed on them. It is
	// not safe for concurrent use: all mutations are expected to happen on the
	// playback loop goroutine (see playback.Scheduler.Run).
	Timeline struct {
		tracks    []Track
		segments  []*Segment
		byID      map[string]*Segment
		guards    []namedGuard
		listeners []listener
		nextKey   int
	}

	// MoveGuard is consulted before a segment is moved. Returning a non-nil
	// error vetoes the move; the error text becomes part of the rejection
	// reason.
	MoveGuard func(current Segment, start, end int) error

	// MoveResult is the outcome of Timeline.RequestMove.
	MoveResult struct {
		Accepted bool
		Reason   string
	}

	TimelineEventKind int

	// TimelineEvent is delivered to subscribers after a mutation has been
	// applied. Previous is only set for SegmentMoved.
	TimelineEvent struct {
		Kind     TimelineEventKind
		Track    Track
		Segment  Segment
		Previous Segment
	}

	namedGuard struct {
		key   int
		name  string
		guard MoveGuard
	}

	listener struct {
		key int
		fn  func(TimelineEvent)
	}
)

const (
	TrackAdded TimelineEventKind = iota
	TrackRemoved
	TracksReordered
	SegmentAdded
	SegmentRemoved
	SegmentMoved
)

func (k TimelineEventKind) String() string {
	switch k {
	case TrackAdded:
		return "track added"
	case TrackRemoved:
		return "track removed"
	case TracksReordered:
		return "tracks reordered"
	case SegmentAdded:
		return "segment added"
	case SegmentRemoved:
		return "segment removed"
	case SegmentMoved:
		return "segment moved"
	}
	return fmt.Sprintf("TimelineEventKind(%d)", int(k))
}

func NewTimeline() *Timeline {
	return &Timeline{byID: map[string]*Segment{}}
}

// Subscribe registers fn to be called after every applied mutation. The
// returned function removes the subscription.
func (t *Timeline) Subscribe(fn func(TimelineEvent)) (unsubscribe func()) {
	t.nextKey++
	key := t.nextKey
	t.listeners = append(t.listeners, listener{key: key, fn: fn})
	return func() {
		for i, l := range t.listeners {
			if l.key == key {
				t.listeners = append(t.listeners[:i], t.listeners[i+1:]...)
				return
			}
		}
	}
}

// AddMoveGuard registers a guard consulted by RequestMove. Guards are
// consulted in registration order and all of them are always consulted.
func (t *Timeline) AddMoveGuard(name string, guard MoveGuard) (remove func()) {
	t.nextKey++
	key := t.nextKey
	t.guards = append(t.guards, namedGuard{key: key, name: name, guard: guard})
	return func() {
		for i, g := range t.guards {
			if g.key == key {
				t.guards = append(t.guards[:i], t.guards[i+1:]...)
				return
			}
		}
	}
}

func (t *Timeline) emit(e TimelineEvent) {
	for _, l := range t.listeners {
		l.fn(e)
	}
}

// AddTrack appends a track. A random id is generated if track.ID is empty.
func (t *Timeline) AddTrack(track Track) (Track, error) {
	if track.ID == "" {
		track.ID = uuid.NewString()
	}
	if _, ok := t.Track(track.ID); ok {
		return Track{}, Errorf(ValidationError, fmt.Sprintf("duplicate track id %v", track.ID))
	}
	t.tracks = append(t.tracks, track)
	t.emit(TimelineEvent{Kind: TrackAdded, Track: track})
	return track, nil
}

// RemoveTrack removes a removable track together with all segments placed on
// it.
func (t *Timeline) RemoveTrack(id string) error {
	index := t.trackIndex(id)
	if index < 0 {
		return Errorf(ResourceNotFoundError, fmt.Sprintf("track %v not found", id))
	}
	track := t.tracks[index]
	if !track.Removable {
		return Errorf(ValidationError, fmt.Sprintf("track %v (%v) is not removable", track.Name, id))
	}
	for _, s := range t.TrackSegments(id) {
		t.RemoveSegment(s.ID)
	}
	t.tracks = append(t.tracks[:index], t.tracks[index+1:]...)
	t.emit(TimelineEvent{Kind: TrackRemoved, Track: track})
	return nil
}

// MoveTrack moves the track delta positions up (negative) or down (positive)
// in the track order, clamped to the ends of the list.
func (t *Timeline) MoveTrack(id string, delta int) error {
	from := t.trackIndex(id)
	if from < 0 {
		return Errorf(ResourceNotFoundError, fmt.Sprintf("track %v not found", id))
	}
	to := min(max(from+delta, 0), len(t.tracks)-1)
	if to == from {
		return nil
	}
	track := t.tracks[from]
	t.tracks = append(t.tracks[:from], t.tracks[from+1:]...)
	t.tracks = append(t.tracks[:to], append([]Track{track}, t.tracks[to:]...)...)
	t.emit(TimelineEvent{Kind: TracksReordered, Track: track})
	return nil
}

func (t *Timeline) Track(id string) (Track, bool) {
	if i := t.trackIndex(id); i >= 0 {
		return t.tracks[i], true
	}
	return Track{}, false
}

func (t *Timeline) trackIndex(id string) int {
	for i, tr := range t.tracks {
		if tr.ID == id {
			return i
		}
	}
	return -1
}

// Tracks returns a copy of the tracks in display order.
func (t *Timeline) Tracks() []Track {
	return append([]Track(nil), t.tracks...)
}

// AddSegment validates and adds a segment. A random id is generated if
// s.ID is empty.
func (t *Timeline) AddSegment(s Segment) (Segment, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if _, ok := t.byID[s.ID]; ok {
		return Segment{}, Errorf(ValidationError, fmt.Sprintf("duplicate segment id %v", s.ID))
	}
	if err := t.validate(s); err != nil {
		return Segment{}, err
	}
	c := s
	t.segments = append(t.segments, &c)
	t.byID[c.ID] = &c
	t.emit(TimelineEvent{Kind: SegmentAdded, Segment: c})
	return c, nil
}

// RemoveSegment removes the segment and reports whether it existed.
func (t *Timeline) RemoveSegment(id string) bool {
	s, ok := t.byID[id]
	if !ok {
		return false
	}
	delete(t.byID, id)
	for i, p := range t.segments {
		if p == s {
			t.segments = append(t.segments[:i], t.segments[i+1:]...)
			break
		}
	}
	t.emit(TimelineEvent{Kind: SegmentRemoved, Segment: *s})
	return true
}

func (t *Timeline) Segment(id string) (Segment, bool) {
	if s, ok := t.byID[id]; ok {
		return *s, true
	}
	return Segment{}, false
}

// Segments returns a copy of all segments in insertion order.
func (t *Timeline) Segments() []Segment {
	ret := make([]Segment, len(t.segments))
	for i, s := range t.segments {
		ret[i] = *s
	}
	return ret
}

func (t *Timeline) TrackSegments(trackID string) []Segment {
	var ret []Segment
	for _, s := range t.segments {
		if s.TrackID == trackID {
			ret = append(ret, *s)
		}
	}
	return ret
}

// RequestMove asks to move the segment to [start, end]. Invalid bounds and
// overlaps are returned as errors tagged ValidationError. A valid move is
// then offered to every registered guard; if any guard vetoes, the move is
// rejected and Reason lists every vetoing guard in registration order.
func (t *Timeline) RequestMove(id string, start, end int) (MoveResult, error) {
	return t.requestMove(id, start, end, false)
}

// FitSegment changes the length of a segment regardless of its Resizable
// flag, e.g. when an audio clip must follow its decoded length. Guards and
// validation still apply.
func (t *Timeline) FitSegment(id string, length int) (MoveResult, error) {
	s, ok := t.byID[id]
	if !ok {
		return MoveResult{}, Errorf(ResourceNotFoundError, fmt.Sprintf("segment %v not found", id))
	}
	return t.requestMove(id, s.Start, s.Start+length, true)
}

func (t *Timeline) requestMove(id string, start, end int, allowResize bool) (MoveResult, error) {
	s, ok := t.byID[id]
	if !ok {
		return MoveResult{}, Errorf(ResourceNotFoundError, fmt.Sprintf("segment %v not found", id))
	}
	if s.Start == start && s.End == end {
		return MoveResult{Accepted: true}, nil
	}
	if !s.Resizable && !allowResize && end-start != s.Length() {
		return MoveResult{}, Errorf(ValidationError, fmt.Sprintf("segment %v is not resizable", id))
	}
	moved := *s
	moved.Start, moved.End = start, end
	if err := t.validate(moved); err != nil {
		return MoveResult{}, err
	}
	var reasons []string
	for _, g := range t.guards {
		if err := g.guard(*s, start, end); err != nil {
			reasons = append(reasons, fmt.Sprintf("%v: %v", g.name, err))
		}
	}
	if len(reasons) > 0 {
		return MoveResult{Reason: strings.Join(reasons, "; ")}, nil
	}
	previous := *s
	s.Start, s.End = start, end
	t.emit(TimelineEvent{Kind: SegmentMoved, Segment: *s, Previous: previous})
	return MoveResult{Accepted: true}, nil
}

// validate checks bounds, track existence and overlaps with other segments
// of the same track. Temporary segments neither cause nor suffer overlap
// errors.
func (t *Timeline) validate(s Segment) error {
	if s.Start >= s.End {
		return Errorf(ValidationError, fmt.Sprintf("segment %v: start (%v) should be less than end (%v)", s.ID, s.Start, s.End))
	}
	if _, ok := t.Track(s.TrackID); !ok {
		return Errorf(ValidationError, fmt.Sprintf("segment %v refers to unknown track %v", s.ID, s.TrackID))
	}
	if s.Temporary {
		return nil
	}
	for _, o := range t.segments {
		if o.ID == s.ID || o.TrackID != s.TrackID || o.Temporary {
			continue
		}
		if s.Overlaps(*o) {
			return Errorf(ValidationError, fmt.Sprintf("segment %v [%v,%v] overlaps segment %v [%v,%v]", s.ID, s.Start, s.End, o.ID, o.Start, o.End))
		}
	}
	return nil
}

// Copy makes a deep copy of the tracks and segments. Subscriptions and guards
// are not copied.
func (t *Timeline) Copy() *Timeline {
	ret := NewTimeline()
	ret.tracks = append([]Track(nil), t.tracks...)
	for _, s := range t.segments {
		c := *s
		ret.segments = append(ret.segments, &c)
		ret.byID[c.ID] = &c
	}
	return ret
}

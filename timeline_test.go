package lumo_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/vsariola/lumo"
)

func newTestTimeline(t *testing.T) (*lumo.Timeline, lumo.Track) {
	t.Helper()
	tl := lumo.NewTimeline()
	track, err := tl.AddTrack(lumo.Track{Name: "Track 1", Removable: true})
	if err != nil {
		t.Fatalf("AddTrack failed: %v", err)
	}
	return tl, track
}

func TestTimelineRejectsInvalidBounds(t *testing.T) {
	tl, track := newTestTimeline(t)
	if _, err := tl.AddSegment(lumo.Segment{TrackID: track.ID, Start: 10, End: 10}); !lumo.IsKind(err, lumo.ValidationError) {
		t.Errorf("zero length segment: expected validation error, got %v", err)
	}
	if _, err := tl.AddSegment(lumo.Segment{TrackID: "nope", Start: 0, End: 10}); !lumo.IsKind(err, lumo.ValidationError) {
		t.Errorf("unknown track: expected validation error, got %v", err)
	}
}

func TestTimelineOverlap(t *testing.T) {
	tl, track := newTestTimeline(t)
	a, err := tl.AddSegment(lumo.Segment{TrackID: track.ID, Start: 0, End: 100, Resizable: true})
	if err != nil {
		t.Fatalf("AddSegment failed: %v", err)
	}
	if _, err := tl.AddSegment(lumo.Segment{TrackID: track.ID, Start: 100, End: 200}); err != nil {
		t.Errorf("touching segments should be allowed, got %v", err)
	}
	if _, err := tl.AddSegment(lumo.Segment{TrackID: track.ID, Start: 50, End: 150}); !lumo.IsKind(err, lumo.ValidationError) {
		t.Errorf("overlapping segment: expected validation error, got %v", err)
	}
	if _, err := tl.RequestMove(a.ID, 0, 150); !lumo.IsKind(err, lumo.ValidationError) {
		t.Errorf("move into overlap: expected validation error, got %v", err)
	}
	if _, err := tl.AddSegment(lumo.Segment{TrackID: track.ID, Start: 50, End: 150, Temporary: true}); err != nil {
		t.Errorf("temporary segments should not be checked for overlap, got %v", err)
	}
}

func TestTimelineMoveGuards(t *testing.T) {
	tl, track := newTestTimeline(t)
	s, err := tl.AddSegment(lumo.Segment{TrackID: track.ID, Start: 0, End: 100})
	if err != nil {
		t.Fatalf("AddSegment failed: %v", err)
	}
	var consulted []string
	tl.AddMoveGuard("first", func(lumo.Segment, int, int) error {
		consulted = append(consulted, "first")
		return errors.New("locked")
	})
	tl.AddMoveGuard("second", func(lumo.Segment, int, int) error {
		consulted = append(consulted, "second")
		return nil
	})
	removeThird := tl.AddMoveGuard("third", func(lumo.Segment, int, int) error {
		consulted = append(consulted, "third")
		return errors.New("also locked")
	})
	res, err := tl.RequestMove(s.ID, 10, 110)
	if err != nil {
		t.Fatalf("RequestMove returned error: %v", err)
	}
	if res.Accepted {
		t.Fatalf("move should have been rejected")
	}
	if res.Reason != "first: locked; third: also locked" {
		t.Errorf("unexpected reason %q", res.Reason)
	}
	if strings.Join(consulted, ",") != "first,second,third" {
		t.Errorf("all guards should be consulted in order, got %v", consulted)
	}
	if got, _ := tl.Segment(s.ID); got.Start != 0 {
		t.Errorf("rejected move changed the segment: %+v", got)
	}
	removeThird()
	consulted = nil
	res, _ = tl.RequestMove(s.ID, 10, 110)
	if res.Reason != "first: locked" {
		t.Errorf("unexpected reason after removing guard %q", res.Reason)
	}
}

func TestTimelineMoveEmitsEvent(t *testing.T) {
	tl, track := newTestTimeline(t)
	s, _ := tl.AddSegment(lumo.Segment{TrackID: track.ID, Start: 0, End: 100})
	var events []lumo.TimelineEvent
	unsubscribe := tl.Subscribe(func(e lumo.TimelineEvent) { events = append(events, e) })
	res, err := tl.RequestMove(s.ID, 50, 150)
	if err != nil || !res.Accepted {
		t.Fatalf("RequestMove = %+v, %v", res, err)
	}
	if len(events) != 1 || events[0].Kind != lumo.SegmentMoved {
		t.Fatalf("expected one SegmentMoved event, got %v", events)
	}
	if events[0].Previous.Start != 0 || events[0].Segment.Start != 50 {
		t.Errorf("unexpected event %+v", events[0])
	}
	if _, err := tl.RequestMove(s.ID, 50, 100); !lumo.IsKind(err, lumo.ValidationError) {
		t.Errorf("resizing a non-resizable segment: expected validation error, got %v", err)
	}
	if res, err := tl.FitSegment(s.ID, 20); err != nil || !res.Accepted {
		t.Errorf("FitSegment = %+v, %v", res, err)
	}
	unsubscribe()
	tl.RequestMove(s.ID, 0, 20)
	if len(events) != 2 {
		t.Errorf("events delivered after unsubscribe: %v", len(events))
	}
}

func TestTimelineRemoveTrackDropsSegments(t *testing.T) {
	tl, track := newTestTimeline(t)
	other, _ := tl.AddTrack(lumo.Track{Name: "Track 2"})
	tl.AddSegment(lumo.Segment{TrackID: track.ID, Start: 0, End: 100})
	tl.AddSegment(lumo.Segment{TrackID: other.ID, Start: 0, End: 100})
	if err := tl.RemoveTrack(track.ID); err != nil {
		t.Fatalf("RemoveTrack failed: %v", err)
	}
	if n := len(tl.Segments()); n != 1 {
		t.Errorf("expected 1 segment left, got %v", n)
	}
	if err := tl.RemoveTrack(other.ID); !lumo.IsKind(err, lumo.ValidationError) {
		t.Errorf("removing non-removable track: expected validation error, got %v", err)
	}
	if err := tl.RemoveTrack("missing"); !lumo.IsKind(err, lumo.ResourceNotFoundError) {
		t.Errorf("removing missing track: expected not found error, got %v", err)
	}
}

func TestTimelineMoveTrack(t *testing.T) {
	tl := lumo.NewTimeline()
	var ids []string
	for _, name := range []string{"a", "b", "c"} {
		tr, _ := tl.AddTrack(lumo.Track{ID: name, Name: name})
		ids = append(ids, tr.ID)
	}
	if err := tl.MoveTrack("a", 1); err != nil {
		t.Fatalf("MoveTrack failed: %v", err)
	}
	if err := tl.MoveTrack("c", -10); err != nil {
		t.Fatalf("MoveTrack failed: %v", err)
	}
	var got []string
	for _, tr := range tl.Tracks() {
		got = append(got, tr.ID)
	}
	if strings.Join(got, "") != "cba" {
		t.Errorf("track order = %v, want [c b a]", got)
	}
}

func TestTimelineCopyIsDeep(t *testing.T) {
	tl, track := newTestTimeline(t)
	s, _ := tl.AddSegment(lumo.Segment{TrackID: track.ID, Start: 0, End: 100})
	c := tl.Copy()
	tl.RequestMove(s.ID, 100, 200)
	if got, _ := c.Segment(s.ID); got.Start != 0 {
		t.Errorf("copy was modified by a move on the original: %+v", got)
	}
}

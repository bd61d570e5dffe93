package library_test

import (
	"bytes"
	"errors"
	"io"
	"net"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/vsariola/lumo"
	"github.com/vsariola/lumo/graph"
	"github.com/vsariola/lumo/library"
	"github.com/vsariola/lumo/output"
	"go.mongodb.org/mongo-driver/bson"
)

type nopConn struct{ net.Conn }

func (nopConn) Write(b []byte) (int, error) { return len(b), nil }
func (nopConn) Close() error                { return nil }

func quiet() library.LoadOption {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return library.WithLogger(logrus.NewEntry(l))
}

func silence(string) (lumo.AudioBuffer, error) {
	return make(lumo.AudioBuffer, lumo.SampleRate), nil
}

func demoProject(t *testing.T) *library.Project {
	t.Helper()
	p := library.NewProject()
	p.Tempo.BPM = 128
	p.FPS = 30
	curve := &library.AutomationItem{
		Header: library.Header{ID: "curve", Name: "Fade"},
		Curve:  lumo.NewAutomationCurve(lumo.AutomationPoint{Unit: 0, Value: 0, Kind: lumo.Linear}, lumo.AutomationPoint{Unit: 960, Value: 1, Kind: lumo.Linear}),
	}
	pattern := &library.PatternItem{
		Header:  library.Header{ID: "pattern", Name: "Kick"},
		Pattern: lumo.NewNotePattern(lumo.Note{Start: 0, End: 120, Value: 36, Velocity: 1}),
	}
	g := graph.New()
	if _, err := g.AddNode("lfo", graph.KindLFO, nil); err != nil {
		t.Fatalf("AddNode failed: %v", err)
	}
	clip := &library.AudioItem{Header: library.Header{ID: "clip", Name: "Song"}, Path: "song.wav"}
	for _, item := range []library.Item{curve, pattern, &library.GraphItem{Header: library.Header{ID: "graph"}, Graph: g}, clip} {
		if err := p.Library.Add(item); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}
	for _, id := range []string{"a", "b", "c"} {
		if _, err := p.Timeline.AddTrack(lumo.Track{ID: id, Name: id, Removable: true}); err != nil {
			t.Fatalf("AddTrack failed: %v", err)
		}
	}
	segments := []lumo.Segment{
		{ID: "s1", TrackID: "a", PayloadID: "curve", Start: 0, End: 960, Resizable: true},
		{ID: "s2", TrackID: "a", PayloadID: "curve", Start: 960, End: 1920},
		{ID: "s3", TrackID: "b", PayloadID: "pattern", Start: 100, End: 500},
		{ID: "s4", TrackID: "c", PayloadID: "graph", Start: 0, End: 4000},
		{ID: "s5", TrackID: "b", PayloadID: "clip", Start: 500, End: 1000},
	}
	for _, s := range segments {
		if _, err := p.Timeline.AddSegment(s); err != nil {
			t.Fatalf("AddSegment failed: %v", err)
		}
	}
	return p
}

func TestRoundTrip(t *testing.T) {
	p := demoProject(t)
	if _, err := p.Timeline.AddSegment(lumo.Segment{ID: "preview", TrackID: "c", PayloadID: "graph", Start: 0, End: 10, Temporary: true}); err != nil {
		t.Fatalf("AddSegment failed: %v", err)
	}
	var buf bytes.Buffer
	if err := p.Save(&buf); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	q, warnings, err := library.Load(&buf, library.WithAudioDecoder(silence), quiet())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings %v", warnings)
	}
	if q.Tempo.BPM != 128 || q.FPS != 30 || q.Tempo.TicksPerBeat != lumo.DefaultTicksPerBeat {
		t.Fatalf("settings not preserved: %+v %v", q.Tempo, q.FPS)
	}
	if len(q.Timeline.Tracks()) != 3 {
		t.Fatalf("got %v tracks", len(q.Timeline.Tracks()))
	}
	got := q.Timeline.Segments()
	want := p.Timeline.Segments()
	if len(got) != len(want)-1 {
		t.Fatalf("got %v segments, want %v", len(got), len(want)-1)
	}
	for _, s := range want {
		if s.Temporary {
			if _, ok := q.Timeline.Segment(s.ID); ok {
				t.Fatalf("temporary segment was saved")
			}
			continue
		}
		g, ok := q.Timeline.Segment(s.ID)
		if !ok || g != s {
			t.Fatalf("segment %v: got %+v, want %+v", s.ID, g, s)
		}
	}
	curve, _ := q.Library.Item("curve")
	if v := curve.(*library.AutomationItem).Curve.ValueAt(480); v != 0.5 {
		t.Fatalf("curve not preserved, got %v", v)
	}
	pattern, _ := q.Library.Item("pattern")
	if n := pattern.(*library.PatternItem).Pattern.NotesAt(50); len(n) != 1 || n[0].Value != 36 {
		t.Fatalf("pattern not preserved, got %v", n)
	}
	gi, _ := q.Library.Item("graph")
	if nodes := gi.(*library.GraphItem).Graph.Nodes(); len(nodes) != 1 || nodes[0].Kind != graph.KindLFO {
		t.Fatalf("graph not preserved")
	}
	clip, _ := q.Library.Item("clip")
	if a := clip.(*library.AudioItem); a.Silent() || a.Path != "song.wav" {
		t.Fatalf("audio not loaded: %+v", a.Header)
	}
}

func TestAudioDecodeFailureFlagsItem(t *testing.T) {
	p := demoProject(t)
	data, err := p.Marshal()
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	broken := func(string) (lumo.AudioBuffer, error) { return nil, errors.New("bad header") }
	q, warnings, err := library.Unmarshal(data, library.WithAudioDecoder(broken), quiet())
	if err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if len(warnings) != 1 || !lumo.IsKind(warnings[0], lumo.AudioDecodeError) {
		t.Fatalf("expected one audio decode warning, got %v", warnings)
	}
	clip, ok := q.Library.Item("clip")
	if !ok || !clip.Info().Error || !clip.(*library.AudioItem).Silent() {
		t.Fatalf("clip should be kept and flagged")
	}
	if _, ok := q.Timeline.Segment("s5"); !ok {
		t.Fatalf("the segment of a broken clip should be kept")
	}
}

func TestUnknownTypeAndMissingPayload(t *testing.T) {
	curve, err := bson.Marshal(bson.D{{Key: "id", Value: "curve"}, {Key: "name", Value: "c"}, {Key: "points", Value: bson.A{}}})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	doc := bson.D{
		{Key: "version", Value: 1},
		{Key: "bpm", Value: 100.0},
		{Key: "fps", Value: 60},
		{Key: "tracks", Value: bson.A{bson.D{{Key: "id", Value: "t"}, {Key: "name", Value: "t"}}}},
		{Key: "items", Value: bson.A{
			bson.D{{Key: "id", Value: "ok"}, {Key: "trackId", Value: "t"}, {Key: "payloadId", Value: "curve"}, {Key: "start", Value: 0}, {Key: "end", Value: 10}},
			bson.D{{Key: "id", Value: "orphan"}, {Key: "trackId", Value: "t"}, {Key: "payloadId", Value: "gone"}, {Key: "start", Value: 20}, {Key: "end", Value: 30}},
		}},
		{Key: "library", Value: bson.A{
			bson.D{{Key: "type", Value: 42}, {Key: "data", Value: []byte{}}},
			bson.D{{Key: "type", Value: 3}, {Key: "data", Value: curve}},
		}},
	}
	data, err := bson.Marshal(doc)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	p, warnings, err := library.Unmarshal(data, quiet())
	if err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if len(warnings) != 2 {
		t.Fatalf("expected two warnings, got %v", warnings)
	}
	if !lumo.IsKind(warnings[0], lumo.ValidationError) || !lumo.IsKind(warnings[1], lumo.ResourceNotFoundError) {
		t.Fatalf("unexpected warning kinds: %v", warnings)
	}
	if len(p.Library.Items()) != 1 || len(p.Timeline.Segments()) != 1 {
		t.Fatalf("got %v items and %v segments", len(p.Library.Items()), len(p.Timeline.Segments()))
	}
	if p.Tempo.BPM != 100 {
		t.Fatalf("got bpm %v", p.Tempo.BPM)
	}
}

func TestOutputItemRoundTrip(t *testing.T) {
	var addresses []string
	dial := func(network, address string) (net.Conn, error) {
		addresses = append(addresses, address)
		return nopConn{}, nil
	}
	f, err := output.New(output.DRGB, output.WithDialer(dial))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	err = f.Configure(func(v any) error {
		s := v.(*output.DRGBState)
		s.Host, s.Port, s.LEDCount = "10.0.0.2", 4048, 144
		return nil
	})
	if err != nil {
		t.Fatalf("Configure failed: %v", err)
	}
	p := library.NewProject()
	if err := p.Library.Add(&library.OutputItem{Header: library.Header{ID: "strip"}, Fixture: f}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	data, err := p.Marshal()
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	q, warnings, err := library.Unmarshal(data, library.WithOutputOptions(output.WithDialer(dial)), quiet())
	if err != nil || len(warnings) != 0 {
		t.Fatalf("Unmarshal failed: %v %v", err, warnings)
	}
	g, ok := q.Library.Output("strip")
	if !ok {
		t.Fatalf("fixture missing")
	}
	s := g.State().(output.DRGBState)
	if s.Host != "10.0.0.2" || s.Port != 4048 || s.LEDCount != 144 || s.Timeout != 255 {
		t.Fatalf("state not preserved: %+v", s)
	}
	if last := addresses[len(addresses)-1]; last != "10.0.0.2:4048" {
		t.Fatalf("transport not recreated, last address %v", last)
	}
}

func TestLibraryEvents(t *testing.T) {
	l := library.New()
	var events []library.Event
	unsubscribe := l.Subscribe(func(e library.Event) { events = append(events, e) })
	item := &library.PatternItem{Pattern: lumo.NewNotePattern()}
	if err := l.Add(item); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if item.ID == "" {
		t.Fatalf("id not generated")
	}
	if err := l.Add(item); !lumo.IsKind(err, lumo.ValidationError) {
		t.Fatalf("expected duplicate id to be rejected, got %v", err)
	}
	if !l.Remove(item.ID) || l.Remove(item.ID) {
		t.Fatalf("Remove should succeed exactly once")
	}
	unsubscribe()
	l.Add(&library.PatternItem{Pattern: lumo.NewNotePattern()})
	if len(events) != 2 || !events[0].Added || events[1].Added {
		t.Fatalf("unexpected events %+v", events)
	}
}

func TestMixdown(t *testing.T) {
	p := library.NewProject()
	if _, err := p.Timeline.AddTrack(lumo.Track{ID: "a"}); err != nil {
		t.Fatalf("AddTrack failed: %v", err)
	}
	clip := make(lumo.AudioBuffer, lumo.SampleRate)
	for i := range clip {
		clip[i] = [2]float32{0.25, -0.25}
	}
	if err := p.Library.Add(&library.AudioItem{Header: library.Header{ID: "clip"}, Buffer: clip}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	// at 120 BPM, 480 ticks is one second
	if _, err := p.Timeline.AddSegment(lumo.Segment{ID: "s", TrackID: "a", PayloadID: "clip", Start: 480, End: 720}); err != nil {
		t.Fatalf("AddSegment failed: %v", err)
	}
	out := p.Mixdown(0, 960)
	if len(out) != 2*lumo.SampleRate {
		t.Fatalf("got %v frames", len(out))
	}
	if out[lumo.SampleRate-1] != ([2]float32{}) || out[lumo.SampleRate] != ([2]float32{0.25, -0.25}) {
		t.Fatalf("clip not placed at one second")
	}
	if out[lumo.SampleRate*3/2+10] != ([2]float32{}) {
		t.Fatalf("clip should end with its segment")
	}
}

// Package playback drives a project in real time: the clock follows the
// audio engine, the scheduler activates the segments under the position,
// samples their payloads, evaluates graphs and dispatches the results to the
// fixtures.
package playback

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vsariola/lumo"
	"github.com/vsariola/lumo/library"
	"github.com/vsariola/lumo/output"
)

type (
	// Scheduler activates and deactivates segments as the position crosses
	// them. It is not safe for concurrent use; when running with Run, all
	// changes should go through the broker.
	Scheduler struct {
		project     *library.Project
		engine      lumo.AudioEngine
		clock       *Clock
		sender      Sender
		ownsSender  bool
		broker      *Broker
		resolution  int
		active      []lumo.Segment
		trackValues map[string]lumo.TrackValue
		liveTrack   string
		liveNotes   []lumo.Note
		lockAudio   bool
		listeners   []schedulerListener
		nextKey     int
		cleanup     []func()
		log         *logrus.Entry
	}

	// Sender delivers color strips to fixtures. *Dispatcher is the
	// asynchronous implementation.
	Sender interface {
		Send(f output.Fixture, colors lumo.ColorBuffer) bool
	}

	SchedulerOption func(*Scheduler)

	// SegmentEvent is emitted when a segment is activated or deactivated.
	SegmentEvent struct {
		Segment lumo.Segment
		Active  bool
	}

	schedulerListener struct {
		key int
		fn  func(SegmentEvent)
	}
)

var errAudioLocked = errors.New("audio segments cannot be moved while playing")

// WithSender replaces the default Dispatcher.
func WithSender(sender Sender) SchedulerOption {
	return func(s *Scheduler) { s.sender = sender }
}

func WithBroker(b *Broker) SchedulerOption {
	return func(s *Scheduler) { s.broker = b }
}

func WithLogger(log *logrus.Entry) SchedulerOption {
	return func(s *Scheduler) { s.log = log }
}

// WithLiveTrack makes notes received as LiveNoteMsg the value of the track.
func WithLiveTrack(trackID string) SchedulerOption {
	return func(s *Scheduler) { s.liveTrack = trackID }
}

// WithResolution sets the strip length of nodes generating colors.
func WithResolution(n int) SchedulerOption {
	return func(s *Scheduler) { s.resolution = n }
}

// LockAudioWhilePlaying rejects moves of active audio segments while
// playing, instead of re-registering them at their new start.
func LockAudioWhilePlaying() SchedulerOption {
	return func(s *Scheduler) { s.lockAudio = true }
}

func NewScheduler(project *library.Project, engine lumo.AudioEngine, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		project:     project,
		engine:      engine,
		resolution:  lumo.DefaultResolution,
		trackValues: map[string]lumo.TrackValue{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logrus.NewEntry(logrus.StandardLogger())
	}
	if s.sender == nil {
		s.sender = NewDispatcher(DefaultQueueSize, s.log)
		s.ownsSender = true
	}
	if s.broker == nil {
		s.broker = NewBroker()
	}
	s.clock = NewClock(engine, project.Tempo, s.log)
	s.log = s.log.WithField("component", "scheduler")
	s.cleanup = append(s.cleanup, project.Timeline.Subscribe(s.timelineChanged))
	s.cleanup = append(s.cleanup, project.Library.Subscribe(s.libraryChanged))
	if s.lockAudio {
		s.cleanup = append(s.cleanup, project.Timeline.AddMoveGuard("audio lock", s.audioLock))
	}
	return s
}

func (s *Scheduler) Clock() *Clock { return s.clock }

func (s *Scheduler) Broker() *Broker { return s.broker }

// Subscribe registers fn to be called on every activation and deactivation.
func (s *Scheduler) Subscribe(fn func(SegmentEvent)) (unsubscribe func()) {
	key := s.nextKey
	s.nextKey++
	s.listeners = append(s.listeners, schedulerListener{key: key, fn: fn})
	return func() {
		for i, l := range s.listeners {
			if l.key == key {
				s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}

// Active returns the currently active segments.
func (s *Scheduler) Active() []lumo.Segment {
	return append([]lumo.Segment(nil), s.active...)
}

func (s *Scheduler) TrackValue(trackID string) (lumo.TrackValue, bool) {
	v, ok := s.trackValues[trackID]
	return v, ok
}

func (s *Scheduler) Status() StatusMsg {
	var dropped int64
	if d, ok := s.sender.(*Dispatcher); ok {
		dropped = d.Dropped()
	}
	return StatusMsg{
		Position: s.clock.Position(),
		Playing:  s.clock.Playing(),
		BPM:      s.clock.Tempo().BPM,
		Active:   len(s.active),
		Dropped:  dropped,
	}
}

// Process brings the active set up to date with position, then samples the
// payloads of all active segments. Segments leaving the active set are
// deactivated before the entering ones are activated, so that a track value
// written by an entering segment is not cleared by a leaving one.
func (s *Scheduler) Process(position float64) {
	var now []lumo.Segment
	for _, seg := range s.project.Timeline.Segments() {
		if seg.Contains(position) {
			now = append(now, seg)
		}
	}
	for _, seg := range s.active {
		if !containsSegment(now, seg.ID) {
			s.deactivate(seg)
		}
	}
	prev := s.active
	s.active = now
	for _, seg := range now {
		if !containsSegment(prev, seg.ID) {
			s.activate(seg)
		}
	}
	s.sample(position)
}

func containsSegment(segments []lumo.Segment, id string) bool {
	for _, s := range segments {
		if s.ID == id {
			return true
		}
	}
	return false
}

func (s *Scheduler) activate(seg lumo.Segment) {
	if a, ok := s.audio(seg); ok && !a.Silent() {
		s.clock.RegisterBuffer(seg.ID, a.Buffer, float64(seg.Start))
	}
	s.emit(SegmentEvent{Segment: seg, Active: true})
}

func (s *Scheduler) deactivate(seg lumo.Segment) {
	s.clock.UnregisterBuffer(seg.ID)
	item, _ := s.project.Library.Item(seg.PayloadID)
	switch item.(type) {
	case *library.AutomationItem, *library.PatternItem:
		delete(s.trackValues, seg.TrackID)
	}
	s.emit(SegmentEvent{Segment: seg, Active: false})
}

func (s *Scheduler) deactivateAll() {
	for _, seg := range s.active {
		s.deactivate(seg)
	}
	s.active = nil
}

func (s *Scheduler) emit(e SegmentEvent) {
	for _, l := range s.listeners {
		l.fn(e)
	}
}

func (s *Scheduler) audio(seg lumo.Segment) (*library.AudioItem, bool) {
	item, _ := s.project.Library.Item(seg.PayloadID)
	a, ok := item.(*library.AudioItem)
	return a, ok
}

func (s *Scheduler) sample(position float64) {
	var graphs []lumo.Segment
	live := false
	for _, seg := range s.active {
		item, _ := s.project.Library.Item(seg.PayloadID)
		local := position - float64(seg.Start)
		switch i := item.(type) {
		case *library.AutomationItem:
			s.trackValues[seg.TrackID] = lumo.NumberValue(i.Curve.ValueAt(local))
		case *library.PatternItem:
			s.trackValues[seg.TrackID] = lumo.NotesValue(i.Pattern.NotesAt(local))
		case *library.GraphItem:
			graphs = append(graphs, seg)
			continue
		default:
			continue
		}
		live = live || seg.TrackID == s.liveTrack
	}
	if s.liveTrack != "" {
		// held notes are added to what the segments on the track produced
		// this tick, if any
		var v lumo.TrackValue
		if live {
			v = s.trackValues[s.liveTrack]
		}
		if live || len(s.liveNotes) > 0 {
			notes := append(append([]lumo.Note(nil), v.Notes...), s.liveNotes...)
			merged := lumo.NotesValue(notes)
			merged.Number = v.Number
			s.trackValues[s.liveTrack] = merged
		} else {
			delete(s.trackValues, s.liveTrack)
		}
	}
	// later graphs overwrite the frames of earlier ones
	frames := map[string]lumo.ColorBuffer{}
	if len(graphs) > 0 {
		ctx := s.context(position)
		for _, seg := range graphs {
			item, _ := s.project.Library.Item(seg.PayloadID)
			g := item.(*library.GraphItem)
			results, err := g.Graph.Evaluate(ctx)
			if err != nil {
				if !g.Error {
					s.log.WithError(err).WithField("graph", g.ID).Warn("graph evaluation failed")
				}
				g.Error = true
				continue
			}
			g.Error = false
			for _, r := range results {
				frames[r.FixtureID] = r.Colors
			}
		}
	}
	s.dispatch(frames)
}

func (s *Scheduler) context(position float64) *lumo.CalculationContext {
	ctx := &lumo.CalculationContext{
		Position:    position,
		Tempo:       s.clock.Tempo(),
		Resolution:  s.resolution,
		FPS:         s.project.FPS,
		SampleRate:  lumo.SampleRate,
		TrackValues: s.trackValues,
	}
	if a := s.engine.Analyser(); a != nil {
		snapshot := a.Snapshot()
		ctx.TimeDomain = snapshot.TimeDomain
		ctx.Frequency = snapshot.Frequency
		if snapshot.SampleRate > 0 {
			ctx.SampleRate = snapshot.SampleRate
		}
	}
	return ctx
}

// dispatch sends one frame to every output of the library. Outputs no graph
// wrote to get nil, which fixtures send as black.
func (s *Scheduler) dispatch(frames map[string]lumo.ColorBuffer) {
	for _, item := range s.project.Library.Items() {
		o, ok := item.(*library.OutputItem)
		if !ok || o.Fixture == nil {
			continue
		}
		s.sender.Send(o.Fixture, frames[o.ID])
	}
}

// Tick advances the clock and processes the new position if playing.
func (s *Scheduler) Tick() {
	s.clock.UpdatePosition()
	if s.clock.Playing() {
		s.Process(s.clock.Position())
	}
	TrySend(s.broker.ToFrontend, s.Status())
}

func (s *Scheduler) Play() {
	if s.clock.Playing() {
		return
	}
	s.clock.Play()
	s.Process(s.clock.Position())
}

// Pause stops the clock and deactivates all segments; the next Play
// activates them again.
func (s *Scheduler) Pause() {
	s.clock.Pause(true)
	s.deactivateAll()
}

func (s *Scheduler) Seek(position float64) {
	wasPlaying := s.clock.Playing()
	s.deactivateAll()
	s.clock.Seek(position)
	if wasPlaying {
		s.Process(position)
	}
}

// SetBPM changes the tempo. Audio segments are resized to the length of
// their clip at the new tempo; a segment that cannot be resized, e.g.
// because it would overlap its neighbour, keeps its length.
func (s *Scheduler) SetBPM(bpm float64) error {
	tempo := s.clock.Tempo()
	tempo.BPM = bpm
	if err := tempo.Validate(); err != nil {
		return err
	}
	wasPlaying := s.clock.Playing()
	s.deactivateAll()
	s.clock.SetTempo(tempo)
	s.project.Tempo = tempo
	for _, seg := range s.project.Timeline.Segments() {
		a, ok := s.audio(seg)
		if !ok || a.Silent() {
			continue
		}
		length := a.Length(tempo)
		if length <= 0 || length == seg.Length() {
			continue
		}
		res, err := s.project.Timeline.FitSegment(seg.ID, length)
		if err == nil && !res.Accepted {
			err = errors.New(res.Reason)
		}
		if err != nil {
			s.log.WithError(err).WithField("segment", seg.ID).Warn("cannot fit audio segment to new tempo")
		}
	}
	if wasPlaying {
		s.Process(s.clock.Position())
	}
	return nil
}

// LiveNote updates the notes held on the live track.
func (s *Scheduler) LiveNote(m LiveNoteMsg) {
	for i, n := range s.liveNotes {
		if n.Value == m.Key {
			s.liveNotes = append(s.liveNotes[:i], s.liveNotes[i+1:]...)
			break
		}
	}
	if m.On {
		start := int(s.clock.Position())
		s.liveNotes = append(s.liveNotes, lumo.Note{Start: start, End: math.MaxInt32, Value: m.Key, Velocity: m.Velocity})
	}
}

// Run ticks at the project frame rate and handles broker messages until ctx
// is done. The clock is paused on return.
func (s *Scheduler) Run(ctx context.Context) error {
	fps := s.project.FPS
	if fps <= 0 {
		fps = library.DefaultFPS
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.Pause()
			return ctx.Err()
		case <-ticker.C:
			s.Tick()
		case msg := <-s.broker.ToScheduler:
			s.handle(msg)
		}
	}
}

func (s *Scheduler) handle(msg any) {
	switch m := msg.(type) {
	case PlayMsg:
		s.Play()
	case PauseMsg:
		s.Pause()
	case SeekMsg:
		s.Seek(m.Position)
	case BPMMsg:
		if err := s.SetBPM(m.BPM); err != nil {
			s.log.WithError(err).Warn("invalid tempo")
		}
	case MoveSegmentMsg:
		res, err := s.project.Timeline.RequestMove(m.ID, m.Start, m.End)
		if m.Reply != nil {
			TrySend(m.Reply, MoveReply{Result: res, Err: err})
		}
	case LiveNoteMsg:
		s.LiveNote(m)
	case func():
		m()
	default:
		s.log.Debugf("unknown message type %T", msg)
	}
}

// timelineChanged keeps the active set consistent with edits: a moved audio
// segment is re-registered at its new start, a removed segment is
// deactivated.
func (s *Scheduler) timelineChanged(e lumo.TimelineEvent) {
	i := -1
	for j, seg := range s.active {
		if seg.ID == e.Segment.ID {
			i = j
		}
	}
	if i < 0 {
		return
	}
	switch e.Kind {
	case lumo.SegmentMoved:
		s.active[i] = e.Segment
		if s.clock.Registered(e.Segment.ID) {
			a, _ := s.audio(e.Segment)
			s.clock.RegisterBuffer(e.Segment.ID, a.Buffer, float64(e.Segment.Start))
		}
	case lumo.SegmentRemoved:
		s.active = append(s.active[:i], s.active[i+1:]...)
		s.deactivate(e.Segment)
	}
}

// libraryChanged stops delivering to the fixture of a removed output.
func (s *Scheduler) libraryChanged(e library.Event) {
	o, ok := e.Item.(*library.OutputItem)
	if e.Added || !ok || o.Fixture == nil {
		return
	}
	if r, ok := s.sender.(interface{ Remove(output.Fixture) }); ok {
		r.Remove(o.Fixture)
	}
}

func (s *Scheduler) audioLock(current lumo.Segment, start, end int) error {
	if !s.clock.Playing() || !containsSegment(s.active, current.ID) {
		return nil
	}
	if _, ok := s.audio(current); ok {
		return errAudioLocked
	}
	return nil
}

// Close detaches the scheduler from the timeline, stops the clock and, if
// the dispatcher was created by the scheduler, waits for it to finish.
func (s *Scheduler) Close() {
	s.Pause()
	for _, f := range s.cleanup {
		f()
	}
	s.cleanup = nil
	if d, ok := s.sender.(*Dispatcher); ok && s.ownsSender {
		d.Close()
	}
}

package playback

import (
	"github.com/sirupsen/logrus"
	"github.com/vsariola/lumo"
)

type (
	// Clock is the single source of truth for the logical position. While
	// playing, the position follows the audio engine's clock; audio buffers
	// registered with the clock are started so that their read offset matches
	// the position.
	Clock struct {
		engine        lumo.AudioEngine
		tempo         lumo.Tempo
		position      float64
		startTime     float64
		startPosition float64
		playing       bool
		buffers       map[string]*registration
		diagnostics   Diagnostics
		log           *logrus.Entry
	}

	// Diagnostics counts non-fatal anomalies noticed by the clock.
	Diagnostics struct {
		// NegativeOffsets counts buffers registered after the position had
		// not yet reached their start. They are started from the beginning.
		NegativeOffsets int
		StartFailures   int
	}

	registration struct {
		buffer lumo.AudioBuffer
		start  float64
		source lumo.BufferSource // nil while paused
	}
)

func NewClock(engine lumo.AudioEngine, tempo lumo.Tempo, log *logrus.Entry) *Clock {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Clock{
		engine:  engine,
		tempo:   tempo,
		buffers: map[string]*registration{},
		log:     log.WithField("component", "clock"),
	}
}

func (c *Clock) TickToSeconds(ticks float64) float64 { return c.tempo.TicksToSeconds(ticks) }

func (c *Clock) SecondsToTicks(seconds float64) float64 { return c.tempo.SecondsToTicks(seconds) }

func (c *Clock) Tempo() lumo.Tempo { return c.tempo }

func (c *Clock) Position() float64 { return c.position }

func (c *Clock) Playing() bool { return c.playing }

func (c *Clock) Diagnostics() Diagnostics { return c.diagnostics }

// Registered reports whether a buffer is registered under id, either
// playing or waiting for the next Play.
func (c *Clock) Registered(id string) bool {
	_, ok := c.buffers[id]
	return ok
}

// UpdatePosition advances the position by the engine time elapsed since the
// last Play. No-op while paused.
func (c *Clock) UpdatePosition() {
	if !c.playing {
		return
	}
	c.position = c.startPosition + c.SecondsToTicks(c.engine.CurrentTime()-c.startTime)
}

// Play starts following the engine clock and starts all buffers registered
// while paused. Calling Play while playing does nothing.
func (c *Clock) Play() {
	if c.playing {
		return
	}
	c.startTime = c.engine.CurrentTime()
	c.startPosition = c.position
	c.playing = true
	for id, r := range c.buffers {
		c.start(id, r)
	}
}

// Pause stops and forgets every registered buffer. If updatePosition is
// true, the position is first advanced to the current engine time. Calling
// Pause while paused only clears the registrations.
func (c *Clock) Pause(updatePosition bool) {
	if updatePosition {
		c.UpdatePosition()
	}
	for id, r := range c.buffers {
		if r.source != nil {
			r.source.Stop()
		}
		delete(c.buffers, id)
	}
	c.playing = false
}

// Seek pauses, moves the position to tick and resumes if the clock was
// playing.
func (c *Clock) Seek(tick float64) {
	wasPlaying := c.playing
	c.Pause(false)
	c.position = tick
	if wasPlaying {
		c.Play()
	}
}

// SetTempo changes the tempo without moving the current position: the start
// of the running interval is re-based to now.
func (c *Clock) SetTempo(tempo lumo.Tempo) {
	c.UpdatePosition()
	if c.playing {
		c.startTime = c.engine.CurrentTime()
		c.startPosition = c.position
	}
	c.tempo = tempo
}

// RegisterBuffer starts playing buffer so that its read offset corresponds
// to the distance between the current position and startTick. A buffer
// registered under the same id is stopped first. While paused, the buffer is
// started by the next Play.
func (c *Clock) RegisterBuffer(id string, buffer lumo.AudioBuffer, startTick float64) {
	c.UnregisterBuffer(id)
	r := &registration{buffer: buffer, start: startTick}
	c.buffers[id] = r
	if c.playing {
		c.start(id, r)
	}
}

// UnregisterBuffer stops the buffer registered under id.
func (c *Clock) UnregisterBuffer(id string) {
	r, ok := c.buffers[id]
	if !ok {
		return
	}
	if r.source != nil {
		r.source.Stop()
	}
	delete(c.buffers, id)
}

func (c *Clock) start(id string, r *registration) {
	c.UpdatePosition()
	offset := c.TickToSeconds(c.position - r.start)
	if offset < 0 {
		c.diagnostics.NegativeOffsets++
		c.log.WithFields(logrus.Fields{"buffer": id, "offset": offset}).Warn("negative buffer offset clamped to zero")
		offset = 0
	}
	source := c.engine.CreateBufferSource(r.buffer)
	if err := source.Start(offset); err != nil {
		c.diagnostics.StartFailures++
		c.log.WithError(err).WithField("buffer", id).Warn("starting buffer failed")
		return
	}
	r.source = source
}

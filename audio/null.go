package audio

import (
	"math"
	"sync"
	"time"

	"github.com/vsariola/lumo"
)

type (
	// NullEngine is a silent lumo.AudioEngine. Its clock either follows the
	// wall clock or, for a manual engine, moves only when advanced. It keeps
	// track of the sources started on it.
	NullEngine struct {
		mu       sync.Mutex
		manual   bool
		now      float64
		epoch    time.Time
		sources  []*NullSource
		analyser *Analyser
		volume   float64
	}

	NullSource struct {
		engine  *NullEngine
		Buffer  lumo.AudioBuffer
		Offset  float64
		playing bool
	}
)

// NewNullEngine returns an engine following the wall clock.
func NewNullEngine() *NullEngine {
	return &NullEngine{epoch: time.Now(), analyser: NewAnalyser(DefaultFFTSize), volume: 1}
}

// NewManualEngine returns an engine whose clock only moves with Advance.
func NewManualEngine() *NullEngine {
	return &NullEngine{manual: true, analyser: NewAnalyser(DefaultFFTSize), volume: 1}
}

func (e *NullEngine) Advance(seconds float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.now += seconds
}

func (e *NullEngine) CurrentTime() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.manual {
		return e.now
	}
	return time.Since(e.epoch).Seconds()
}

func (e *NullEngine) CreateBufferSource(buffer lumo.AudioBuffer) lumo.BufferSource {
	return &NullSource{engine: e, Buffer: buffer}
}

func (e *NullEngine) Analyser() lumo.Analyser { return e.analyser }

func (e *NullEngine) Volume() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.volume
}

func (e *NullEngine) SetVolume(v float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.volume = ClampVolume(v)
}

// ClampVolume limits v to [0,1]; NaN is silence.
func ClampVolume(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return min(v, 1)
}

// Playing returns the sources started and not yet stopped.
func (e *NullEngine) Playing() []*NullSource {
	e.mu.Lock()
	defer e.mu.Unlock()
	var ret []*NullSource
	for _, s := range e.sources {
		if s.playing {
			ret = append(ret, s)
		}
	}
	return ret
}

// Started returns the number of sources started so far.
func (e *NullEngine) Started() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.sources)
}

func (s *NullSource) Start(offset float64) error {
	s.engine.mu.Lock()
	defer s.engine.mu.Unlock()
	s.Offset = offset
	s.playing = true
	s.engine.sources = append(s.engine.sources, s)
	return nil
}

func (s *NullSource) Stop() {
	s.engine.mu.Lock()
	defer s.engine.mu.Unlock()
	s.playing = false
}

// Package oto implements lumo.AudioEngine on top of oto. All started sources
// are mixed into one player; the engine clock is derived from the number of
// frames that have left the player's buffer.
package oto

import (
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/vsariola/lumo"
	"github.com/vsariola/lumo/audio"
)

type (
	Engine struct {
		context  *oto.Context
		player   *oto.Player
		mixer    *Mixer
		mu       sync.Mutex
		lastTime float64
	}

	// Mixer is an io.Reader producing float32 little endian stereo frames,
	// the sum of all playing voices.
	Mixer struct {
		mu       sync.Mutex
		voices   []*voice
		frames   int64
		mix      [][2]float32
		volume   float32
		analyser *audio.Analyser
	}

	voice struct {
		mixer   *Mixer
		buffer  lumo.AudioBuffer
		pos     int
		playing bool
		queued  bool // in mixer.voices
	}
)

const DefaultLatency = 50 * time.Millisecond

// NewEngine opens the default audio device. latency is the size of the
// device buffer; zero means DefaultLatency.
func NewEngine(latency time.Duration) (*Engine, error) {
	if latency <= 0 {
		latency = DefaultLatency
	}
	context, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   lumo.SampleRate,
		ChannelCount: 2,
		Format:       oto.FormatFloat32LE,
		BufferSize:   latency,
	})
	if err != nil {
		return nil, fmt.Errorf("cannot create oto context: %w", err)
	}
	<-ready
	e := &Engine{context: context, mixer: NewMixer()}
	e.player = context.NewPlayer(e.mixer)
	e.player.Play()
	return e, nil
}

// CurrentTime returns the time of the frame currently heard, i.e. the frames
// read by the player minus what is still in its buffer.
func (e *Engine) CurrentTime() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	frames := e.mixer.Frames() - int64(e.player.BufferedSize()/bytesPerFrame)
	t := float64(frames) / lumo.SampleRate
	// the buffered size is sampled separately from the frame count
	if t < e.lastTime {
		t = e.lastTime
	}
	e.lastTime = t
	return t
}

func (e *Engine) CreateBufferSource(buffer lumo.AudioBuffer) lumo.BufferSource {
	return e.mixer.NewSource(buffer)
}

func (e *Engine) Analyser() lumo.Analyser { return e.mixer.analyser }

func (e *Engine) Volume() float64 { return e.mixer.Volume() }

func (e *Engine) SetVolume(v float64) { e.mixer.SetVolume(v) }

func (e *Engine) Close() error {
	if err := e.player.Close(); err != nil {
		return fmt.Errorf("cannot close oto player: %w", err)
	}
	return nil
}

func NewMixer() *Mixer {
	return &Mixer{analyser: audio.NewAnalyser(audio.DefaultFFTSize), volume: 1}
}

func (m *Mixer) Volume() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return float64(m.volume)
}

// SetVolume sets the gain applied to the mix. The analyser sees the mix
// before the gain, so the volume does not change what graphs react to.
func (m *Mixer) SetVolume(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.volume = float32(audio.ClampVolume(v))
}

// NewSource returns a stopped voice playing buffer.
func (m *Mixer) NewSource(buffer lumo.AudioBuffer) lumo.BufferSource {
	return &voice{mixer: m, buffer: buffer}
}

// Frames returns the number of frames read from the mixer so far.
func (m *Mixer) Frames() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frames
}

// Read mixes len(p)/8 frames into p. It never fails and never returns less
// than requested; silence is produced when nothing plays.
func (m *Mixer) Read(p []byte) (int, error) {
	n := len(p) / bytesPerFrame
	m.mu.Lock()
	if cap(m.mix) < n {
		m.mix = make([][2]float32, n)
	}
	mix := m.mix[:n]
	clear(mix)
	voices := m.voices[:0]
	for _, v := range m.voices {
		if !v.playing {
			v.queued = false
			continue
		}
		for i := 0; i < n && v.pos < len(v.buffer); i++ {
			mix[i][0] += v.buffer[v.pos][0]
			mix[i][1] += v.buffer[v.pos][1]
			v.pos++
		}
		if v.pos >= len(v.buffer) {
			v.playing, v.queued = false, false
			continue
		}
		voices = append(voices, v)
	}
	clear(m.voices[len(voices):])
	m.voices = voices
	m.frames += int64(n)
	gain := m.volume
	m.mu.Unlock()
	m.analyser.Write(mix)
	if gain != 1 {
		for i := range mix {
			mix[i][0] *= gain
			mix[i][1] *= gain
		}
	}
	return len(FramesToFloat32LE(mix, p[:0])), nil
}

func (v *voice) Start(offset float64) error {
	if offset < 0 {
		return fmt.Errorf("negative offset %v", offset)
	}
	m := v.mixer
	m.mu.Lock()
	defer m.mu.Unlock()
	v.pos = int(offset * lumo.SampleRate)
	v.playing = true
	if !v.queued {
		v.queued = true
		m.voices = append(m.voices, v)
	}
	return nil
}

func (v *voice) Stop() {
	m := v.mixer
	m.mu.Lock()
	defer m.mu.Unlock()
	v.playing = false
}

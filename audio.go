package lumo

// SampleRate is the sample rate of all decoded audio buffers and of the audio
// engine.
const SampleRate = 44100

type (
	// AudioBuffer is a buffer of stereo frames at SampleRate.
	AudioBuffer [][2]float32

	// AudioEngine is the real-time audio collaborator. The playback clock
	// reads CurrentTime to follow the engine and starts BufferSources aligned
	// to segment start times. Implementations render audio in their own
	// goroutine; every method must be safe to call from the playback loop.
	AudioEngine interface {
		// CurrentTime returns the engine clock in seconds. It must be
		// monotonic.
		CurrentTime() float64
		CreateBufferSource(buffer AudioBuffer) BufferSource
		Analyser() Analyser
		// Volume is the master gain in [0,1]. SetVolume clamps to that
		// range.
		Volume() float64
		SetVolume(v float64)
	}

	// BufferSource plays one AudioBuffer once.
	BufferSource interface {
		// Start starts playback immediately, skipping offset seconds from the
		// beginning of the buffer.
		Start(offset float64) error
		// Stop stops playback immediately. Stopping a stopped source is a
		// no-op.
		Stop()
	}

	// Analyser produces snapshots of the most recently rendered audio.
	Analyser interface {
		Snapshot() AudioSnapshot
	}

	// AudioSnapshot holds a time domain window of mono samples and its
	// frequency spectrum in decibels.
	AudioSnapshot struct {
		SampleRate int
		TimeDomain []float32
		Frequency  []float32
	}
)

// Duration returns the length of the buffer in seconds.
func (b AudioBuffer) Duration() float64 {
	return float64(len(b)) / SampleRate
}

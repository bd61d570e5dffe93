package audio

import (
	"math"
	"math/cmplx"
	"sync"

	"github.com/maddyblue/go-dsp/fft"
	"github.com/viterin/vek/vek32"
	"github.com/vsariola/lumo"
)

type (
	// Analyser keeps the most recently rendered samples, mixed to mono, and
	// computes snapshots of them. Write is called from the audio goroutine,
	// Snapshot from the playback loop.
	Analyser struct {
		mu      sync.Mutex
		history []float32 // ring buffer
		pos     int
		temp    analyserTemp
	}

	analyserTemp struct {
		power      []float32
		window     []float32 // Hann window
		normFactor float32   // normalization factor, to account for the windowing
		samples    []float64
		tmp1, tmp2 []float32
	}
)

// DefaultFFTSize is the number of samples in a snapshot. The frequency
// spectrum has half as many bins.
const DefaultFFTSize = 2048

// Smoothing is the weight of the previous spectrum when a new one is
// computed.
const Smoothing = 0.8

// minPower keeps silent bins finite in decibels (-120 dB).
const minPower = 1e-12

func NewAnalyser(size int) *Analyser {
	if size < 2 || size&(size-1) != 0 {
		size = DefaultFFTSize
	}
	a := &Analyser{history: make([]float32, size)}
	a.temp = analyserTemp{
		power:   make([]float32, size/2),
		window:  make([]float32, size),
		samples: make([]float64, size),
		tmp1:    make([]float32, size),
		tmp2:    make([]float32, size),
	}
	for i := range size {
		w := float32(0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(size-1))))
		a.temp.window[i] = w
		a.temp.normFactor += w
	}
	return a
}

// Write appends the frames to the history.
func (a *Analyser) Write(frames [][2]float32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, f := range frames {
		a.history[a.pos] = (f[0] + f[1]) / 2
		a.pos = (a.pos + 1) % len(a.history)
	}
}

// Snapshot returns the history in chronological order and its smoothed power
// spectrum in decibels, excluding DC.
func (a *Analyser) Snapshot() lumo.AudioSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := len(a.history)
	timeDomain := make([]float32, n)
	copy(timeDomain, a.history[a.pos:])
	copy(timeDomain[n-a.pos:], a.history[:a.pos])

	t := &a.temp
	copy(t.tmp1, timeDomain)
	vek32.Mul_Inplace(t.tmp1, t.window)
	for i, v := range t.tmp1 {
		t.samples[i] = float64(v)
	}
	spectrum := fft.FFTReal(t.samples)
	m := n / 2
	t1, t2 := t.tmp1[:m], t.tmp2[:m]
	for i := 0; i < m; i++ {
		t1[i] = float32(cmplx.Abs(spectrum[1+i]))
	}
	vek32.Mul_Into(t2, t1, t1)
	vek32.DivNumber_Inplace(t2, t.normFactor*t.normFactor)
	// real input: fold the negative frequencies, except Nyquist
	vek32.MulNumber_Inplace(t2[:m-1], 2)
	vek32.MulNumber_Inplace(t.power, Smoothing)
	vek32.MulNumber_Inplace(t2, 1-Smoothing)
	vek32.Add_Inplace(t.power, t2)

	frequency := make([]float32, m)
	for i, p := range t.power {
		frequency[i] = max(p, minPower)
	}
	vek32.Log10_Inplace(frequency)
	vek32.MulNumber_Inplace(frequency, 10)
	return lumo.AudioSnapshot{SampleRate: lumo.SampleRate, TimeDomain: timeDomain, Frequency: frequency}
}

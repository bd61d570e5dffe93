package audio_test

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/vsariola/lumo"
	"github.com/vsariola/lumo/audio"
)

func writeWav(t *testing.T, rate int, data []int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("cannot create file: %v", err)
	}
	defer f.Close()
	enc := wav.NewEncoder(f, rate, 16, 2, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 2, SampleRate: rate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("cannot write wav: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("cannot close wav: %v", err)
	}
	return path
}

func TestDecodeWav(t *testing.T) {
	path := writeWav(t, lumo.SampleRate, []int{16384, -16384, 0, 32767})
	buf, err := audio.DecodeFile(path)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(buf) != 2 {
		t.Fatalf("got %v frames, want 2", len(buf))
	}
	if buf[0] != [2]float32{0.5, -0.5} {
		t.Fatalf("got first frame %v", buf[0])
	}
}

func TestDecodeWavResamples(t *testing.T) {
	data := make([]int, 2*22050)
	path := writeWav(t, 22050, data)
	buf, err := audio.DecodeFile(path)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(buf) != lumo.SampleRate {
		t.Fatalf("got %v frames, want %v", len(buf), lumo.SampleRate)
	}
	if d := buf.Duration(); math.Abs(d-1) > 1e-9 {
		t.Fatalf("got duration %v, want 1", d)
	}
}

func TestDecodeGarbage(t *testing.T) {
	_, err := audio.Decode(bytes.NewReader([]byte("this is not audio at all")))
	if !lumo.IsKind(err, lumo.AudioDecodeError) {
		t.Fatalf("expected an audio decode error, got %v", err)
	}
	_, err = audio.DecodeFile(filepath.Join(t.TempDir(), "missing.mp3"))
	if !lumo.IsKind(err, lumo.AudioDecodeError) {
		t.Fatalf("expected an audio decode error, got %v", err)
	}
}

func TestResample(t *testing.T) {
	in := lumo.AudioBuffer{{0, 0}, {1, -1}}
	out := audio.Resample(in, 1, 2)
	want := lumo.AudioBuffer{{0, 0}, {0.5, -0.5}, {1, -1}, {1, -1}}
	if len(out) != len(want) {
		t.Fatalf("got %v, want %v", out, want)
	}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("got %v, want %v", out, want)
		}
	}
}

func TestAnalyserPeak(t *testing.T) {
	const n = 1024
	a := audio.NewAnalyser(n)
	frames := make([][2]float32, n)
	bin := 64
	for i := range frames {
		v := float32(math.Sin(2 * math.Pi * float64(bin) * float64(i) / n))
		frames[i] = [2]float32{v, v}
	}
	a.Write(frames)
	s := a.Snapshot()
	if len(s.TimeDomain) != n || len(s.Frequency) != n/2 {
		t.Fatalf("got lengths %v, %v", len(s.TimeDomain), len(s.Frequency))
	}
	if s.TimeDomain[1] != frames[1][0] {
		t.Fatalf("time domain not in chronological order")
	}
	peak := 0
	for i, v := range s.Frequency {
		if v > s.Frequency[peak] {
			peak = i
		}
	}
	// the spectrum excludes DC, so bin k is at index k-1
	if peak != bin-1 {
		t.Fatalf("got peak at %v, want %v", peak, bin-1)
	}
}

func TestManualEngine(t *testing.T) {
	e := audio.NewManualEngine()
	e.Advance(1.5)
	if e.CurrentTime() != 1.5 {
		t.Fatalf("got time %v", e.CurrentTime())
	}
	src := e.CreateBufferSource(lumo.AudioBuffer{{0, 0}})
	if err := src.Start(0.25); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if p := e.Playing(); len(p) != 1 || p[0].Offset != 0.25 {
		t.Fatalf("unexpected playing sources %v", p)
	}
	src.Stop()
	if len(e.Playing()) != 0 {
		t.Fatalf("source should be stopped")
	}
}

func TestWriteWav(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("cannot create file: %v", err)
	}
	if err := audio.WriteWav(f, lumo.AudioBuffer{{0.5, -0.5}, {2, -2}}); err != nil {
		t.Fatalf("WriteWav failed: %v", err)
	}
	f.Close()
	buf, err := audio.DecodeFile(path)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(buf) != 2 {
		t.Fatalf("got %v frames, want 2", len(buf))
	}
	if math.Abs(float64(buf[0][0])-0.5) > 1e-3 || buf[1][1] != -1 {
		t.Fatalf("got frames %v", buf)
	}
}

func TestNullEngineVolume(t *testing.T) {
	e := audio.NewManualEngine()
	if e.Volume() != 1 {
		t.Fatalf("default volume = %v, want 1", e.Volume())
	}
	for _, tc := range []struct{ set, want float64 }{{0.3, 0.3}, {-1, 0}, {2, 1}, {math.NaN(), 0}} {
		e.SetVolume(tc.set)
		if e.Volume() != tc.want {
			t.Errorf("SetVolume(%v) gave %v, want %v", tc.set, e.Volume(), tc.want)
		}
	}
}

package audio

import (
	"fmt"
	"io"
	"math"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/vsariola/lumo"
)

// WriteWav writes frames as a 16-bit stereo wav file at lumo.SampleRate.
func WriteWav(w io.WriteSeeker, frames lumo.AudioBuffer) error {
	data := make([]int, 2*len(frames))
	for i, f := range frames {
		data[2*i] = pcm16(f[0])
		data[2*i+1] = pcm16(f[1])
	}
	enc := wav.NewEncoder(w, lumo.SampleRate, 16, 2, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 2, SampleRate: lumo.SampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("could not write wav data: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("could not finish wav file: %w", err)
	}
	return nil
}

func pcm16(v float32) int {
	return min(max(int(v*math.MaxInt16), math.MinInt16), math.MaxInt16)
}

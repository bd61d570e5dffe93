// Package audio decodes audio files into lumo.AudioBuffers and implements
// the analyser and a silent engine for running without a sound card.
package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/vsariola/lumo"
)

// DecodeFile decodes a wav or mp3 file. The format is detected from the
// content, not from the file name.
func DecodeFile(path string) (lumo.AudioBuffer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, lumo.Wrapf(err, lumo.AudioDecodeError, fmt.Sprintf("cannot read %v", path))
	}
	buf, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, lumo.Wrapf(err, lumo.AudioDecodeError, fmt.Sprintf("cannot decode %v", path))
	}
	return buf, nil
}

// Decode decodes wav or mp3 data and resamples it to lumo.SampleRate.
func Decode(r io.ReadSeeker) (lumo.AudioBuffer, error) {
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, lumo.Wrapf(err, lumo.AudioDecodeError, "cannot read header")
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, lumo.Wrapf(err, lumo.AudioDecodeError, "cannot rewind")
	}
	if string(magic[:]) == "RIFF" {
		return decodeWav(r)
	}
	return decodeMp3(r)
}

func decodeWav(r io.ReadSeeker) (lumo.AudioBuffer, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return nil, lumo.Errorf(lumo.AudioDecodeError, "invalid wav file")
	}
	pcm, err := d.FullPCMBuffer()
	if err != nil {
		return nil, lumo.Wrapf(err, lumo.AudioDecodeError, "cannot read wav data")
	}
	channels := pcm.Format.NumChannels
	if channels < 1 || pcm.Format.SampleRate <= 0 || pcm.SourceBitDepth < 1 {
		return nil, lumo.Errorf(lumo.AudioDecodeError, "invalid wav format")
	}
	scale := float32(1) / float32(int(1)<<(pcm.SourceBitDepth-1))
	frames := make(lumo.AudioBuffer, len(pcm.Data)/channels)
	for i := range frames {
		left := float32(pcm.Data[i*channels]) * scale
		right := left
		if channels > 1 {
			right = float32(pcm.Data[i*channels+1]) * scale
		}
		frames[i] = [2]float32{left, right}
	}
	return Resample(frames, pcm.Format.SampleRate, lumo.SampleRate), nil
}

func decodeMp3(r io.Reader) (lumo.AudioBuffer, error) {
	d, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, lumo.Wrapf(err, lumo.AudioDecodeError, "invalid mp3 file")
	}
	data, err := io.ReadAll(d)
	if err != nil {
		return nil, lumo.Wrapf(err, lumo.AudioDecodeError, "cannot read mp3 data")
	}
	// the decoder always produces 16-bit little endian stereo
	frames := make(lumo.AudioBuffer, len(data)/4)
	for i := range frames {
		l := int16(binary.LittleEndian.Uint16(data[i*4:]))
		r := int16(binary.LittleEndian.Uint16(data[i*4+2:]))
		frames[i] = [2]float32{float32(l) / 32768, float32(r) / 32768}
	}
	return Resample(frames, d.SampleRate(), lumo.SampleRate), nil
}

// Resample converts frames from one sample rate to another with linear
// interpolation.
func Resample(frames lumo.AudioBuffer, from, to int) lumo.AudioBuffer {
	if from == to || len(frames) == 0 {
		return frames
	}
	n := int(int64(len(frames)) * int64(to) / int64(from))
	ret := make(lumo.AudioBuffer, n)
	step := float64(from) / float64(to)
	for i := range ret {
		p := float64(i) * step
		j := int(p)
		f := float32(p - float64(j))
		a := frames[j]
		b := a
		if j+1 < len(frames) {
			b = frames[j+1]
		}
		ret[i] = [2]float32{a[0] + (b[0]-a[0])*f, a[1] + (b[1]-a[1])*f}
	}
	return ret
}

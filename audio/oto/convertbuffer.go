package oto

import (
	"encoding/binary"
	"math"
)

const bytesPerFrame = 8

// FramesToFloat32LE encodes stereo frames as interleaved float32 little
// endian samples, appending to dst. Samples are clamped to [-1,1].
func FramesToFloat32LE(frames [][2]float32, dst []byte) []byte {
	for _, f := range frames {
		for _, v := range f {
			v = min(max(v, -1), 1)
			dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(v))
		}
	}
	return dst
}

package audioio

import (
	"encoding/binary"
	"math"
)

// BytesToSamples decodes little-endian PCM16. A trailing odd byte is ignored.
func BytesToSamples(data []byte) []int16 {
	out := make([]int16, len(data)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(data[2*i:]))
	}
	return out
}

// SamplesToBytes encodes samples as little-endian PCM16.
func SamplesToBytes(samples []int16) []byte {
	out := make([]byte, 0, len(samples)*2)
	for _, s := range samples {
		out = binary.LittleEndian.AppendUint16(out, uint16(s))
	}
	return out
}

// Downmix averages interleaved frames of the given channel count into mono.
// A partial frame at the end is dropped.
func Downmix(samples []int16, channels int) []int16 {
	if channels <= 1 {
		return samples
	}
	mono := make([]int16, len(samples)/channels)
	for i := range mono {
		var sum int32
		for _, s := range samples[i*channels : (i+1)*channels] {
			sum += int32(s)
		}
		mono[i] = int16(sum / int32(channels))
	}
	return mono
}

// FloatToSample converts a [-1, 1] float sample to PCM16, clipping.
func FloatToSample(v float64) int16 {
	if math.IsNaN(v) {
		return 0
	}
	return int16(math.Max(-1, math.Min(1, v)) * math.MaxInt16)
}

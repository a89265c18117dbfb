package audio

import (
	"encoding/binary"
	"math"
	"time"
)

// BytesPerSample for 16-bit mono PCM.
const BytesPerSample = 2

// Normalize converts little-endian int16 PCM to float32 samples in [-1, 1).
// A trailing odd byte is ignored.
func Normalize(pcm []byte) []float32 {
	n := len(pcm) / BytesPerSample
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		s := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		out[i] = float32(s) / 32768.0
	}
	return out
}

// Int16s decodes little-endian PCM into raw samples.
func Int16s(pcm []byte) []int16 {
	n := len(pcm) / BytesPerSample
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		out[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	return out
}

// FloatToPCM encodes float samples back into little-endian int16, clamping
// to the representable range.
func FloatToPCM(samples []float32) []byte {
	out := make([]byte, len(samples)*BytesPerSample)
	for i, s := range samples {
		v := math.Round(float64(s) * 32768.0)
		if v > math.MaxInt16 {
			v = math.MaxInt16
		} else if v < math.MinInt16 {
			v = math.MinInt16
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(v)))
	}
	return out
}

// SamplesFor returns how many samples d spans at rate.
func SamplesFor(d time.Duration, rate int) int {
	return int(int64(rate) * int64(d) / int64(time.Second))
}

// PadToMin zero-pads samples to at least min entries.
func PadToMin(samples []float32, min int) []float32 {
	if len(samples) >= min {
		return samples
	}
	out := make([]float32, min)
	copy(out, samples)
	return out
}

// RMS returns the root-mean-square amplitude of raw samples.
func RMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		f := float64(s)
		sum += f * f
	}
	return math.Sqrt(sum / float64(len(samples)))
}

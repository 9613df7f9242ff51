// Package audio provides PCM helpers shared by the Voxgate pipeline: format
// descriptions, frame/duration arithmetic, energy measurement, format
// conversion, and WAV container encoding.
//
// All functions operate on 16-bit signed little-endian PCM, the only sample
// encoding the gateway accepts.
package audio

import (
	"encoding/binary"
	"math"
	"time"
)

// BytesPerSample is fixed at 2 for 16-bit signed little-endian PCM.
const BytesPerSample = 2

// Format describes the sample rate and channel count of a PCM stream.
type Format struct {
	// SampleRate in Hz (e.g., 16000 for recognition input, 48000 for
	// high-quality capture).
	SampleRate int

	// Channels: 1 for mono, 2 for interleaved stereo.
	Channels int
}

// FrameBytes returns the byte length of one analysis window of frameMs
// milliseconds in format f. Returns 0 for invalid inputs.
func FrameBytes(f Format, frameMs int) int {
	if f.SampleRate <= 0 || f.Channels <= 0 || frameMs <= 0 {
		return 0
	}
	return f.SampleRate * frameMs / 1000 * BytesPerSample * f.Channels
}

// Duration returns the playback duration of n bytes of PCM in format f.
// Returns 0 for invalid inputs.
func Duration(n int, f Format) time.Duration {
	if f.SampleRate <= 0 || f.Channels <= 0 || n <= 0 {
		return 0
	}
	bytesPerSec := f.SampleRate * f.Channels * BytesPerSample
	return time.Duration(n) * time.Second / time.Duration(bytesPerSec)
}

// RMS returns the root-mean-square energy of a 16-bit signed little-endian
// PCM buffer, expressed in the same units as PCM sample values (0 to 32767).
// Returns 0 for buffers shorter than one sample.
func RMS(pcm []byte) float64 {
	n := len(pcm) / BytesPerSample
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		sample := int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
		v := float64(sample)
		sum += v * v
	}
	return math.Sqrt(sum / float64(n))
}

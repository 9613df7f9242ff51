package audio

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"
	"time"
)

// pcm16 packs int16 samples as little-endian bytes.
func pcm16(samples ...int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

func TestFrameBytes(t *testing.T) {
	tests := []struct {
		name    string
		f       Format
		frameMs int
		want    int
	}{
		{"16k mono 32ms", Format{16000, 1}, 32, 1024},
		{"16k mono 20ms", Format{16000, 1}, 20, 640},
		{"48k stereo 10ms", Format{48000, 2}, 10, 1920},
		{"zero rate", Format{0, 1}, 32, 0},
		{"zero channels", Format{16000, 0}, 32, 0},
		{"zero frame", Format{16000, 1}, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FrameBytes(tt.f, tt.frameMs); got != tt.want {
				t.Errorf("FrameBytes(%+v, %d) = %d, want %d", tt.f, tt.frameMs, got, tt.want)
			}
		})
	}
}

func TestDuration(t *testing.T) {
	f := Format{SampleRate: 16000, Channels: 1}
	if got := Duration(32000, f); got != time.Second {
		t.Errorf("Duration(32000, 16k mono) = %v, want 1s", got)
	}
	if got := Duration(32000, Format{SampleRate: 16000, Channels: 2}); got != 500*time.Millisecond {
		t.Errorf("Duration(32000, 16k stereo) = %v, want 500ms", got)
	}
	if got := Duration(0, f); got != 0 {
		t.Errorf("Duration(0) = %v, want 0", got)
	}
}

func TestRMS(t *testing.T) {
	if got := RMS(nil); got != 0 {
		t.Errorf("RMS(nil) = %v, want 0", got)
	}
	if got := RMS(pcm16(0, 0, 0, 0)); got != 0 {
		t.Errorf("RMS(silence) = %v, want 0", got)
	}
	// Constant amplitude: RMS equals the amplitude.
	if got := RMS(pcm16(1000, -1000, 1000, -1000)); math.Abs(got-1000) > 0.01 {
		t.Errorf("RMS(square wave 1000) = %v, want 1000", got)
	}
}

func TestStereoToMono(t *testing.T) {
	// Frames: (100, 200) -> 150, (-300, 100) -> -100.
	stereo := pcm16(100, 200, -300, 100)
	want := pcm16(150, -100)
	if got := StereoToMono(stereo); !bytes.Equal(got, want) {
		t.Errorf("StereoToMono = %v, want %v", got, want)
	}
}

func TestMonoToStereo(t *testing.T) {
	mono := pcm16(7, -9)
	want := pcm16(7, 7, -9, -9)
	if got := MonoToStereo(mono); !bytes.Equal(got, want) {
		t.Errorf("MonoToStereo = %v, want %v", got, want)
	}
}

func TestResampleMono16(t *testing.T) {
	src := pcm16(0, 100, 200, 300)

	// Same rate: unchanged, same backing slice.
	if got := ResampleMono16(src, 16000, 16000); &got[0] != &src[0] {
		t.Error("ResampleMono16 with equal rates did not return the input")
	}

	// Downsample 2:1 keeps every other sample exactly.
	got := ResampleMono16(src, 32000, 16000)
	if want := pcm16(0, 200); !bytes.Equal(got, want) {
		t.Errorf("2:1 downsample = %v, want %v", got, want)
	}

	// Upsample 1:2 doubles the sample count and interpolates midpoints.
	got = ResampleMono16(src, 16000, 32000)
	if len(got) != len(src)*2 {
		t.Fatalf("1:2 upsample length = %d, want %d", len(got), len(src)*2)
	}
	if want := pcm16(0, 50, 100, 150, 200, 250, 300, 300); !bytes.Equal(got, want) {
		t.Errorf("1:2 upsample = %v, want %v", got, want)
	}
}

func TestConverterPassthrough(t *testing.T) {
	c := Converter{Target: Format{SampleRate: 16000, Channels: 1}}
	src := pcm16(1, 2, 3)
	got := c.Convert(src, Format{SampleRate: 16000, Channels: 1})
	if &got[0] != &src[0] {
		t.Error("Convert with matching formats did not return the input unchanged")
	}
}

func TestConverterDownmixThenResample(t *testing.T) {
	c := Converter{Target: Format{SampleRate: 8000, Channels: 1}}
	// 4 stereo frames at 16kHz: downmix to (10, 30, 50, 70), then 2:1
	// resample to (10, 50).
	stereo := pcm16(0, 20, 20, 40, 40, 60, 60, 80)
	got := c.Convert(stereo, Format{SampleRate: 16000, Channels: 2})
	if want := pcm16(10, 50); !bytes.Equal(got, want) {
		t.Errorf("Convert = %v, want %v", got, want)
	}
}

func TestEncodeWAV(t *testing.T) {
	pcm := pcm16(1, 2, 3, 4)
	f := Format{SampleRate: 16000, Channels: 1}
	wav := EncodeWAV(pcm, f)

	if len(wav) != 44+len(pcm) {
		t.Fatalf("EncodeWAV length = %d, want %d", len(wav), 44+len(pcm))
	}
	if !bytes.Equal(wav[0:4], []byte("RIFF")) || !bytes.Equal(wav[8:12], []byte("WAVE")) {
		t.Error("missing RIFF/WAVE markers")
	}
	if got := binary.LittleEndian.Uint32(wav[4:8]); got != uint32(36+len(pcm)) {
		t.Errorf("RIFF size = %d, want %d", got, 36+len(pcm))
	}
	if got := binary.LittleEndian.Uint16(wav[22:24]); got != 1 {
		t.Errorf("channel count = %d, want 1", got)
	}
	if got := binary.LittleEndian.Uint32(wav[24:28]); got != 16000 {
		t.Errorf("sample rate = %d, want 16000", got)
	}
	if got := binary.LittleEndian.Uint32(wav[28:32]); got != 32000 {
		t.Errorf("byte rate = %d, want 32000", got)
	}
	if got := binary.LittleEndian.Uint32(wav[40:44]); got != uint32(len(pcm)) {
		t.Errorf("data size = %d, want %d", got, len(pcm))
	}
	if !bytes.Equal(wav[44:], pcm) {
		t.Error("payload does not match the source PCM")
	}
}

func TestDrain(t *testing.T) {
	ch := make(chan int, 3)
	ch <- 1
	ch <- 2
	close(ch)
	Drain(ch) // returns once the channel is exhausted
	if _, ok := <-ch; ok {
		t.Error("channel still delivered a value after Drain")
	}
}

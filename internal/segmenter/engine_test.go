package segmenter

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/asrlabs/voxgate/pkg/provider/vad/mock"
)

// Test geometry: 16kHz mono, 32ms windows of 512 samples (1024 bytes).
const (
	testRate        = 16000
	testFrameMs     = 32
	testFrameSmp    = 512
	testWindowBytes = testFrameSmp * 2
)

func testConfig() Config {
	return Config{
		SampleRate:  testRate,
		FrameSizeMs: testFrameMs,
		Threshold:   0.5,
		MinSilence:  64 * time.Millisecond, // 2 windows
		Padding:     32 * time.Millisecond, // 1 window
	}
}

// windows builds count analysis windows of ramped PCM so segment audio can be
// compared byte-for-byte against the source buffer.
func windows(count int) []byte {
	p := make([]byte, count*testWindowBytes)
	for i := range p {
		p[i] = byte(i)
	}
	return p
}

// repeat prefixes a probability sequence: n copies of each value in order.
func repeat(pairs ...struct {
	P float64
	N int
}) []float64 {
	var out []float64
	for _, pr := range pairs {
		for i := 0; i < pr.N; i++ {
			out = append(out, pr.P)
		}
	}
	return out
}

func pn(p float64, n int) struct {
	P float64
	N int
} {
	return struct {
		P float64
		N int
	}{p, n}
}

func TestNewValidation(t *testing.T) {
	det := &mock.Detector{}
	tests := []struct {
		name   string
		det    *mock.Detector
		mutate func(*Config)
	}{
		{"nil detector", nil, func(c *Config) {}},
		{"zero sample rate", det, func(c *Config) { c.SampleRate = 0 }},
		{"zero frame size", det, func(c *Config) { c.FrameSizeMs = 0 }},
		{"zero threshold", det, func(c *Config) { c.Threshold = 0 }},
		{"threshold above one", det, func(c *Config) { c.Threshold = 1.5 }},
		{"exit at threshold", det, func(c *Config) { c.ExitThreshold = 0.5 }},
		{"negative silence", det, func(c *Config) { c.MinSilence = -time.Second }},
		{"negative padding", det, func(c *Config) { c.Padding = -time.Second }},
		{"padding above silence", det, func(c *Config) {
			c.Padding = 200 * time.Millisecond
			c.MinSilence = 100 * time.Millisecond
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			var d *mock.Detector = tt.det
			if d == nil {
				if _, err := New(nil, cfg); err == nil {
					t.Error("New(nil detector) = nil error, want error")
				}
				return
			}
			if _, err := New(d, cfg); err == nil {
				t.Errorf("New with %s = nil error, want error", tt.name)
			}
		})
	}
}

func TestSilenceProducesNoSegments(t *testing.T) {
	det := &mock.Detector{Probabilities: []float64{0.1}}
	e, err := New(det, testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	segs, err := e.Consume(windows(20))
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if len(segs) != 0 {
		t.Errorf("Consume over silence returned %d segments, want 0", len(segs))
	}
	if _, ok := e.Flush(); ok {
		t.Error("Flush after silence reported an open segment")
	}
}

func TestSegmentBoundariesPadded(t *testing.T) {
	// Windows 1-4 silence, 5-14 speech, 15+ silence. The trigger at window 5
	// pads the start back one window; silence is confirmed two windows after
	// the tentative end at window 15, and the end pads forward one window.
	det := &mock.Detector{Probabilities: repeat(
		pn(0.1, 4), pn(0.9, 10), pn(0.1, 1),
	)}
	e, err := New(det, testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	src := windows(17)
	segs, err := e.Consume(src)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if len(segs) != 1 {
		t.Fatalf("Consume returned %d segments, want 1", len(segs))
	}

	seg := segs[0]
	wantStart := int64(5*testFrameSmp - testFrameSmp)  // 2048
	wantEnd := int64(15*testFrameSmp + testFrameSmp)   // 8192
	if seg.Start != wantStart || seg.End != wantEnd {
		t.Errorf("segment = [%d, %d), want [%d, %d)", seg.Start, seg.End, wantStart, wantEnd)
	}
	if got := seg.Samples(); got != wantEnd-wantStart {
		t.Errorf("Samples() = %d, want %d", got, wantEnd-wantStart)
	}
	if want := src[wantStart*2 : wantEnd*2]; !bytes.Equal(seg.PCM, want) {
		t.Error("segment PCM does not match the padded source region")
	}
}

func TestChunkSizeInvariance(t *testing.T) {
	probs := repeat(pn(0.1, 4), pn(0.9, 10), pn(0.1, 6), pn(0.9, 8), pn(0.1, 1))
	src := windows(40)

	consume := func(chunk int) []Segment {
		t.Helper()
		det := &mock.Detector{Probabilities: append([]float64(nil), probs...)}
		e, err := New(det, testConfig())
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		var segs []Segment
		for off := 0; off < len(src); off += chunk {
			end := off + chunk
			if end > len(src) {
				end = len(src)
			}
			s, err := e.Consume(src[off:end])
			if err != nil {
				t.Fatalf("Consume: %v", err)
			}
			segs = append(segs, s...)
		}
		return segs
	}

	whole := consume(len(src))
	if len(whole) != 2 {
		t.Fatalf("whole-buffer consume returned %d segments, want 2", len(whole))
	}

	for _, chunk := range []int{300, 1024, 4096} {
		got := consume(chunk)
		if len(got) != len(whole) {
			t.Fatalf("chunk=%d produced %d segments, want %d", chunk, len(got), len(whole))
		}
		for i := range whole {
			if got[i].Start != whole[i].Start || got[i].End != whole[i].End {
				t.Errorf("chunk=%d segment %d = [%d, %d), want [%d, %d)",
					chunk, i, got[i].Start, got[i].End, whole[i].Start, whole[i].End)
			}
			if !bytes.Equal(got[i].PCM, whole[i].PCM) {
				t.Errorf("chunk=%d segment %d PCM differs from whole-buffer result", chunk, i)
			}
		}
	}
}

func TestHysteresisBandDoesNotEndSegment(t *testing.T) {
	// A dip to 0.4 sits between the exit threshold (0.35) and the entry
	// threshold; it must neither end the segment nor start silence tracking.
	det := &mock.Detector{Probabilities: repeat(
		pn(0.9, 3), pn(0.4, 5), pn(0.9, 3), pn(0.1, 1),
	)}
	e, err := New(det, testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	segs, err := e.Consume(windows(14))
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if len(segs) != 1 {
		t.Fatalf("Consume returned %d segments, want 1 uninterrupted segment", len(segs))
	}
	// Trigger at window 1: start pads back to the stream origin.
	if segs[0].Start != 0 {
		t.Errorf("Start = %d, want 0", segs[0].Start)
	}
	// Tentative end at window 12, confirmed at window 14.
	if want := int64(12*testFrameSmp + testFrameSmp); segs[0].End != want {
		t.Errorf("End = %d, want %d", segs[0].End, want)
	}
}

func TestShortSilenceGapIsBridged(t *testing.T) {
	// One silent window mid-speech is shorter than the 2-window gate; speech
	// resuming cancels the tentative end.
	det := &mock.Detector{Probabilities: repeat(
		pn(0.9, 5), pn(0.1, 1), pn(0.9, 3), pn(0.1, 1),
	)}
	e, err := New(det, testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	segs, err := e.Consume(windows(12))
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if len(segs) != 1 {
		t.Fatalf("Consume returned %d segments, want 1", len(segs))
	}
	if segs[0].Start != 0 {
		t.Errorf("Start = %d, want 0", segs[0].Start)
	}
	// The bridged gap at window 6 must not shape the end: the tentative end
	// restarts at window 10 and is confirmed at window 12.
	if want := int64(10*testFrameSmp + testFrameSmp); segs[0].End != want {
		t.Errorf("End = %d, want %d", segs[0].End, want)
	}
}

func TestFlushEmitsOpenSegment(t *testing.T) {
	det := &mock.Detector{Probabilities: repeat(pn(0.1, 2), pn(0.9, 1))}
	e, err := New(det, testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	src := windows(10)
	segs, err := e.Consume(src)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if len(segs) != 0 {
		t.Fatalf("Consume returned %d segments before flush, want 0", len(segs))
	}

	seg, ok := e.Flush()
	if !ok {
		t.Fatal("Flush() reported no open segment")
	}
	wantStart := int64(3*testFrameSmp - testFrameSmp) // 1024
	wantEnd := int64(10 * testFrameSmp)               // stream end, no pad
	if seg.Start != wantStart || seg.End != wantEnd {
		t.Errorf("flushed segment = [%d, %d), want [%d, %d)", seg.Start, seg.End, wantStart, wantEnd)
	}
	if want := src[wantStart*2 : wantEnd*2]; !bytes.Equal(seg.PCM, want) {
		t.Error("flushed PCM does not match the source region")
	}

	// A second flush has nothing left to emit.
	if _, ok := e.Flush(); ok {
		t.Error("second Flush() reported an open segment")
	}
}

func TestFlushDiscardsSubWindowSegment(t *testing.T) {
	cfg := testConfig()
	cfg.Padding = 0
	cfg.MinSilence = 0

	// Trigger on the very last window: with no padding the open segment holds
	// zero classified samples at flush time.
	det := &mock.Detector{Probabilities: repeat(pn(0.1, 9), pn(0.9, 1))}
	e, err := New(det, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := e.Consume(windows(10)); err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if seg, ok := e.Flush(); ok {
		t.Errorf("Flush() emitted a %d-sample segment, want discard", seg.Samples())
	}
}

func TestStartPadClampsToStreamOrigin(t *testing.T) {
	// Speech from the first window with a two-window pad: the padded start
	// would be negative and must clamp to the stream origin.
	cfg := testConfig()
	cfg.Padding = 64 * time.Millisecond
	det := &mock.Detector{Probabilities: []float64{0.9}}
	e, err := New(det, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ev, err := e.Step(windows(1))
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if ev.Kind != EventStart || ev.Sample != 0 {
		t.Errorf("Step = %+v, want Start at sample 0", ev)
	}
}

func TestStepRejectsWrongWindowSize(t *testing.T) {
	e, err := New(&mock.Detector{}, testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := e.Step(make([]byte, 10)); err == nil {
		t.Error("Step with a short window = nil error, want error")
	}
}

func TestConsumeClassifierError(t *testing.T) {
	wantErr := errors.New("model load failed")
	det := &mock.Detector{ClassifyErr: wantErr}
	e, err := New(det, testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := e.Consume(windows(2)); !errors.Is(err, wantErr) {
		t.Errorf("Consume error = %v, want wrapped %v", err, wantErr)
	}
}

func TestReset(t *testing.T) {
	det := &mock.Detector{Probabilities: []float64{0.9}}
	e, err := New(det, testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := e.Consume(windows(5)); err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if e.CurrentSample() == 0 {
		t.Fatal("CurrentSample() = 0 before Reset, expected progress")
	}

	e.Reset()
	if got := e.CurrentSample(); got != 0 {
		t.Errorf("CurrentSample() after Reset = %d, want 0", got)
	}
	if det.ResetCallCount != 1 {
		t.Errorf("detector Reset called %d times, want 1", det.ResetCallCount)
	}
	if _, ok := e.Flush(); ok {
		t.Error("Flush after Reset reported an open segment")
	}
}

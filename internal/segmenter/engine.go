// Package segmenter carves a continuous PCM stream into bounded speech
// segments using a voice-activity detector.
//
// The engine is a triggered/untriggered state machine with hysteresis and
// symmetric padding: a window whose speech probability reaches the entry
// threshold opens a segment; the segment closes only after the probability
// has stayed below the (lower) exit threshold for a minimum silence
// duration. Both boundaries are padded outward so that speech onset and
// offset are not clipped.
//
// All state is single-owner: one engine per session, driven exclusively by
// that session's worker. Because the Framer buffers partial windows and the
// engine's state survives across calls, feeding a buffer to Consume in one
// call or in arbitrarily-sized sub-chunks produces identical segment
// boundaries.
package segmenter

import (
	"fmt"
	"time"

	"github.com/asrlabs/voxgate/pkg/audio"
	"github.com/asrlabs/voxgate/pkg/provider/vad"
)

// DefaultHysteresis is subtracted from the entry threshold to obtain the
// exit threshold when Config.ExitThreshold is zero.
const DefaultHysteresis = 0.15

// Config holds the segmentation parameters, fixed at engine creation.
type Config struct {
	// SampleRate is the mono sample rate of the stream in Hz.
	SampleRate int

	// FrameSizeMs is the analysis window duration in milliseconds.
	FrameSizeMs int

	// Threshold is the speech probability at or above which a window is
	// classified as speech. Typical: 0.5.
	Threshold float64

	// ExitThreshold is the probability below which an open segment is
	// considered to be ending. Zero means Threshold minus DefaultHysteresis.
	// Must be less than Threshold when set.
	ExitThreshold float64

	// MinSilence is the silence duration required before a tentative end is
	// confirmed. Typical: 500ms.
	MinSilence time.Duration

	// Padding is the symmetric pad applied to both segment boundaries.
	// Typical: 100ms.
	Padding time.Duration
}

// Engine consumes framed windows through a VAD detector and emits speech
// segments as they close. Not safe for concurrent use.
type Engine struct {
	det vad.Detector

	frameSamples      int64
	frameBytes        int
	threshold         float64
	exitThreshold     float64
	minSilenceSamples int64
	padSamples        int64

	framer *Framer

	// State machine, following Silero VADIterator semantics.
	triggered     bool
	pendingEnd    int64
	hasPendingEnd bool
	currentSample int64

	// Open-segment stitching state. openStart is meaningful only when open.
	open      bool
	openStart int64

	// history retains recent audio so padded boundaries can reach back in
	// time. historyStart is the sample offset of history[0].
	history      []byte
	historyStart int64
}

// New creates an Engine that classifies windows with det.
func New(det vad.Detector, cfg Config) (*Engine, error) {
	if det == nil {
		return nil, fmt.Errorf("segmenter: detector must not be nil")
	}
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("segmenter: sample rate %d is invalid", cfg.SampleRate)
	}
	if cfg.FrameSizeMs <= 0 {
		return nil, fmt.Errorf("segmenter: frame size %dms is invalid", cfg.FrameSizeMs)
	}
	if cfg.Threshold <= 0 || cfg.Threshold > 1 {
		return nil, fmt.Errorf("segmenter: threshold %.2f is out of range (0, 1]", cfg.Threshold)
	}
	exit := cfg.ExitThreshold
	if exit == 0 {
		exit = cfg.Threshold - DefaultHysteresis
	}
	if exit < 0 {
		exit = 0
	}
	if exit >= cfg.Threshold {
		return nil, fmt.Errorf("segmenter: exit threshold %.2f must be below threshold %.2f", exit, cfg.Threshold)
	}
	if cfg.MinSilence < 0 || cfg.Padding < 0 {
		return nil, fmt.Errorf("segmenter: negative silence or padding duration")
	}
	// End padding reaches past the confirmation point; the audio for it has
	// only arrived by then when padding does not exceed the silence gate.
	if cfg.Padding > cfg.MinSilence {
		return nil, fmt.Errorf("segmenter: padding %v must not exceed min silence %v", cfg.Padding, cfg.MinSilence)
	}

	frameSamples := int64(cfg.SampleRate) * int64(cfg.FrameSizeMs) / 1000
	if frameSamples == 0 {
		return nil, fmt.Errorf("segmenter: frame of %dms at %dHz contains no samples", cfg.FrameSizeMs, cfg.SampleRate)
	}
	frameBytes := int(frameSamples) * audio.BytesPerSample

	framer, err := NewFramer(frameBytes)
	if err != nil {
		return nil, err
	}

	return &Engine{
		det:               det,
		frameSamples:      frameSamples,
		frameBytes:        frameBytes,
		threshold:         cfg.Threshold,
		exitThreshold:     exit,
		minSilenceSamples: durationSamples(cfg.MinSilence, cfg.SampleRate),
		padSamples:        durationSamples(cfg.Padding, cfg.SampleRate),
		framer:            framer,
	}, nil
}

// durationSamples converts d to a sample count at the given rate.
func durationSamples(d time.Duration, sampleRate int) int64 {
	return int64(d) * int64(sampleRate) / int64(time.Second)
}

// CurrentSample returns the running count of classified samples. It is
// monotonically non-decreasing for the engine's lifetime.
func (e *Engine) CurrentSample() int64 {
	return e.currentSample
}

// FrameBytes returns the byte size of one analysis window.
func (e *Engine) FrameBytes() int {
	return e.frameBytes
}

// Step runs the state machine over exactly one analysis window and returns
// the boundary event it produced, if any. The window must be FrameBytes()
// bytes of 16-bit mono PCM.
func (e *Engine) Step(frame []byte) (Event, error) {
	if len(frame) != e.frameBytes {
		return Event{}, fmt.Errorf("segmenter: window is %d bytes, want %d", len(frame), e.frameBytes)
	}

	e.currentSample += e.frameSamples

	p, err := e.det.Classify(frame)
	if err != nil {
		return Event{}, fmt.Errorf("segmenter: classify window: %w", err)
	}

	// Speech resumed before silence was confirmed: cancel the tentative end.
	if p >= e.threshold && e.hasPendingEnd {
		e.hasPendingEnd = false
	}

	if p >= e.threshold && !e.triggered {
		e.triggered = true
		start := e.currentSample - e.padSamples
		if start < 0 {
			start = 0
		}
		return Event{Kind: EventStart, Sample: start}, nil
	}

	if p < e.exitThreshold && e.triggered {
		if !e.hasPendingEnd {
			e.pendingEnd = e.currentSample
			e.hasPendingEnd = true
		}
		if e.currentSample-e.pendingEnd < e.minSilenceSamples {
			// Still inside the allowed silence gap.
			return Event{Kind: EventNone}, nil
		}
		end := e.pendingEnd + e.padSamples
		e.hasPendingEnd = false
		e.triggered = false
		return Event{Kind: EventEnd, Sample: end}, nil
	}

	return Event{Kind: EventNone}, nil
}

// Consume frames p, runs every complete window through Step, and returns the
// speech segments that closed during this call, in order. Audio shorter than
// one window is buffered, not dropped. An open segment carries over to the
// next call unchanged.
func (e *Engine) Consume(p []byte) ([]Segment, error) {
	e.retain(p)

	var segs []Segment
	for _, frame := range e.framer.Push(p) {
		ev, err := e.Step(frame)
		if err != nil {
			return segs, err
		}
		switch ev.Kind {
		case EventStart:
			// Keep the earliest start if a segment is somehow still open.
			if !e.open {
				e.open = true
				e.openStart = ev.Sample
			}
		case EventEnd:
			if e.open {
				segs = append(segs, e.emit(ev.Sample))
			}
		}
	}
	e.trimHistory()
	return segs, nil
}

// Flush closes the stream. An open segment is emitted with its end at the
// current sample; segments shorter than one window are discarded, matching
// the short-segment filter applied to closed segments' source material. Any
// sub-window audio still buffered in the framer was never classified and is
// dropped with it.
func (e *Engine) Flush() (Segment, bool) {
	if !e.open {
		return Segment{}, false
	}
	seg := e.emit(e.currentSample)
	e.triggered = false
	e.hasPendingEnd = false
	if seg.Samples() < e.frameSamples {
		return Segment{}, false
	}
	return seg, true
}

// Reset returns the engine to its initial state for a fresh stream. The
// detector's own state is reset alongside.
func (e *Engine) Reset() {
	e.det.Reset()
	e.framer.Reset()
	e.triggered = false
	e.hasPendingEnd = false
	e.pendingEnd = 0
	e.currentSample = 0
	e.open = false
	e.openStart = 0
	e.history = nil
	e.historyStart = 0
}

// emit closes the open segment at end and returns it with its audio copied
// out of the retention buffer.
func (e *Engine) emit(end int64) Segment {
	start := e.openStart
	if start < e.historyStart {
		start = e.historyStart
	}
	if end < start {
		end = start
	}

	from := (start - e.historyStart) * audio.BytesPerSample
	to := (end - e.historyStart) * audio.BytesPerSample
	if to > int64(len(e.history)) {
		to = int64(len(e.history))
	}
	pcm := make([]byte, to-from)
	copy(pcm, e.history[from:to])

	e.open = false
	return Segment{Start: start, End: end, PCM: pcm}
}

// retain appends p to the history buffer before classification so that a
// Start event's padded offset can reach back into audio that preceded the
// triggering window.
func (e *Engine) retain(p []byte) {
	e.history = append(e.history, p...)
}

// trimHistory drops history no padded boundary can reach anymore. While a
// segment is open everything from its start onward is kept, since the
// segment's audio is materialized from this buffer when it closes.
func (e *Engine) trimHistory() {
	keepFrom := e.currentSample - (e.padSamples + e.minSilenceSamples + e.frameSamples)
	if e.open && e.openStart < keepFrom {
		keepFrom = e.openStart
	}
	if keepFrom <= e.historyStart {
		return
	}
	dropBytes := (keepFrom - e.historyStart) * audio.BytesPerSample
	if dropBytes > int64(len(e.history)) {
		dropBytes = int64(len(e.history))
		keepFrom = e.historyStart + dropBytes/audio.BytesPerSample
	}
	e.history = append([]byte(nil), e.history[dropBytes:]...)
	e.historyStart = keepFrom
}

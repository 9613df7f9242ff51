// Package energy provides a pure-Go VAD engine based on RMS energy levels.
//
// It maps the root-mean-square energy of each window onto a pseudo-probability
// between a configurable noise floor and full-speech level, with exponential
// smoothing across windows to avoid flickering near the boundary. It is not
// a substitute for a neural model on noisy input, but it needs no external
// runtime and is deterministic, which makes it the default engine for
// development and the reference engine for the test suite.
package energy

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/asrlabs/voxgate/pkg/audio"
	"github.com/asrlabs/voxgate/pkg/provider/vad"
)

const (
	// defaultNoiseFloorRMS is the RMS level (in 16-bit PCM units, max 32767)
	// at or below which a window scores probability 0. 300 corresponds to
	// near-silence on typical capture hardware.
	defaultNoiseFloorRMS = 300.0

	// defaultSpeechRMS is the RMS level at or above which a window scores
	// probability 1.
	defaultSpeechRMS = 3000.0

	// defaultSmoothing is the exponential moving average weight given to the
	// current window. 1.0 disables smoothing entirely.
	defaultSmoothing = 0.7
)

// Ensure Engine implements vad.Engine at compile time.
var _ vad.Engine = (*Engine)(nil)

// Option is a functional option for configuring an Engine.
type Option func(*Engine)

// WithNoiseFloor sets the RMS level mapped to probability 0.
func WithNoiseFloor(rms float64) Option {
	return func(e *Engine) { e.noiseFloor = rms }
}

// WithSpeechLevel sets the RMS level mapped to probability 1.
func WithSpeechLevel(rms float64) Option {
	return func(e *Engine) { e.speechLevel = rms }
}

// WithSmoothing sets the EMA weight of the current window, in (0, 1].
func WithSmoothing(alpha float64) Option {
	return func(e *Engine) { e.smoothing = alpha }
}

// Engine creates energy detectors. Safe for concurrent use; the engine itself
// carries only immutable configuration.
type Engine struct {
	noiseFloor  float64
	speechLevel float64
	smoothing   float64
}

// New creates an energy VAD engine with the given options applied over the
// defaults.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		noiseFloor:  defaultNoiseFloorRMS,
		speechLevel: defaultSpeechRMS,
		smoothing:   defaultSmoothing,
	}
	for _, o := range opts {
		o(e)
	}
	if e.noiseFloor < 0 || e.speechLevel <= e.noiseFloor {
		return nil, fmt.Errorf("energy: speech level %.0f must exceed noise floor %.0f", e.speechLevel, e.noiseFloor)
	}
	if e.smoothing <= 0 || e.smoothing > 1 {
		return nil, fmt.Errorf("energy: smoothing %.2f is out of range (0, 1]", e.smoothing)
	}
	return e, nil
}

// NewDetector creates a detector for one audio stream.
func (e *Engine) NewDetector(cfg vad.Config) (vad.Detector, error) {
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("energy: sample rate %d is invalid", cfg.SampleRate)
	}
	if cfg.FrameSizeMs <= 0 {
		return nil, fmt.Errorf("energy: frame size %dms is invalid", cfg.FrameSizeMs)
	}
	return &detector{
		engine:     e,
		frameBytes: audio.FrameBytes(audio.Format{SampleRate: cfg.SampleRate, Channels: 1}, cfg.FrameSizeMs),
	}, nil
}

// detector holds the per-stream smoothing state. Single-owner; not safe for
// concurrent use, matching the vad.Detector contract.
type detector struct {
	engine     *Engine
	frameBytes int

	mu       sync.Mutex
	smoothed float64
	primed   bool
	closed   bool
}

var errClosed = errors.New("energy: detector is closed")

// Classify maps the window's RMS energy onto [0, 1] and folds it into the
// running exponential average.
func (d *detector) Classify(frame []byte) (float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, errClosed
	}
	if len(frame) != d.frameBytes {
		return 0, fmt.Errorf("energy: frame is %d bytes, want %d", len(frame), d.frameBytes)
	}

	rms := audio.RMS(frame)
	p := (rms - d.engine.noiseFloor) / (d.engine.speechLevel - d.engine.noiseFloor)
	p = math.Min(1, math.Max(0, p))

	if !d.primed {
		d.smoothed = p
		d.primed = true
	} else {
		a := d.engine.smoothing
		d.smoothed = a*p + (1-a)*d.smoothed
	}
	return d.smoothed, nil
}

// Reset clears the smoothing history.
func (d *detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.smoothed = 0
	d.primed = false
}

// Close marks the detector closed. Safe to call more than once.
func (d *detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// Package mock provides test doubles for the vad package interfaces.
//
// Use Engine to verify that detectors are created with the expected Config.
// Use Detector to inject probability sequences and inspect the frames that
// were submitted for classification.
//
// Example:
//
//	det := &mock.Detector{Probabilities: []float64{0.1, 0.9, 0.9, 0.1}}
//	eng := &mock.Engine{Detector: det}
//	d, _ := eng.NewDetector(cfg)
package mock

import (
	"sync"

	"github.com/asrlabs/voxgate/pkg/provider/vad"
)

// NewDetectorCall records a single invocation of Engine.NewDetector.
type NewDetectorCall struct {
	// Cfg is the Config passed to NewDetector.
	Cfg vad.Config
}

// Engine is a mock implementation of vad.Engine.
type Engine struct {
	mu sync.Mutex

	// Detector is returned by NewDetector. If nil, NewDetector returns a new
	// default Detector.
	Detector vad.Detector

	// NewDetectorErr, if non-nil, is returned as the error from NewDetector.
	NewDetectorErr error

	// NewDetectorCalls records every call to NewDetector in order.
	NewDetectorCalls []NewDetectorCall
}

// NewDetector records the call and returns Detector, NewDetectorErr.
func (e *Engine) NewDetector(cfg vad.Config) (vad.Detector, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.NewDetectorCalls = append(e.NewDetectorCalls, NewDetectorCall{Cfg: cfg})
	if e.NewDetectorErr != nil {
		return nil, e.NewDetectorErr
	}
	if e.Detector != nil {
		return e.Detector, nil
	}
	return &Detector{}, nil
}

// Ensure Engine implements vad.Engine at compile time.
var _ vad.Engine = (*Engine)(nil)

// ClassifyCall records a single invocation of Detector.Classify.
type ClassifyCall struct {
	// Frame is a copy of the bytes passed to Classify.
	Frame []byte
}

// Detector is a mock implementation of vad.Detector.
type Detector struct {
	mu sync.Mutex

	// Probabilities is returned by successive Classify calls in order. After
	// the sequence is exhausted the last value repeats; an empty sequence
	// yields 0.
	Probabilities []float64

	// ClassifyErr, if non-nil, is returned by every Classify call.
	ClassifyErr error

	// CloseErr, if non-nil, is returned by Close.
	CloseErr error

	// --- Call records ---

	// ClassifyCalls records every call to Classify in order.
	ClassifyCalls []ClassifyCall

	// ResetCallCount is the number of times Reset was called.
	ResetCallCount int

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int

	next int
}

// Classify records the call and returns the next configured probability.
func (d *Detector) Classify(frame []byte) (float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := make([]byte, len(frame))
	copy(cp, frame)
	d.ClassifyCalls = append(d.ClassifyCalls, ClassifyCall{Frame: cp})
	if d.ClassifyErr != nil {
		return 0, d.ClassifyErr
	}
	if len(d.Probabilities) == 0 {
		return 0, nil
	}
	i := d.next
	if i >= len(d.Probabilities) {
		i = len(d.Probabilities) - 1
	} else {
		d.next++
	}
	return d.Probabilities[i], nil
}

// Reset records the call by incrementing ResetCallCount. The probability
// sequence position is not rewound; set Probabilities directly to restart it.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ResetCallCount++
}

// Close records the call and returns CloseErr.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.CloseCallCount++
	return d.CloseErr
}

// ResetCalls clears all recorded call history and rewinds the probability
// sequence. Thread-safe.
func (d *Detector) ResetCalls() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ClassifyCalls = nil
	d.ResetCallCount = 0
	d.CloseCallCount = 0
	d.next = 0
}

// Ensure Detector implements vad.Detector at compile time.
var _ vad.Detector = (*Detector)(nil)

// Package vad defines the Engine interface for Voice Activity Detection
// backends.
//
// A VAD engine wraps a frame-level speech classifier (e.g., an energy
// detector or a neural model such as Silero VAD) and surfaces it as a
// stateful, per-stream Detector. Each detector maintains its own internal
// state (smoothing history, model memory) so that many concurrent audio
// streams can be classified independently.
//
// Classification is synchronous by design: Classify returns immediately with
// a speech probability, making it suitable for the low-latency segmentation
// loop that gates recognition input.
//
// Implementations must be safe for concurrent use across different detectors.
// A single Detector must not be shared across goroutines unless the
// implementation explicitly documents thread safety for that type.
package vad

// Config holds the parameters for a detector instance.
type Config struct {
	// SampleRate is the audio sample rate in Hz. Must match the rate of the
	// PCM frames passed to Classify. Common values: 8000, 16000, 48000.
	SampleRate int

	// FrameSizeMs is the duration of each analysis window in milliseconds.
	// Most classifiers operate on fixed window sizes (e.g., 10, 20, or 30 ms).
	// Classify returns an error if the supplied frame does not match this size.
	FrameSizeMs int
}

// Detector classifies fixed-size PCM windows for a single audio stream. It is
// an interface so that test code can supply mock implementations without a
// live model.
//
// A Detector must not be shared between goroutines unless the implementation
// explicitly guarantees concurrent safety. For identical input a Detector
// must return identical probabilities; state carried between calls may only
// depend on previously classified frames of the same stream.
type Detector interface {
	// Classify analyses a single audio window and returns the probability, in
	// [0.0, 1.0], that the window contains speech. The frame must be raw
	// little-endian 16-bit PCM at the SampleRate and FrameSizeMs configured
	// when the detector was created. Returns an error if the frame size is
	// wrong or the classifier encounters an internal failure.
	//
	// Classify is called synchronously in the segmentation loop; it must not
	// block.
	Classify(frame []byte) (float64, error)

	// Reset clears all accumulated classification state without closing the
	// detector. Use this when the audio stream is restarted so stale state
	// from the previous stream cannot affect subsequent frames.
	Reset()

	// Close releases all resources associated with the detector. After Close,
	// Classify must return an error and Reset must be a no-op. Calling Close
	// more than once is safe and returns nil.
	Close() error
}

// Engine is the factory for detectors. It is the top-level interface
// implemented by each VAD backend.
//
// Implementations must be safe for concurrent use: multiple goroutines may
// call NewDetector simultaneously to create independent detectors.
type Engine interface {
	// NewDetector creates a detector with the given configuration, immediately
	// ready to accept audio windows.
	//
	// Returns an error if the configuration is invalid (unsupported sample
	// rate or frame size) or if the engine cannot allocate resources.
	NewDetector(cfg Config) (Detector, error)
}

// Package recognizer defines the Provider interface for speech recognition
// backends.
//
// A recognizer wraps a batch transcription engine (e.g., a local whisper.cpp
// server or the OpenAI audio API) behind a single capability: given one
// finalized speech segment of PCM audio, return the transcribed text and a
// confidence score. Voxgate invokes it once per segment that the
// segmentation engine closes; it never streams partial audio to it.
//
// Implementations must be safe for concurrent use; many session workers may
// call Transcribe simultaneously.
package recognizer

import (
	"context"

	"github.com/asrlabs/voxgate/pkg/audio"
)

// Audio is one finalized speech segment handed to the backend.
type Audio struct {
	// PCM is raw 16-bit signed little-endian PCM in the given format.
	PCM []byte

	// Format describes the sample rate and channel count of PCM.
	Format audio.Format
}

// Options carries per-session recognition hints, fixed at session creation.
type Options struct {
	// Language is the BCP-47 language tag restricting recognition (e.g.,
	// "en-US", "ru-RU"). An empty string lets the backend auto-detect, if
	// supported.
	Language string

	// Normalize requests text normalization (punctuation, casing) from
	// backends that support it.
	Normalize bool
}

// Result is the transcription of one segment.
type Result struct {
	// Text is the recognized speech content. May be empty when the backend
	// heard nothing intelligible in the segment.
	Text string

	// Confidence is the backend's overall confidence score (0.0 to 1.0). Zero
	// when the backend does not report confidence.
	Confidence float64
}

// Provider is the abstraction over any recognition backend.
type Provider interface {
	// Transcribe converts one speech segment to text. A non-nil error means
	// the segment could not be transcribed; callers are expected to log and
	// skip the segment rather than abort the stream.
	//
	// Transcribe must respect ctx cancellation: a cancelled context aborts the
	// request and returns ctx.Err().
	Transcribe(ctx context.Context, seg Audio, opts Options) (Result, error)
}

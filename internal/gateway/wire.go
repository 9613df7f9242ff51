package gateway

import (
	"github.com/asrlabs/voxgate/internal/session"
)

// EncodingPCM16 is the only sample encoding the gateway accepts: 16-bit
// signed little-endian PCM.
const EncodingPCM16 = "pcm16"

// CreateSessionRequest is the JSON body of POST /v1/sessions. All fields are
// optional; zero values select the server's configured defaults.
type CreateSessionRequest struct {
	// SampleRate of the audio this session will stream, in Hz.
	SampleRate int `json:"sample_rate,omitempty"`

	// Channels: 1 for mono, 2 for interleaved stereo.
	Channels int `json:"channels,omitempty"`

	// Encoding of the PCM payload. Only "pcm16" (or empty) is accepted.
	Encoding string `json:"encoding,omitempty"`

	// Language restricts recognition to a language tag (e.g., "en-US").
	Language string `json:"language,omitempty"`

	// Normalize requests text normalization from the recognition backend.
	Normalize bool `json:"normalize,omitempty"`

	// Hints are phrases to bias result post-processing towards: words the
	// backend transcribes close to a hint are rewritten to its spelling.
	Hints []string `json:"hints,omitempty"`
}

// CreateSessionResponse is the JSON body returned by POST /v1/sessions.
type CreateSessionResponse struct {
	SessionID string `json:"session_id"`
}

// errorResponse is the JSON body of error replies.
type errorResponse struct {
	Error string `json:"error"`
}

// summaryFrame is the final JSON frame sent on the audio socket after the
// client ends its stream.
type summaryFrame struct {
	SessionID  string `json:"session_id"`
	DurationMs int64  `json:"duration_ms"`
	Chunks     int64  `json:"chunks"`
}

// newSummaryFrame converts a session summary to its wire form.
func newSummaryFrame(id string, sum session.Summary) summaryFrame {
	return summaryFrame{
		SessionID:  id,
		DurationMs: sum.Duration.Milliseconds(),
		Chunks:     sum.Chunks,
	}
}

// Package session manages the lifecycle of recognition sessions: a
// concurrency-safe registry keyed by session id, per-session bounded ingest
// and result queues, and one worker goroutine per session that drives the
// segmentation engine and the recognition backend.
//
// Everything except the registry map is single-producer/single-consumer: the
// ingest queue is written by one transport goroutine and drained by the
// session's worker; the result queue is written by the worker and drained by
// one result-stream goroutine. Only the registry itself needs a lock.
package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/asrlabs/voxgate/pkg/audio"
)

var (
	// ErrNotFound is returned when a session id does not resolve to a live
	// session.
	ErrNotFound = errors.New("session: not found")

	// ErrClosed is returned when audio is submitted to a session that is
	// draining or closed.
	ErrClosed = errors.New("session: closed")

	// ErrLimitExceeded is returned by Create when the configured session cap
	// has been reached.
	ErrLimitExceeded = errors.New("session: session limit exceeded")
)

// State is a session's lifecycle state.
type State int32

const (
	// StateCreated means the session exists but no audio has arrived yet.
	StateCreated State = iota

	// StateStreaming means the session has received at least one chunk.
	StateStreaming

	// StateDraining means no new input is accepted; the worker is finishing
	// queued audio.
	StateDraining

	// StateClosed means the worker has exited and the result queue is the
	// only part of the session still live.
	StateClosed
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateStreaming:
		return "streaming"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Options carries the per-session settings fixed at creation.
type Options struct {
	// Format is the PCM format of the incoming audio. Zero fields default to
	// 16 kHz mono.
	Format audio.Format

	// Language restricts recognition to a BCP-47 language tag. Empty means
	// backend auto-detect.
	Language string

	// Normalize requests text normalization from the recognition backend.
	Normalize bool

	// Hints are phrases the recognizer is likely to mangle (proper nouns,
	// jargon). Transcribed text is post-processed to snap near-miss words to
	// these spellings.
	Hints []string
}

// Chunk is one unit of ingested audio. Ownership transfers to the ingest
// queue on enqueue; callers must not reuse the PCM slice afterwards.
type Chunk struct {
	// PCM is raw 16-bit little-endian PCM in the session's format.
	PCM []byte

	// Channel tags which input channel the audio belongs to. Carried through
	// to the results unchanged.
	Channel string
}

// Result is one recognition result delivered on the session's result stream.
type Result struct {
	// SessionID identifies the originating session.
	SessionID string `json:"session_id"`

	// Text is the recognized speech.
	Text string `json:"text"`

	// Confidence is the backend's confidence score (0.0 to 1.0).
	Confidence float64 `json:"confidence"`

	// Channel is the channel tag of the audio the segment came from.
	Channel string `json:"channel,omitempty"`

	// Final is true for authoritative results. Voxgate's batch backends only
	// produce final results.
	Final bool `json:"final"`
}

// Summary describes a completed audio stream.
type Summary struct {
	// Duration is the total playback duration of the streamed audio.
	Duration time.Duration `json:"duration"`

	// Chunks is the number of audio chunks received.
	Chunks int64 `json:"chunks"`
}

// Session is one live recognition session. Created by [Registry.Create];
// fields are owned as documented per method. All exported methods are safe
// for concurrent use.
type Session struct {
	id        string
	opts      Options
	createdAt time.Time

	state atomic.Int32

	ingest  chan Chunk
	results chan Result

	// stop is closed by Registry.Close to signal the worker to drain and
	// exit. done is closed by the worker when it has exited.
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	chunks     atomic.Int64
	bytesTotal atomic.Int64

	mu      sync.Mutex
	endedAt time.Time
}

// ID returns the session's identifier.
func (s *Session) ID() string { return s.id }

// Options returns the settings the session was created with.
func (s *Session) Options() Options { return s.opts }

// State returns the session's current lifecycle state.
func (s *Session) State() State { return State(s.state.Load()) }

// CreatedAt returns the session's creation time.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// EndedAt returns when the worker exited, or the zero time while the session
// is still live.
func (s *Session) EndedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endedAt
}

// Summary reports the stream totals so far. Duration is derived from the
// byte count and the session's audio format.
func (s *Session) Summary() Summary {
	return Summary{
		Duration: audio.Duration(int(s.bytesTotal.Load()), s.opts.Format),
		Chunks:   s.chunks.Load(),
	}
}

// EnqueueChunk submits one audio chunk for processing. When the ingest queue
// is full the call blocks until space frees up or ctx is cancelled; this is
// the gateway's backpressure boundary. Returns [ErrClosed] once the session
// is draining or closed.
func (s *Session) EnqueueChunk(ctx context.Context, c Chunk) error {
	if st := s.State(); st == StateDraining || st == StateClosed {
		return ErrClosed
	}
	s.state.CompareAndSwap(int32(StateCreated), int32(StateStreaming))

	select {
	case s.ingest <- c:
		s.chunks.Add(1)
		s.bytesTotal.Add(int64(len(c.PCM)))
		return nil
	case <-s.stop:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Results returns the session's result stream. The channel is closed by the
// worker after the session is fully drained; ranging over it until close is
// the complete result-delivery contract.
func (s *Session) Results() <-chan Result { return s.results }

// NextResult blocks until a result is available, the result stream ends, or
// ctx is cancelled. The second return is false once the stream has ended and
// no further results will arrive.
func (s *Session) NextResult(ctx context.Context) (Result, bool, error) {
	select {
	case res, ok := <-s.results:
		return res, ok, nil
	case <-ctx.Done():
		return Result{}, false, ctx.Err()
	}
}

// Done returns a channel closed when the session's worker has exited.
func (s *Session) Done() <-chan struct{} { return s.done }

// Drained reports whether the worker has exited and every queued result has
// been consumed. Only drained sessions are evicted from the registry.
func (s *Session) Drained() bool {
	select {
	case <-s.done:
	default:
		return false
	}
	return len(s.results) == 0
}

// signalStop moves the session to Draining and wakes the worker. Idempotent.
func (s *Session) signalStop() {
	s.stopOnce.Do(func() {
		s.state.Store(int32(StateDraining))
		close(s.stop)
	})
}

// markClosed finalises the session's lifecycle. Called only by the worker.
func (s *Session) markClosed() {
	s.state.Store(int32(StateClosed))
	s.mu.Lock()
	s.endedAt = time.Now().UTC()
	s.mu.Unlock()
}

package session

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/asrlabs/voxgate/internal/observe"
	"github.com/asrlabs/voxgate/internal/segmenter"
	"github.com/asrlabs/voxgate/internal/vocab"
	"github.com/asrlabs/voxgate/pkg/audio"
	"github.com/asrlabs/voxgate/pkg/provider/recognizer"
	"github.com/asrlabs/voxgate/pkg/provider/vad"
)

const (
	// idLength is the length of generated session identifiers.
	idLength = 10

	// idAlphabet is the character set for session identifiers.
	idAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// defaultQueueSize bounds the ingest and result queues. A full ingest
	// queue blocks the producer (backpressure) instead of growing without
	// limit under a slow backend.
	defaultQueueSize = 64

	// defaultSweepInterval is how often the registry evicts closed, fully
	// drained sessions.
	defaultSweepInterval = 10 * time.Second
)

// RegistryConfig holds the dependencies and tuning knobs for a [Registry].
type RegistryConfig struct {
	// VAD creates per-session detectors. Required.
	VAD vad.Engine

	// Recognizer transcribes finalized segments. Required.
	Recognizer recognizer.Provider

	// Segmenter holds the segmentation parameters applied to every session.
	// SampleRate is overridden per session from its audio format.
	Segmenter segmenter.Config

	// DefaultFormat is assumed for sessions created without an explicit
	// audio format. Zero fields fall back to 16kHz mono.
	DefaultFormat audio.Format

	// QueueSize bounds each session's ingest and result queues.
	// Zero means defaultQueueSize.
	QueueSize int

	// MaxSessions caps concurrently live sessions. Zero means unlimited.
	MaxSessions int

	// SweepInterval is how often closed, drained sessions are evicted.
	// Zero means defaultSweepInterval.
	SweepInterval time.Duration

	// Metrics receives registry and worker instrumentation. Nil means
	// [observe.DefaultMetrics].
	Metrics *observe.Metrics
}

// Registry owns all live sessions. It is the only piece of state in the
// gateway shared across client connections, so every map access goes through
// its mutex. All exported methods are safe for concurrent use.
type Registry struct {
	cfg RegistryConfig

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
}

// NewRegistry creates a Registry with the given dependencies.
func NewRegistry(cfg RegistryConfig) (*Registry, error) {
	if cfg.VAD == nil {
		return nil, fmt.Errorf("session: VAD engine is required")
	}
	if cfg.Recognizer == nil {
		return nil, fmt.Errorf("session: recognizer is required")
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = defaultSweepInterval
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	return &Registry{
		cfg:      cfg,
		sessions: make(map[string]*Session),
	}, nil
}

// Create allocates a new session, starts its worker, and returns it. The
// generated id is unique among live sessions; ids of closed sessions may be
// reused.
func (r *Registry) Create(ctx context.Context, opts Options) (*Session, error) {
	if opts.Format.SampleRate <= 0 {
		opts.Format.SampleRate = r.cfg.DefaultFormat.SampleRate
	}
	if opts.Format.Channels <= 0 {
		opts.Format.Channels = r.cfg.DefaultFormat.Channels
	}
	if opts.Format.SampleRate <= 0 {
		opts.Format.SampleRate = 16000
	}
	if opts.Format.Channels <= 0 {
		opts.Format.Channels = 1
	}

	segCfg := r.cfg.Segmenter
	segCfg.SampleRate = opts.Format.SampleRate

	det, err := r.cfg.VAD.NewDetector(vad.Config{
		SampleRate:  segCfg.SampleRate,
		FrameSizeMs: segCfg.FrameSizeMs,
	})
	if err != nil {
		return nil, fmt.Errorf("session: create detector: %w", err)
	}

	eng, err := segmenter.New(det, segCfg)
	if err != nil {
		_ = det.Close()
		return nil, fmt.Errorf("session: create segmentation engine: %w", err)
	}

	s := &Session{
		opts:      opts,
		createdAt: time.Now().UTC(),
		ingest:    make(chan Chunk, r.cfg.QueueSize),
		results:   make(chan Result, r.cfg.QueueSize),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		_ = det.Close()
		return nil, fmt.Errorf("session: registry is shut down")
	}
	if r.cfg.MaxSessions > 0 && len(r.sessions) >= r.cfg.MaxSessions {
		r.mu.Unlock()
		_ = det.Close()
		return nil, fmt.Errorf("session: %w (%d live)", ErrLimitExceeded, r.cfg.MaxSessions)
	}
	// Generate an id unique among live sessions, regenerating on the (rare)
	// collision with an existing one.
	for {
		id := randomID()
		if _, exists := r.sessions[id]; !exists {
			s.id = id
			break
		}
	}
	r.sessions[s.id] = s
	r.mu.Unlock()

	w := &worker{
		session:    s,
		engine:     eng,
		detector:   det,
		recognizer: r.cfg.Recognizer,
		metrics:    r.cfg.Metrics,
		downmix:    audio.Converter{Target: audio.Format{SampleRate: opts.Format.SampleRate, Channels: 1}},
	}
	if len(opts.Hints) > 0 {
		w.corrector = vocab.NewCorrector(opts.Hints)
	}
	r.cfg.Metrics.ActiveSessions.Add(ctx, 1)
	go func() {
		defer r.cfg.Metrics.ActiveSessions.Add(context.Background(), -1)
		w.run(context.Background())
	}()

	slog.Info("session created",
		"session_id", s.id,
		"sample_rate", opts.Format.SampleRate,
		"channels", opts.Format.Channels,
		"language", opts.Language,
	)
	return s, nil
}

// Get returns the live session with the given id, or [ErrNotFound].
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Close transitions the session to Draining and signals its worker to finish
// queued audio and exit. The session stays in the registry until its results
// are consumed and the sweeper evicts it. Returns [ErrNotFound] for unknown
// ids; closing an already-draining session is a no-op.
func (r *Registry) Close(id string) error {
	s, err := r.Get(id)
	if err != nil {
		return err
	}
	s.signalStop()
	return nil
}

// Evict removes the session from the registry immediately, signalling its
// worker to stop first. Unlike the sweeper it does not wait for the result
// queue to be consumed. Returns [ErrNotFound] for unknown ids.
func (r *Registry) Evict(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	s.signalStop()
	slog.Info("session evicted", "session_id", id)
	return nil
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Run evicts closed, fully drained sessions periodically until ctx is
// cancelled. Call it in a goroutine from main.
func (r *Registry) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.sweep()
		}
	}
}

// sweep removes every session whose worker has exited and whose result queue
// has been fully consumed.
func (r *Registry) sweep() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, s := range r.sessions {
		if s.Drained() {
			delete(r.sessions, id)
			slog.Debug("session evicted", "session_id", id)
		}
	}
}

// Shutdown signals every live session to drain and waits for all workers to
// exit or ctx to expire.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	live := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		live = append(live, s)
	}
	r.mu.Unlock()

	for _, s := range live {
		s.signalStop()
	}
	for _, s := range live {
		select {
		case <-s.Done():
		case <-ctx.Done():
			return fmt.Errorf("session: shutdown: %w", ctx.Err())
		}
	}
	return nil
}

// randomID returns a random identifier in the style of the wire protocol's
// session ids: idLength characters drawn from idAlphabet.
func randomID() string {
	b := make([]byte, idLength)
	for i := range b {
		b[i] = idAlphabet[rand.IntN(len(idAlphabet))]
	}
	return string(b)
}

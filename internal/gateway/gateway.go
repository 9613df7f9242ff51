// Package gateway exposes the session API over HTTP and WebSocket.
//
// Three operations make up the wire surface:
//
//   - POST /v1/sessions creates a session and returns its id.
//   - GET /v1/sessions/{id}/audio upgrades to a WebSocket carrying binary
//     PCM chunks from the client; a normal close ends the stream and the
//     server replies with a JSON summary frame before closing its side.
//   - GET /v1/sessions/{id}/results upgrades to a WebSocket on which the
//     server pushes one JSON result per recognized segment until the
//     session is drained.
//
// Audio in and results out are deliberately separate sockets so a slow
// result consumer never stalls audio ingest at the transport layer;
// backpressure is applied per queue inside the session package instead.
package gateway

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/asrlabs/voxgate/internal/observe"
	"github.com/asrlabs/voxgate/internal/session"
)

// maxChunkBytes caps a single binary audio message. A minute of 48kHz
// stereo PCM fits well below this; anything larger is a protocol violation.
const maxChunkBytes = 1 << 20

// maxHints caps the vocabulary hint list accepted at session creation.
const maxHints = 500

// Server holds the HTTP handlers for the session API.
type Server struct {
	registry *session.Registry
	metrics  *observe.Metrics

	// insecureSkipVerify disables WebSocket origin checking. Tests only.
	insecureSkipVerify bool
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics replaces the metrics sink. Nil selects the process default.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithInsecureSkipVerify disables WebSocket origin checks so tests can dial
// handlers through httptest servers.
func WithInsecureSkipVerify() Option {
	return func(s *Server) { s.insecureSkipVerify = true }
}

// New creates a Server backed by the given registry.
func New(registry *session.Registry, opts ...Option) *Server {
	s := &Server{registry: registry}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

// Register adds the session API routes to mux, wrapped in the observability
// middleware.
func (s *Server) Register(mux *http.ServeMux) {
	mw := observe.Middleware(s.metrics)
	mux.Handle("POST /v1/sessions", mw(http.HandlerFunc(s.handleCreateSession)))
	mux.Handle("GET /v1/sessions/{id}/audio", mw(http.HandlerFunc(s.handleStreamAudio)))
	mux.Handle("GET /v1/sessions/{id}/results", mw(http.HandlerFunc(s.handleStreamResults)))
}

// resolve looks up the path's session id, writing a 404 when it is unknown.
// The lookup happens before any WebSocket upgrade so plain HTTP clients get
// a regular status code.
func (s *Server) resolve(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id := r.PathValue("id")
	sess, err := s.registry.Get(id)
	if err != nil {
		slog.Debug("unknown session", "session_id", id, "path", r.URL.Path)
		http.Error(w, `{"error":"session not found"}`, http.StatusNotFound)
		return nil, false
	}
	return sess, true
}

// logDuration returns the wall-clock duration since start, for handler exit
// logs.
func logDuration(start time.Time) time.Duration {
	return time.Since(start).Round(time.Millisecond)
}

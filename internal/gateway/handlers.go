package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/asrlabs/voxgate/internal/session"
	"github.com/asrlabs/voxgate/pkg/audio"
)

// handleCreateSession allocates a session and returns its id.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if err := validateCreate(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sess, err := s.registry.Create(r.Context(), session.Options{
		Format:    audio.Format{SampleRate: req.SampleRate, Channels: req.Channels},
		Language:  req.Language,
		Normalize: req.Normalize,
		Hints:     req.Hints,
	})
	if err != nil {
		if errors.Is(err, session.ErrLimitExceeded) {
			writeError(w, http.StatusServiceUnavailable, "session limit exceeded")
			return
		}
		slog.Error("create session failed", "err", err)
		writeError(w, http.StatusInternalServerError, "could not create session")
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(CreateSessionResponse{SessionID: sess.ID()})
}

// validateCreate rejects parameter combinations the pipeline cannot serve.
func validateCreate(req CreateSessionRequest) error {
	if req.Encoding != "" && req.Encoding != EncodingPCM16 {
		return fmt.Errorf("encoding %q is not supported; use %q", req.Encoding, EncodingPCM16)
	}
	if req.SampleRate < 0 {
		return fmt.Errorf("sample_rate %d is invalid", req.SampleRate)
	}
	if req.Channels < 0 || req.Channels > 2 {
		return fmt.Errorf("channels %d is invalid; 1 (mono) or 2 (stereo)", req.Channels)
	}
	if len(req.Hints) > maxHints {
		return fmt.Errorf("%d hints exceed the limit of %d", len(req.Hints), maxHints)
	}
	return nil
}

// handleStreamAudio receives the session's audio over a WebSocket.
//
// The client sends binary PCM16 chunk messages. A text frame marks the end
// of the stream: the server drains the session, replies with one JSON
// summary frame, and closes normally. A close frame (or a vanished peer)
// also ends the stream, just without the summary, since no data may follow
// a close handshake.
func (s *Server) handleStreamAudio(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.resolve(w, r)
	if !ok {
		return
	}
	channel := r.URL.Query().Get("channel")

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: s.insecureSkipVerify,
	})
	if err != nil {
		slog.Warn("audio stream upgrade failed", "session_id", sess.ID(), "err", err)
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(maxChunkBytes)

	ctx := r.Context()
	start := time.Now()
	slog.Info("audio stream opened", "session_id", sess.ID(), "channel", channel)

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			// Peer closed or vanished: end the stream without a summary.
			s.endStream(sess)
			slog.Info("audio stream ended",
				"session_id", sess.ID(),
				"close_status", websocket.CloseStatus(err),
				"elapsed", logDuration(start),
			)
			return
		}

		if typ == websocket.MessageText {
			// End-of-stream marker. Drain the session, then report totals.
			s.endStream(sess)
			select {
			case <-sess.Done():
			case <-ctx.Done():
				return
			}
			if err := wsjson.Write(ctx, conn, newSummaryFrame(sess.ID(), sess.Summary())); err != nil {
				slog.Warn("summary write failed", "session_id", sess.ID(), "err", err)
				return
			}
			conn.Close(websocket.StatusNormalClosure, "stream complete")
			slog.Info("audio stream completed",
				"session_id", sess.ID(),
				"elapsed", logDuration(start),
			)
			return
		}

		if len(data) == 0 {
			continue
		}
		if err := sess.EnqueueChunk(ctx, session.Chunk{PCM: data, Channel: channel}); err != nil {
			if errors.Is(err, session.ErrClosed) {
				conn.Close(websocket.StatusPolicyViolation, "session closed")
			}
			return
		}
	}
}

// handleStreamResults pushes recognition results to the client as they are
// produced, closing normally once the session is fully drained.
func (s *Server) handleStreamResults(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.resolve(w, r)
	if !ok {
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: s.insecureSkipVerify,
	})
	if err != nil {
		slog.Warn("result stream upgrade failed", "session_id", sess.ID(), "err", err)
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	start := time.Now()
	delivered := 0
	slog.Info("result stream opened", "session_id", sess.ID())

	for {
		res, ok, err := sess.NextResult(ctx)
		if err != nil {
			// The client went away and forfeits any queued results. Draining
			// the stream lets the worker finish and the sweeper reclaim the
			// session.
			go audio.Drain(sess.Results())
			slog.Info("result stream abandoned",
				"session_id", sess.ID(),
				"delivered", delivered,
				"elapsed", logDuration(start),
			)
			return
		}
		if !ok {
			conn.Close(websocket.StatusNormalClosure, "session drained")
			slog.Info("result stream completed",
				"session_id", sess.ID(),
				"delivered", delivered,
				"elapsed", logDuration(start),
			)
			return
		}
		if err := wsjson.Write(ctx, conn, res); err != nil {
			go audio.Drain(sess.Results())
			slog.Info("result stream write failed, client gone",
				"session_id", sess.ID(),
				"delivered", delivered,
				"err", err,
			)
			return
		}
		delivered++
	}
}

// endStream signals the session to drain. The session may already be
// draining (e.g., closed from the results side); that is fine.
func (s *Server) endStream(sess *session.Session) {
	if err := s.registry.Close(sess.ID()); err != nil && !errors.Is(err, session.ErrNotFound) {
		slog.Warn("close session failed", "session_id", sess.ID(), "err", err)
	}
}

// writeError sends a JSON error body with the given status.
func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Error: msg})
}

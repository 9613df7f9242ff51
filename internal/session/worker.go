package session

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/asrlabs/voxgate/internal/observe"
	"github.com/asrlabs/voxgate/internal/segmenter"
	"github.com/asrlabs/voxgate/internal/vocab"
	"github.com/asrlabs/voxgate/pkg/audio"
	"github.com/asrlabs/voxgate/pkg/provider/recognizer"
	"github.com/asrlabs/voxgate/pkg/provider/vad"
)

const (
	// drainGrace is how long the worker keeps waiting for residual chunks
	// after the stop signal. It covers a producer that was already blocked in
	// EnqueueChunk when the session began draining.
	drainGrace = 100 * time.Millisecond

	// resultPublishTimeout bounds how long the worker blocks publishing one
	// result. A session whose result stream is never consumed would otherwise
	// pin its worker forever.
	resultPublishTimeout = 30 * time.Second
)

// worker drives one session for its full lifetime: it drains the ingest
// queue, feeds audio through the segmentation engine, invokes the
// recognition backend per closed segment, and publishes results. All of its
// state is single-owner; only the queues connect it to other goroutines.
type worker struct {
	session    *Session
	engine     *segmenter.Engine
	detector   vad.Detector
	recognizer recognizer.Provider
	metrics    *observe.Metrics
	downmix    audio.Converter
	corrector  *vocab.Corrector

	// channel is the tag of the most recently ingested chunk, stamped onto
	// results as segments close.
	channel string
}

// run is the worker loop. It exits only after the stop signal has fired and
// the ingest queue is confirmed empty, so no accepted audio is ever dropped.
func (w *worker) run(ctx context.Context) {
	s := w.session
	defer close(s.done)
	defer func() { _ = w.detector.Close() }()
	defer close(s.results)

	for {
		select {
		case c := <-s.ingest:
			w.process(ctx, c)
		case <-s.stop:
			w.drain(ctx)
			w.flush(ctx)
			s.markClosed()
			sum := s.Summary()
			slog.Info("session worker exited",
				"session_id", s.id,
				"chunks", sum.Chunks,
				"duration", sum.Duration,
			)
			return
		}
	}
}

// process feeds one chunk through the segmentation engine and recognizes
// every segment that closed.
func (w *worker) process(ctx context.Context, c Chunk) {
	w.channel = c.Channel
	w.metrics.RecordIngest(ctx, w.session.id, len(c.PCM))
	mono := w.downmix.Convert(c.PCM, w.session.opts.Format)

	segs, err := w.engine.Consume(mono)
	if err != nil {
		// A classifier failure loses at most this chunk's windows; the
		// session keeps processing subsequent audio.
		slog.Warn("segmentation error",
			"session_id", w.session.id,
			"err", err,
		)
	}
	for _, seg := range segs {
		w.recognize(ctx, seg)
	}
}

// drain consumes whatever is left on the ingest queue after the stop signal.
func (w *worker) drain(ctx context.Context) {
	for {
		select {
		case c := <-w.session.ingest:
			w.process(ctx, c)
		case <-time.After(drainGrace):
			return
		}
	}
}

// flush closes the stream in the segmentation engine; a segment still open
// at stream end is emitted with its end at the current sample (and
// recognized like any other) unless it is shorter than one analysis window.
func (w *worker) flush(ctx context.Context) {
	if seg, ok := w.engine.Flush(); ok {
		w.recognize(ctx, seg)
	}
}

// recognize transcribes one closed segment and publishes the result. Backend
// failure is logged and the segment skipped; it never aborts the session.
func (w *worker) recognize(ctx context.Context, seg segmenter.Segment) {
	s := w.session
	w.metrics.SegmentsDetected.Add(ctx, 1,
		metric.WithAttributes(observe.Attr("session_id", s.id)))

	format := audio.Format{SampleRate: s.opts.Format.SampleRate, Channels: 1}
	start := time.Now()
	res, err := w.recognizer.Transcribe(ctx,
		recognizer.Audio{PCM: seg.PCM, Format: format},
		recognizer.Options{Language: s.opts.Language, Normalize: s.opts.Normalize},
	)
	w.metrics.RecordRecognition(ctx, s.id, time.Since(start), err)
	if err != nil {
		slog.Warn("segment transcription failed, skipping",
			"session_id", s.id,
			"start_sample", seg.Start,
			"end_sample", seg.End,
			"err", err,
		)
		return
	}

	text := res.Text
	if w.corrector != nil {
		corrected, corrections := w.corrector.Correct(text)
		if len(corrections) > 0 {
			slog.Debug("applied vocabulary hints",
				"session_id", s.id,
				"corrections", len(corrections),
			)
		}
		text = corrected
	}

	result := Result{
		SessionID:  s.id,
		Text:       text,
		Confidence: res.Confidence,
		Channel:    w.channel,
		Final:      true,
	}

	select {
	case s.results <- result:
		w.metrics.ResultsDelivered.Add(ctx, 1,
			metric.WithAttributes(observe.Attr("session_id", s.id)))
	case <-time.After(resultPublishTimeout):
		slog.Warn("result queue full, dropping result",
			"session_id", s.id,
			"start_sample", seg.Start,
		)
	}
}

package resilience

import (
	"context"

	"github.com/asrlabs/voxgate/pkg/provider/recognizer"
)

// RecognizerFallback implements [recognizer.Provider] with automatic failover
// across multiple recognition backends. Each backend has its own circuit
// breaker, so a flapping primary stops receiving segments until its reset
// timeout elapses.
type RecognizerFallback struct {
	group *FallbackGroup[recognizer.Provider]
}

// Compile-time interface assertion.
var _ recognizer.Provider = (*RecognizerFallback)(nil)

// NewRecognizerFallback creates a [RecognizerFallback] with primary as the
// preferred backend.
func NewRecognizerFallback(primary recognizer.Provider, primaryName string, cfg FallbackConfig) *RecognizerFallback {
	return &RecognizerFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional recognition backend. Fallbacks are
// tried in the order they are added, after the primary.
func (f *RecognizerFallback) AddFallback(name string, provider recognizer.Provider) {
	f.group.AddFallback(name, provider)
}

// Transcribe submits the segment to the first healthy backend. A failure
// counts against that backend's breaker and the next backend is tried with
// the same segment.
func (f *RecognizerFallback) Transcribe(ctx context.Context, seg recognizer.Audio, opts recognizer.Options) (recognizer.Result, error) {
	return ExecuteWithResult(f.group, func(p recognizer.Provider) (recognizer.Result, error) {
		return p.Transcribe(ctx, seg, opts)
	})
}

// Package mock provides a test double for the recognizer.Provider interface.
//
// Use Provider to inject transcription results or errors and inspect the
// segments that were submitted.
package mock

import (
	"context"
	"sync"

	"github.com/asrlabs/voxgate/pkg/provider/recognizer"
)

// TranscribeCall records a single invocation of Provider.Transcribe.
type TranscribeCall struct {
	// Seg is the segment passed to Transcribe. PCM is a copy.
	Seg recognizer.Audio

	// Opts is the Options value passed to Transcribe.
	Opts recognizer.Options
}

// Provider is a mock implementation of recognizer.Provider.
type Provider struct {
	mu sync.Mutex

	// Results is returned by successive Transcribe calls in order. After the
	// sequence is exhausted the last value repeats; an empty sequence yields
	// the zero Result.
	Results []recognizer.Result

	// TranscribeErr, if non-nil, is returned by every Transcribe call.
	TranscribeErr error

	// TranscribeCalls records every call to Transcribe in order.
	TranscribeCalls []TranscribeCall

	next int
}

// Transcribe records the call and returns the next configured result.
func (p *Provider) Transcribe(ctx context.Context, seg recognizer.Audio, opts recognizer.Options) (recognizer.Result, error) {
	if err := ctx.Err(); err != nil {
		return recognizer.Result{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	cp := make([]byte, len(seg.PCM))
	copy(cp, seg.PCM)
	p.TranscribeCalls = append(p.TranscribeCalls, TranscribeCall{
		Seg:  recognizer.Audio{PCM: cp, Format: seg.Format},
		Opts: opts,
	})
	if p.TranscribeErr != nil {
		return recognizer.Result{}, p.TranscribeErr
	}
	if len(p.Results) == 0 {
		return recognizer.Result{}, nil
	}
	i := p.next
	if i >= len(p.Results) {
		i = len(p.Results) - 1
	} else {
		p.next++
	}
	return p.Results[i], nil
}

// ResetCalls clears all recorded call history and rewinds the result
// sequence. Thread-safe.
func (p *Provider) ResetCalls() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.TranscribeCalls = nil
	p.next = 0
}

// Ensure Provider implements recognizer.Provider at compile time.
var _ recognizer.Provider = (*Provider)(nil)

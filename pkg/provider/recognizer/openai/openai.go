// Package openai provides a recognizer backed by the OpenAI audio
// transcription API.
package openai

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/asrlabs/voxgate/pkg/audio"
	"github.com/asrlabs/voxgate/pkg/provider/recognizer"
)

// DefaultModel is the default OpenAI transcription model.
const DefaultModel = oai.AudioModelWhisper1

// Ensure Provider implements the recognizer.Provider interface.
var _ recognizer.Provider = (*Provider)(nil)

// Provider implements recognizer.Provider using the OpenAI API. Safe for
// concurrent use.
type Provider struct {
	client oai.Client
	model  string
}

// config holds optional configuration for the provider.
type config struct {
	baseURL string
	timeout time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL. Use this to point
// the provider at an OpenAI-compatible transcription server.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// New constructs a new OpenAI recognition Provider.
// If model is empty, DefaultModel (whisper-1) is used.
func New(apiKey string, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai recognizer: apiKey must not be empty")
	}
	if model == "" {
		model = DefaultModel
	}

	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	return &Provider{
		client: oai.NewClient(reqOpts...),
		model:  model,
	}, nil
}

// Transcribe encodes the segment as WAV and submits it to the transcription
// endpoint. The OpenAI API does not report an overall confidence score, so
// results carry Confidence 0.
func (p *Provider) Transcribe(ctx context.Context, seg recognizer.Audio, opts recognizer.Options) (recognizer.Result, error) {
	wav := audio.EncodeWAV(seg.PCM, seg.Format)

	params := oai.AudioTranscriptionNewParams{
		Model: p.model,
		File:  oai.File(bytes.NewReader(wav), "segment.wav", "audio/wav"),
	}
	if opts.Language != "" {
		// The API takes an ISO-639-1 code ("en"), not a full BCP-47 tag.
		lang, _, _ := strings.Cut(opts.Language, "-")
		params.Language = oai.String(lang)
	}

	resp, err := p.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return recognizer.Result{}, fmt.Errorf("openai recognizer: transcribe: %w", err)
	}

	return recognizer.Result{Text: strings.TrimSpace(resp.Text)}, nil
}

// Package whisper provides a recognizer backed by a local whisper.cpp server.
//
// It submits each speech segment as a batch inference request to the REST API
// exposed by the whisper-server binary (POST /inference), encoding the PCM
// audio as a WAV file in a multipart form upload. whisper.cpp does not report
// a confidence score, so results carry Confidence 0.
//
// Usage:
//
//	p, err := whisper.New("http://localhost:8080", whisper.WithModel("base.en"))
//	res, err := p.Transcribe(ctx, seg, recognizer.Options{Language: "en"})
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/asrlabs/voxgate/pkg/audio"
	"github.com/asrlabs/voxgate/pkg/provider/recognizer"
)

// defaultTimeout bounds a single inference request.
const defaultTimeout = 30 * time.Second

// Compile-time assertion that Provider implements recognizer.Provider.
var _ recognizer.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithModel sets the model identifier forwarded to the whisper.cpp server
// (e.g., "base.en", "small"). When empty the server uses whichever model it
// was started with; this is the default.
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithHTTPClient replaces the HTTP client used for inference requests.
// Useful in tests and for custom timeout or transport settings.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.httpClient = c }
}

// Provider implements recognizer.Provider backed by a whisper.cpp HTTP
// server. Safe for concurrent use; each Transcribe call is an independent
// HTTP request.
type Provider struct {
	serverURL  string
	model      string
	httpClient *http.Client
}

// New creates a Provider that connects to the whisper.cpp HTTP server at
// serverURL (e.g., "http://localhost:8080"). serverURL must be non-empty.
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("whisper: serverURL must not be empty")
	}
	p := &Provider{
		serverURL:  strings.TrimRight(serverURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Transcribe encodes the segment as WAV and POSTs it to /inference.
func (p *Provider) Transcribe(ctx context.Context, seg recognizer.Audio, opts recognizer.Options) (recognizer.Result, error) {
	wav := audio.EncodeWAV(seg.PCM, seg.Format)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "segment.wav")
	if err != nil {
		return recognizer.Result{}, fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := fw.Write(wav); err != nil {
		return recognizer.Result{}, fmt.Errorf("whisper: write wav data: %w", err)
	}

	if opts.Language != "" {
		// whisper.cpp takes the bare language code ("en"), not a full tag.
		lang, _, _ := strings.Cut(opts.Language, "-")
		if err := mw.WriteField("language", lang); err != nil {
			return recognizer.Result{}, fmt.Errorf("whisper: write language field: %w", err)
		}
	}
	if p.model != "" {
		if err := mw.WriteField("model", p.model); err != nil {
			return recognizer.Result{}, fmt.Errorf("whisper: write model field: %w", err)
		}
	}

	if err := mw.Close(); err != nil {
		return recognizer.Result{}, fmt.Errorf("whisper: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.serverURL+"/inference", &body)
	if err != nil {
		return recognizer.Result{}, fmt.Errorf("whisper: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return recognizer.Result{}, fmt.Errorf("whisper: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return recognizer.Result{}, fmt.Errorf("whisper: server returned HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return recognizer.Result{}, fmt.Errorf("whisper: read response body: %w", err)
	}

	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return recognizer.Result{}, fmt.Errorf("whisper: parse JSON response: %w", err)
	}

	return recognizer.Result{Text: strings.TrimSpace(parsed.Text)}, nil
}

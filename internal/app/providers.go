package app

import (
	"fmt"

	"github.com/asrlabs/voxgate/internal/config"
	"github.com/asrlabs/voxgate/pkg/provider/recognizer"
	"github.com/asrlabs/voxgate/pkg/provider/recognizer/openai"
	"github.com/asrlabs/voxgate/pkg/provider/recognizer/whisper"
	"github.com/asrlabs/voxgate/pkg/provider/vad"
	"github.com/asrlabs/voxgate/pkg/provider/vad/energy"
)

// DefaultProviderRegistry returns a config registry with every built-in
// provider registered:
//
//   - vad/energy: RMS energy detector, tuned via the noise_floor,
//     speech_level, and smoothing options.
//   - recognizer/whisper: whisper.cpp server protocol; base_url points at the
//     server, model selects the loaded model name.
//   - recognizer/openai: OpenAI audio transcription API; api_key is required,
//     base_url supports compatible proxies.
func DefaultProviderRegistry() *config.Registry {
	reg := config.NewRegistry()

	reg.RegisterVAD("energy", func(entry config.ProviderEntry) (vad.Engine, error) {
		var opts []energy.Option
		if v, ok := floatOption(entry.Options, "noise_floor"); ok {
			opts = append(opts, energy.WithNoiseFloor(v))
		}
		if v, ok := floatOption(entry.Options, "speech_level"); ok {
			opts = append(opts, energy.WithSpeechLevel(v))
		}
		if v, ok := floatOption(entry.Options, "smoothing"); ok {
			opts = append(opts, energy.WithSmoothing(v))
		}
		return energy.New(opts...)
	})

	reg.RegisterRecognizer("whisper", func(entry config.ProviderEntry) (recognizer.Provider, error) {
		if entry.BaseURL == "" {
			return nil, fmt.Errorf("whisper recognizer requires base_url")
		}
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		return whisper.New(entry.BaseURL, opts...)
	})

	reg.RegisterRecognizer("openai", func(entry config.ProviderEntry) (recognizer.Provider, error) {
		var opts []openai.Option
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		return openai.New(entry.APIKey, entry.Model, opts...)
	})

	return reg
}

// floatOption reads a numeric value from a provider options map. YAML
// decoding may produce int or float64 depending on how the value was written.
func floatOption(m map[string]any, key string) (float64, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}

package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"vad":        {"energy"},
	"recognizer": {"whisper", "openai"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader] and
// [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if tls := cfg.Server.TLS; tls != nil {
		if tls.CertFile == "" || tls.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	// Audio defaults
	if cfg.Audio.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d is invalid", cfg.Audio.SampleRate))
	}
	if cfg.Audio.Channels < 0 || cfg.Audio.Channels > 2 {
		errs = append(errs, fmt.Errorf("audio.channels %d is invalid; valid values: 1 (mono), 2 (stereo)", cfg.Audio.Channels))
	}

	// Segmenter
	seg := cfg.Segmenter
	if seg.Threshold < 0 || seg.Threshold > 1 {
		errs = append(errs, fmt.Errorf("segmenter.threshold %.2f is out of range [0, 1]", seg.Threshold))
	}
	if seg.ExitThreshold != 0 && seg.ExitThreshold >= seg.Threshold && seg.Threshold != 0 {
		errs = append(errs, fmt.Errorf("segmenter.exit_threshold %.2f must be below threshold %.2f", seg.ExitThreshold, seg.Threshold))
	}
	if seg.MinSilenceMs < 0 {
		errs = append(errs, fmt.Errorf("segmenter.min_silence_ms %d is negative", seg.MinSilenceMs))
	}
	if seg.PaddingMs < 0 {
		errs = append(errs, fmt.Errorf("segmenter.padding_ms %d is negative", seg.PaddingMs))
	}
	if seg.PaddingMs > seg.MinSilenceMs {
		errs = append(errs, fmt.Errorf("segmenter.padding_ms %d must not exceed min_silence_ms %d", seg.PaddingMs, seg.MinSilenceMs))
	}
	if seg.FrameSizeMs < 0 {
		errs = append(errs, fmt.Errorf("segmenter.frame_size_ms %d is negative", seg.FrameSizeMs))
	}

	// Provider name validation, warning only for unknown names.
	validateProviderName("vad", cfg.Providers.VAD.Name)
	validateProviderName("recognizer", cfg.Providers.Recognizer.Name)

	for i, fb := range cfg.Providers.RecognizerFallbacks {
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("providers.recognizer_fallbacks[%d] has no name", i))
			continue
		}
		validateProviderName("recognizer", fb.Name)
	}
	if len(cfg.Providers.RecognizerFallbacks) > 0 && cfg.Providers.Recognizer.Name == "" {
		errs = append(errs, errors.New("providers.recognizer_fallbacks requires a primary recognizer"))
	}

	if cfg.Providers.Recognizer.Name == "" {
		slog.Warn("no recognizer provider configured; sessions will segment audio but produce no transcripts")
	}

	// Limits
	if cfg.Limits.QueueSize < 0 {
		errs = append(errs, fmt.Errorf("limits.queue_size %d is negative", cfg.Limits.QueueSize))
	}
	if cfg.Limits.MaxSessions < 0 {
		errs = append(errs, fmt.Errorf("limits.max_sessions %d is negative", cfg.Limits.MaxSessions))
	}
	if cfg.Limits.SweepIntervalMs < 0 {
		errs = append(errs, fmt.Errorf("limits.sweep_interval_ms %d is negative", cfg.Limits.SweepIntervalMs))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}

// Package config provides the configuration schema, loader, file watcher,
// and provider registry for the Voxgate speech gateway.
package config

// LogLevel controls log verbosity for the Voxgate server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for Voxgate.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Audio     AudioConfig     `yaml:"audio"`
	Segmenter SegmenterConfig `yaml:"segmenter"`
	Providers ProvidersConfig `yaml:"providers"`
	Limits    LimitsConfig    `yaml:"limits"`
}

// ServerConfig holds network and logging settings for the Voxgate server.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	// CertFile is the path to the PEM-encoded TLS certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded TLS private key.
	KeyFile string `yaml:"key_file"`
}

// AudioConfig sets the default input format assumed for sessions that do not
// declare one at creation.
type AudioConfig struct {
	// SampleRate in Hz. Default: 16000.
	SampleRate int `yaml:"sample_rate"`

	// Channels: 1 for mono, 2 for interleaved stereo. Default: 1.
	Channels int `yaml:"channels"`
}

// SegmenterConfig holds the speech segmentation parameters applied to every
// session created after the config was loaded.
type SegmenterConfig struct {
	// Threshold is the speech probability at or above which a window counts
	// as speech. Default: 0.5.
	Threshold float64 `yaml:"threshold"`

	// ExitThreshold is the probability below which an open segment starts
	// ending. Zero means Threshold minus 0.15.
	ExitThreshold float64 `yaml:"exit_threshold"`

	// MinSilenceMs is the silence duration in milliseconds required before a
	// segment end is confirmed. Default: 500.
	MinSilenceMs int `yaml:"min_silence_ms"`

	// PaddingMs is the symmetric pad in milliseconds applied to both segment
	// boundaries. Must not exceed MinSilenceMs. Default: 100.
	PaddingMs int `yaml:"padding_ms"`

	// FrameSizeMs is the analysis window duration in milliseconds. Default: 32.
	FrameSizeMs int `yaml:"frame_size_ms"`
}

// ProvidersConfig declares which provider implementation to use for each
// pipeline stage. Each field selects a named provider registered in the
// [Registry].
type ProvidersConfig struct {
	VAD        ProviderEntry `yaml:"vad"`
	Recognizer ProviderEntry `yaml:"recognizer"`

	// RecognizerFallbacks lists additional recognition backends tried in
	// order when the primary fails or its circuit breaker is open.
	RecognizerFallbacks []ProviderEntry `yaml:"recognizer_fallbacks"`
}

// ProviderEntry is the common configuration block shared by all provider
// types. The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "energy",
	// "whisper", "openai").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g., "whisper-1",
	// "base.en").
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by the
	// standard fields above. Values may be strings, numbers, booleans, or
	// nested maps.
	Options map[string]any `yaml:"options"`
}

// LimitsConfig bounds per-session and registry-wide resource usage.
type LimitsConfig struct {
	// QueueSize is the capacity of each session's audio and result queues.
	// Zero means the built-in default.
	QueueSize int `yaml:"queue_size"`

	// MaxSessions caps concurrently active sessions. Zero means unlimited.
	MaxSessions int `yaml:"max_sessions"`

	// SweepIntervalMs is how often the registry evicts finished sessions,
	// in milliseconds. Zero means the built-in default.
	SweepIntervalMs int `yaml:"sweep_interval_ms"`
}

package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked: the log level
// takes effect immediately, segmentation parameters apply to sessions
// created after the reload, and limits apply to subsequent admissions.
type ConfigDiff struct {
	LogLevelChanged  bool
	NewLogLevel      LogLevel
	SegmenterChanged bool
	LimitsChanged    bool
}

// Changed reports whether the diff carries any hot-reloadable change.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.SegmenterChanged || d.LimitsChanged
}

// Diff compares old and new configs and returns what changed.
// Server address, TLS, and provider selection require a restart and are
// deliberately not tracked.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.Segmenter != new.Segmenter {
		d.SegmenterChanged = true
	}
	if old.Limits != new.Limits {
		d.LimitsChanged = true
	}
	return d
}

package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	LogLevelChanged   bool
	NewLogLevel       LogLevel
	CallTuningChanged bool
	NewCallTuning     CallConfig
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart; network
// addresses, credentials, and provider selection require a restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Call != new.Call {
		d.CallTuningChanged = true
		d.NewCallTuning = new.Call
	}

	return d
}

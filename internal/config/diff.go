package config

import "reflect"

// ConfigDiff describes what changed between two configs.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// TranscribeChanged is true when the default run parameters changed.
	// New runs pick them up; running ones keep their copy.
	TranscribeChanged bool

	// RestartRequired lists changed keys that only take effect after a
	// restart.
	RestartRequired []string
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if !reflect.DeepEqual(old.Transcribe, new.Transcribe) {
		d.TranscribeChanged = true
	}

	if old.Server.ListenAddr != new.Server.ListenAddr {
		d.RestartRequired = append(d.RestartRequired, "server.listen_addr")
	}
	if old.Server.MaxConcurrentRuns != new.Server.MaxConcurrentRuns {
		d.RestartRequired = append(d.RestartRequired, "server.max_concurrent_runs")
	}
	if old.Server.InputDir != new.Server.InputDir {
		d.RestartRequired = append(d.RestartRequired, "server.input_dir")
	}
	if old.Server.ModelDir != new.Server.ModelDir {
		d.RestartRequired = append(d.RestartRequired, "server.model_dir")
	}
	if old.Telemetry != new.Telemetry {
		d.RestartRequired = append(d.RestartRequired, "telemetry")
	}
	if old.Jobs.PostgresDSN != new.Jobs.PostgresDSN {
		d.RestartRequired = append(d.RestartRequired, "jobs.postgres_dsn")
	}

	return d
}
